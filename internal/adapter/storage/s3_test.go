package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/semmidev/mudvault/internal/domain"

	. "github.com/smartystreets/goconvey/convey"
)

// fakeS3 keeps objects in memory and returns one key per listing page.
type fakeS3 struct {
	objects   map[string][]byte
	deleteErr error
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		for i, k := range keys {
			if k == tok {
				start = i
			}
		}
	}
	out := &s3.ListObjectsV2Output{}
	if start < len(keys) {
		out.Contents = []types.Object{{Key: aws.String(keys[start]), LastModified: aws.Time(time.Unix(0, 0))}}
	}
	if start+1 < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[start+1])
	}
	return out, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = body
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errors.New("multipart not expected")
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errors.New("multipart not expected")
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errors.New("multipart not expected")
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return nil, errors.New("multipart not expected")
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Storage(t *testing.T) {
	Convey("Given a bucket", t, func() {
		ctx := context.Background()
		fake := &fakeS3{objects: map[string][]byte{
			"mud/port4000_20240101T000000Z.tar.xz":           []byte("1"),
			"mud/port4000_20240102T000000Z.tar.xz":           []byte("2"),
			"mud/port4000_old/port4000_20230101T000000Z.tar": []byte("3"),
			"mud/port5000_20240101T000000Z.tar.xz":           []byte("4"),
		}}
		store := NewS3WithClient(fake, "backups")

		Convey("When listing a folder by prefix", func() {
			files, err := store.List(ctx, "mud", "port4000_")

			Convey("It should page through direct children only", func() {
				So(err, ShouldBeNil)
				So(names(files), ShouldResemble, []string{"port4000_20240101T000000Z.tar.xz", "port4000_20240102T000000Z.tar.xz"})
				So(files[0].ID, ShouldEqual, "mud/port4000_20240101T000000Z.tar.xz")
			})
		})

		Convey("When uploading", func() {
			archive := filepath.Join(t.TempDir(), "archive.tar.xz")
			So(os.WriteFile(archive, []byte("tarball"), 0644), ShouldBeNil)

			id, err := store.Upload(ctx, archive, "/mud/", "port4000_20240104T000000Z.tar.xz")

			Convey("The key joins folder and name", func() {
				So(err, ShouldBeNil)
				So(id, ShouldEqual, "mud/port4000_20240104T000000Z.tar.xz")
				So(string(fake.objects[id]), ShouldEqual, "tarball")
			})
		})

		Convey("When deleting", func() {
			So(store.Delete(ctx, "mud/port4000_20240101T000000Z.tar.xz"), ShouldBeNil)
			So(fake.objects, ShouldNotContainKey, "mud/port4000_20240101T000000Z.tar.xz")
		})

		Convey("When credentials are rejected", func() {
			fake.deleteErr = &smithy.GenericAPIError{Code: "AccessDenied", Message: "Access Denied"}
			err := store.Delete(ctx, "mud/port4000_20240101T000000Z.tar.xz")

			Convey("The error is an auth error", func() {
				So(errors.Is(err, domain.ErrAuth), ShouldBeTrue)
			})
		})

		Convey("When the service throttles", func() {
			fake.deleteErr = &smithy.GenericAPIError{Code: "SlowDown", Fault: smithy.FaultServer}
			err := store.Delete(ctx, "mud/port4000_20240101T000000Z.tar.xz")

			Convey("The error is transient", func() {
				So(errors.Is(err, domain.ErrTransient), ShouldBeTrue)
			})
		})
	})
}
