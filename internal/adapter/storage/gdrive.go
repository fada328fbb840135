package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/semmidev/mudvault/internal/config"
	"github.com/semmidev/mudvault/internal/domain"
	"github.com/semmidev/mudvault/internal/infrastructure/gauth"
)

const folderMimeType = "application/vnd.google-apps.folder"

// GDriveStorage stores backups in Drive folders looked up by name. File IDs
// are Drive file IDs.
type GDriveStorage struct {
	service *drive.Service
	trash   bool

	mu      sync.Mutex
	folders map[string]string
}

// NewGDrive authorizes with a service account when the credentials file is
// a service account key, and with the user token in TokenFile when it holds
// OAuth client secrets.
func NewGDrive(ctx context.Context, cfg *config.GDriveConfig) (*GDriveStorage, error) {
	serviceAccount, err := gauth.IsServiceAccount(cfg.Credentials)
	if err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	if serviceAccount {
		opts = append(opts, option.WithCredentialsFile(cfg.Credentials), option.WithScopes(drive.DriveScope))
	} else {
		if cfg.TokenFile == "" {
			return nil, fmt.Errorf("%w: remote.gdrive.token_file is required with OAuth client secrets", domain.ErrConfig)
		}
		oauthCfg, err := gauth.ClientConfig(cfg.Credentials, "")
		if err != nil {
			return nil, err
		}
		client, err := gauth.NewClient(ctx, oauthCfg, cfg.TokenFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithHTTPClient(client))
	}

	service, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return NewGDriveWithService(service, cfg.Trash), nil
}

func NewGDriveWithService(service *drive.Service, trash bool) *GDriveStorage {
	return &GDriveStorage{
		service: service,
		trash:   trash,
		folders: make(map[string]string),
	}
}

func (g *GDriveStorage) Upload(ctx context.Context, localPath, folder, name string) (string, error) {
	folderID, err := g.folderID(ctx, folder)
	if err != nil {
		return "", err
	}

	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	fileMetadata := &drive.File{
		Name:     name,
		MimeType: "application/octet-stream",
		Parents:  []string{folderID},
	}

	created, err := g.service.Files.Create(fileMetadata).
		Media(file).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload to gdrive: %w", classifyGoogle(err))
	}

	return created.Id, nil
}

func (g *GDriveStorage) List(ctx context.Context, folder, prefix string) ([]domain.RemoteFile, error) {
	folderID, err := g.folderID(ctx, folder)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("'%s' in parents and trashed=false", quote(folderID))

	var files []domain.RemoteFile
	err = g.service.Files.List().
		Q(query).
		Spaces("drive").
		Fields("nextPageToken, files(id, name, createdTime)").
		OrderBy("createdTime").
		PageSize(1000).
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				if !strings.HasPrefix(f.Name, prefix) {
					continue
				}
				created, _ := time.Parse(time.RFC3339, f.CreatedTime)
				files = append(files, domain.RemoteFile{ID: f.Id, Name: f.Name, CreatedAt: created})
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", classifyGoogle(err))
	}

	return files, nil
}

func (g *GDriveStorage) Delete(ctx context.Context, id string) error {
	var err error
	if g.trash {
		_, err = g.service.Files.Update(id, &drive.File{Trashed: true}).Context(ctx).Do()
	} else {
		err = g.service.Files.Delete(id).Context(ctx).Do()
	}
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", classifyGoogle(err))
	}
	return nil
}

// folderID finds the folder by name, creating it on first use.
func (g *GDriveStorage) folderID(ctx context.Context, name string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if id, ok := g.folders[name]; ok {
		return id, nil
	}

	query := fmt.Sprintf("mimeType='%s' and name='%s' and trashed=false", folderMimeType, quote(name))
	fileList, err := g.service.Files.List().
		Q(query).
		Spaces("drive").
		Fields("files(id, name)").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to find folder %q: %w", name, classifyGoogle(err))
	}

	var id string
	if len(fileList.Files) > 0 {
		id = fileList.Files[0].Id
	} else {
		created, err := g.service.Files.Create(&drive.File{Name: name, MimeType: folderMimeType}).
			Fields("id").
			Context(ctx).
			Do()
		if err != nil {
			return "", fmt.Errorf("failed to create folder %q: %w", name, classifyGoogle(err))
		}
		id = created.Id
	}

	g.folders[name] = id
	return id, nil
}

func quote(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

func classifyGoogle(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) || errors.Is(err, domain.ErrAuth) {
		return withKind(domain.ErrAuth, err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusNotFound:
			return withKind(domain.ErrNotFound, err)
		case apiErr.Code == http.StatusUnauthorized:
			return withKind(domain.ErrAuth, err)
		case apiErr.Code == http.StatusForbidden && isRateLimited(apiErr):
			return withKind(domain.ErrTransient, err)
		case apiErr.Code == http.StatusForbidden:
			return withKind(domain.ErrAuth, err)
		case apiErr.Code == http.StatusTooManyRequests, apiErr.Code >= 500:
			return withKind(domain.ErrTransient, err)
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return withKind(domain.ErrTransient, err)
	}
	return err
}

func isRateLimited(apiErr *googleapi.Error) bool {
	for _, item := range apiErr.Errors {
		switch item.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded":
			return true
		}
	}
	return false
}

func withKind(kind, err error) error {
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}
