package packager

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/semmidev/mudvault/internal/adapter/compressor"
	"github.com/semmidev/mudvault/internal/domain"
)

// DefaultExcludes skips build objects, git metadata (.git, .gitignore,
// .github and the like), the server binary, core dumps, logs and editor
// backups.
var DefaultExcludes = []string{"*.o", ".git*", "rom", "core", "core.*", "*.log", "*.bak"}

type TarPackager struct {
	format   compressor.Format
	excludes []string
	tempDir  string
}

func NewTar(format compressor.Format, excludes []string, tempDir string) (*TarPackager, error) {
	for _, pattern := range excludes {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &TarPackager{format: format, excludes: excludes, tempDir: tempDir}, nil
}

func (p *TarPackager) Extension() string {
	return ".tar" + p.format.Extension()
}

// CreateArchive writes dir into a compressed tarball inside the temp
// directory and returns its path. The caller owns the file.
func (p *TarPackager) CreateArchive(ctx context.Context, dir string) (string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", domain.ErrPathNotFound, dir)
		}
		return "", fmt.Errorf("failed to stat source: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", domain.ErrPathNotFound, dir)
	}

	out, err := os.CreateTemp(p.tempDir, "mudvault-*"+p.Extension())
	if err != nil {
		return "", fmt.Errorf("failed to create archive file: %w", err)
	}
	path := out.Name()

	if err := p.write(ctx, out, dir); err != nil {
		out.Close()
		os.Remove(path)
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close archive file: %w", err)
	}

	return path, nil
}

func (p *TarPackager) write(ctx context.Context, out io.Writer, dir string) error {
	cw, err := compressor.NewWriter(out, p.format)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(cw)

	root := filepath.Clean(dir)
	base := filepath.Dir(root)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path != root && p.excluded(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		return p.add(tw, base, path, d)
	})
	if walkErr != nil {
		tw.Close()
		cw.Close()
		return fmt.Errorf("failed to archive %s: %w", dir, walkErr)
	}

	if err := tw.Close(); err != nil {
		cw.Close()
		return fmt.Errorf("failed to finish tar stream: %w", err)
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("failed to finish compression: %w", err)
	}
	return nil
}

func (p *TarPackager) add(tw *tar.Writer, base, path string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	var link string
	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		if link, err = os.Readlink(path); err != nil {
			return err
		}
	case info.Mode().IsRegular(), info.IsDir():
	default:
		// sockets, fifos and devices
		return nil
	}

	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return err
	}
	hdr.Name = filepath.ToSlash(rel)
	if info.IsDir() {
		hdr.Name += "/"
	}

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(tw, f)
	return err
}

func (p *TarPackager) excluded(name string) bool {
	for _, pattern := range p.excludes {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
