package domain

import (
	"context"
	"time"
)

// RemoteFile is one entry of a remote folder listing.
type RemoteFile struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// RemoteStore stores backup archives in named folders.
//
// Delete reports ErrNotFound when the file is already gone, ErrTransient for
// failures worth retrying later and ErrAuth when credentials are rejected.
type RemoteStore interface {
	Upload(ctx context.Context, localPath, folder, name string) (string, error)
	List(ctx context.Context, folder, prefix string) ([]RemoteFile, error)
	Delete(ctx context.Context, id string) error
}
