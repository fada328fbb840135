package domain

import "context"

// Packager turns a local directory into a single archive file.
type Packager interface {
	CreateArchive(ctx context.Context, dir string) (string, error)
	Extension() string
}

type Notifier interface {
	Notify(ctx context.Context, summary RunSummary) error
}
