package storage

import "context"

// Writer persists an exported deck and returns where it ended up.
type Writer interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}
