package checkpoint

import (
	"context"
	"fmt"
	"strings"
)

const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Open returns the bridge for the named store kind. The returned close
// function is never nil.
func Open(ctx context.Context, kind, path, key string) (Bridge, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(kind) {
	case "", StoreFile:
		if path == "" {
			return nil, noop, fmt.Errorf("checkpoint: file store requires a path")
		}
		return NewFileStore(path), noop, nil
	case StoreSQLite:
		s := NewSQLiteStore(path, key)
		if err := s.Init(ctx); err != nil {
			return nil, noop, fmt.Errorf("checkpoint: open sqlite %s: %w", path, err)
		}
		return s, s.Close, nil
	case StoreMemory:
		return NewMemoryStore(), noop, nil
	}
	return nil, noop, fmt.Errorf("checkpoint: unsupported store %q", kind)
}
