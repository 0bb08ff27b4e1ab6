package storage

import (
	"fmt"
	"strings"
)

func NewStore(kind, sqlitePath string) (Store, error) {
	switch strings.TrimSpace(strings.ToLower(kind)) {
	case "", "memory", "mem":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
