package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// Health describes the state of the backing database.
type Health struct {
	Path          string
	Exists        bool
	Readable      bool
	SchemaVersion int
	RowCounts     map[string]int
	Error         string
}

var healthTables = []string{
	"customers",
	"conversation_entries",
	"tasks",
	"workers",
	"notifications",
	"config_records",
}

// CheckHealth returns diagnostic information about the database.
func (s *Store) CheckHealth(ctx context.Context) (Health, error) {
	health := Health{Path: s.path, RowCounts: make(map[string]int, len(healthTables))}

	if s.path == MemoryPath {
		health.Exists = true
	} else {
		info, err := os.Stat(s.path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return health, nil
			}
			return health, fmt.Errorf("stat database: %w", err)
		}
		if info.IsDir() {
			return health, fmt.Errorf("database path %q is a directory", s.path)
		}
		health.Exists = true
	}

	connCtx, cancel := context.WithTimeout(orBackground(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping database: %w", err)
	}
	health.Readable = true

	version, err := s.schemaVersion(connCtx)
	if err != nil {
		health.Error = err.Error()
		return health, err
	}
	health.SchemaVersion = version
	for _, table := range healthTables {
		var count int
		// Table names come from the fixed list above.
		if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(1) FROM "+table).Scan(&count); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count %s: %w", table, err)
		}
		health.RowCounts[table] = count
	}
	return health, nil
}
