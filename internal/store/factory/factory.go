package factory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/worldsmith/worldsmith/internal/store"
	pg "github.com/worldsmith/worldsmith/internal/store/postgres"
	sq "github.com/worldsmith/worldsmith/internal/store/sqlite"
)

// New selects a store implementation from the declared type, rejecting
// DSNs whose scheme contradicts it. An empty type falls back to DSN
// scheme detection.
func New(storeType, dsn string) (store.Store, error) {
	switch strings.ToLower(strings.TrimSpace(storeType)) {
	case "":
		return NewFromDSN(dsn)
	case "postgres":
		if !isPostgresDSN(dsn) {
			return nil, fmt.Errorf("store type postgres requires a postgres:// DSN, got %q", dsn)
		}
		return NewFromDSN(dsn)
	case "sqlite":
		if isPostgresDSN(dsn) {
			return nil, fmt.Errorf("store type sqlite cannot open postgres DSN %q", dsn)
		}
		return NewFromDSN(dsn)
	default:
		return nil, fmt.Errorf("unsupported store type %q", storeType)
	}
}

// NewFromDSN selects a store implementation based on DSN.
// Supported:
//   - sqlite:  "sqlite://<path>" or bare filepath (treated as sqlite)
//   - postgres: DSN starting with "postgres://" or "postgresql://"
func NewFromDSN(dsn string) (store.Store, error) {
	d := strings.TrimSpace(dsn)
	ld := strings.ToLower(d)
	if ld == "" {
		return nil, errors.New("empty DSN")
	}
	if isPostgresDSN(d) {
		return pg.New(d)
	}
	if strings.HasPrefix(ld, "sqlite://") {
		path := strings.TrimPrefix(d, "sqlite://")
		return sq.New(path)
	}
	// default to sqlite path
	return sq.New(d)
}

func isPostgresDSN(dsn string) bool {
	ld := strings.ToLower(strings.TrimSpace(dsn))
	return strings.HasPrefix(ld, "postgres://") || strings.HasPrefix(ld, "postgresql://")
}
