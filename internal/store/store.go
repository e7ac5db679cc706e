// Package store persists world records: identity, network ports, and
// the credentials a running server needs.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no world matches the given number.
var ErrNotFound = errors.New("store: world not found")

// World is one provisioned game-server world. WorldNumber is the
// twelve-digit external identifier; ID is the row key.
type World struct {
	ID          int64
	WorldNumber string
	Name        string
	Version     string
	Software    string
	MaxPlayers  int
	ServerPort  int
	JMXPort     int
	RCONPort    int
	RMIPort     int
	// RCONPassword is the long-lived remote console secret.
	RCONPassword string
	// Transient run state, cleared when the server is down.
	ServerUser     string
	ServerTempPsw  string
	ProcessID      int
	StartingStatus string
}

// Transient is the run-scoped subset persisted while a server process
// is alive.
type Transient struct {
	ServerUser     string
	ServerTempPsw  string
	ProcessID      int
	StartingStatus string
}

// Store is the world persistence contract. All implementations use
// parameterized statements exclusively.
type Store interface {
	EnsureSchema(ctx context.Context) error
	Create(ctx context.Context, w World) (int64, error)
	Get(ctx context.Context, worldNumber string) (World, error)
	Update(ctx context.Context, w World) error
	Delete(ctx context.Context, worldNumber string) error
	List(ctx context.Context) ([]World, error)
	Exists(ctx context.Context, worldNumber string) (bool, error)
	SetTransient(ctx context.Context, worldNumber string, t Transient) error
	ClearTransient(ctx context.Context, worldNumber string) error
	Close() error
}
