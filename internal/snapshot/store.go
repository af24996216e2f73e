// Package snapshot persists synthesized generations so the latest one can be
// reloaded after a restart.
package snapshot

import (
	"context"
	"errors"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/domain"
)

var (
	// ErrSnapshotWrite wraps every failure to persist a snapshot. The
	// previously saved snapshot stays authoritative when it is returned.
	ErrSnapshotWrite = errors.New("snapshot write failed")

	// ErrNoSnapshot is returned by LoadLatest when nothing has been saved.
	ErrNoSnapshot = errors.New("no snapshot saved")
)

// Store persists snapshots and returns the most recently saved one.
type Store interface {
	// Save persists snap and makes it the latest. It returns the identifier
	// of the stored snapshot.
	Save(ctx context.Context, snap domain.Snapshot) (string, error)
	// LoadLatest returns the snapshot of the last successful Save.
	LoadLatest(ctx context.Context) (*domain.Snapshot, error)
}
