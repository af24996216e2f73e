package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/domain"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/snapshot"
)

// SnapshotInfo summarizes one stored snapshot without decoding its document.
type SnapshotInfo struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`
	Agents      int       `json:"agents"`
	Healthy     int       `json:"healthy"`
	Health      float64   `json:"health"`
	Latest      bool      `json:"latest"`
}

// SnapshotStore implements snapshot.Store backed by SQLite. The snapshot
// row and the latest pointer are written in one transaction.
type SnapshotStore struct {
	db     *DB
	retain int
}

var _ snapshot.Store = (*SnapshotStore)(nil)

// NewSnapshotStore creates a snapshot store keeping at most retain rows.
// A retain of zero keeps everything.
func NewSnapshotStore(db *DB, retain int) *SnapshotStore {
	return &SnapshotStore{db: db, retain: retain}
}

// Save inserts snap and makes it the latest.
func (s *SnapshotStore) Save(ctx context.Context, snap domain.Snapshot) (string, error) {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	doc, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("%w: encoding: %w", snapshot.ErrSnapshotWrite, err)
	}

	err = s.db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO snapshots (id, generated_at, agents, healthy, health, doc)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			snap.ID, snap.GeneratedAt.UTC().Format(time.RFC3339Nano),
			snap.Report.TotalAgents, snap.Report.HealthyAgents, snap.Report.SwarmHealthScore,
			string(doc),
		); err != nil {
			return fmt.Errorf("inserting snapshot: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO snapshot_latest (slot, snapshot_id, updated_at) VALUES (1, ?, datetime('now'))
			 ON CONFLICT(slot) DO UPDATE SET snapshot_id = excluded.snapshot_id, updated_at = excluded.updated_at`,
			snap.ID,
		); err != nil {
			return fmt.Errorf("moving latest pointer: %w", err)
		}

		if s.retain > 0 {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM snapshots WHERE id NOT IN (
					SELECT id FROM snapshots ORDER BY rowid DESC LIMIT ?
				) AND id != ?`,
				s.retain, snap.ID,
			); err != nil {
				return fmt.Errorf("pruning: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", snapshot.ErrSnapshotWrite, err)
	}

	s.db.log.Info().Str("id", snap.ID).Int("agents", len(snap.Agents)).Msg("snapshot stored")
	return snap.ID, nil
}

// LoadLatest returns the snapshot the latest pointer names.
func (s *SnapshotStore) LoadLatest(ctx context.Context) (*domain.Snapshot, error) {
	var doc string
	err := s.db.sql.QueryRowContext(ctx,
		`SELECT s.doc FROM snapshot_latest l JOIN snapshots s ON s.id = l.snapshot_id WHERE l.slot = 1`,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, snapshot.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("loading latest snapshot: %w", err)
	}
	return decodeSnapshot(doc)
}

// Get returns a stored snapshot by ID.
func (s *SnapshotStore) Get(ctx context.Context, id string) (*domain.Snapshot, error) {
	var doc string
	err := s.db.sql.QueryRowContext(ctx, `SELECT doc FROM snapshots WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %q: %w", id, snapshot.ErrNoSnapshot)
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot %q: %w", id, err)
	}
	return decodeSnapshot(doc)
}

// List returns up to limit stored snapshots, newest first. A limit of zero
// returns all of them.
func (s *SnapshotStore) List(ctx context.Context, limit int) ([]SnapshotInfo, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT s.id, s.generated_at, s.agents, s.healthy, s.health, l.snapshot_id IS NOT NULL
		 FROM snapshots s LEFT JOIN snapshot_latest l ON l.snapshot_id = s.id
		 ORDER BY s.rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotInfo
	for rows.Next() {
		var info SnapshotInfo
		var generatedAt string
		if err := rows.Scan(&info.ID, &generatedAt, &info.Agents, &info.Healthy, &info.Health, &info.Latest); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		info.GeneratedAt, _ = time.Parse(time.RFC3339Nano, generatedAt)
		out = append(out, info)
	}
	return out, rows.Err()
}

func decodeSnapshot(doc string) (*domain.Snapshot, error) {
	var snap domain.Snapshot
	if err := json.Unmarshal([]byte(doc), &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &snap, nil
}
