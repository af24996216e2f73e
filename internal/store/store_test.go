package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/domain"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/logging"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/snapshot"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	log := logging.New(nil, "silent")
	db, err := Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testSnapshot(at time.Time, compound float64) domain.Snapshot {
	return domain.Snapshot{
		Agents: map[string]domain.AgentIntelligence{
			"researcher": {
				AgentID:          "researcher",
				CompoundScore:    compound,
				Tier:             domain.TierOro,
				Healthy:          true,
				SourcesAvailable: []string{"registry"},
			},
		},
		Report: domain.SwarmIntelligenceReport{
			TotalAgents:      1,
			HealthyAgents:    1,
			SwarmHealthScore: compound,
			GeneratedAt:      at,
		},
		GeneratedAt: at,
	}
}

// --- DB/Migration tests ---

func TestOpen_InMemory(t *testing.T) {
	db := testDB(t)
	assert.NotNil(t, db)
	assert.NotNil(t, db.SQL())
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "swarmintel.db")
	db, err := Open(path, logging.New(nil, "silent"))
	require.NoError(t, err)
	require.NoError(t, db.Close())
	assert.FileExists(t, path)
}

func TestMigrations_Applied(t *testing.T) {
	db := testDB(t)

	var count int
	err := db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestMigrations_Idempotent(t *testing.T) {
	db := testDB(t)

	err := db.migrate()
	require.NoError(t, err)

	var count int
	err = db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestSchemaVersion(t *testing.T) {
	db := testDB(t)
	v, err := db.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, migrations[len(migrations)-1].Version, v)
}

func TestForeignKeysEnforced(t *testing.T) {
	db := testDB(t)
	_, err := db.sql.Exec(`INSERT INTO snapshot_latest (slot, snapshot_id, updated_at) VALUES (1, 'missing', datetime('now'))`)
	assert.Error(t, err, "latest pointer must reference a stored snapshot")
}

func TestSchema_TablesExist(t *testing.T) {
	db := testDB(t)

	tables := []string{"snapshots", "snapshot_latest", "routing_decisions"}
	for _, table := range tables {
		var name string
		err := db.sql.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

// --- Snapshot store tests ---

func TestSnapshotStore_Empty(t *testing.T) {
	s := NewSnapshotStore(testDB(t), 0)
	_, err := s.LoadLatest(context.Background())
	assert.ErrorIs(t, err, snapshot.ErrNoSnapshot)
}

func TestSnapshotStore_SaveAndLoad(t *testing.T) {
	s := NewSnapshotStore(testDB(t), 0)
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	id, err := s.Save(ctx, testSnapshot(at, 72.5))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got, err := s.LoadLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, at, got.GeneratedAt)
	assert.Equal(t, 72.5, got.Agents["researcher"].CompoundScore)
	assert.Equal(t, []string{"registry"}, got.Agents["researcher"].SourcesAvailable)

	byID, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, got, byID)
}

func TestSnapshotStore_LatestMoves(t *testing.T) {
	s := NewSnapshotStore(testDB(t), 0)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	first, err := s.Save(ctx, testSnapshot(base, 60))
	require.NoError(t, err)
	second, err := s.Save(ctx, testSnapshot(base.Add(time.Hour), 70))
	require.NoError(t, err)

	got, err := s.LoadLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, got.ID)

	infos, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, second, infos[0].ID)
	assert.True(t, infos[0].Latest)
	assert.Equal(t, first, infos[1].ID)
	assert.False(t, infos[1].Latest)
	assert.Equal(t, base, infos[1].GeneratedAt)
	assert.Equal(t, 1, infos[1].Agents)
}

func TestSnapshotStore_FailedSaveKeepsPrevious(t *testing.T) {
	s := NewSnapshotStore(testDB(t), 0)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	id, err := s.Save(ctx, testSnapshot(base, 60))
	require.NoError(t, err)

	_, err = s.Save(ctx, testSnapshot(base.Add(time.Hour), math.Inf(1)))
	require.Error(t, err)
	assert.ErrorIs(t, err, snapshot.ErrSnapshotWrite)

	got, err := s.LoadLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
}

func TestSnapshotStore_DuplicateIDRollsBack(t *testing.T) {
	s := NewSnapshotStore(testDB(t), 0)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	snap := testSnapshot(base, 60)
	snap.ID = "fixed"
	_, err := s.Save(ctx, snap)
	require.NoError(t, err)

	other := testSnapshot(base.Add(time.Hour), 90)
	other.ID = "fixed"
	_, err = s.Save(ctx, other)
	assert.ErrorIs(t, err, snapshot.ErrSnapshotWrite)

	got, err := s.LoadLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 60.0, got.Agents["researcher"].CompoundScore)
}

func TestSnapshotStore_Retain(t *testing.T) {
	s := NewSnapshotStore(testDB(t), 2)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	var last string
	for i := 0; i < 5; i++ {
		id, err := s.Save(ctx, testSnapshot(base.Add(time.Duration(i)*time.Hour), float64(50+i)))
		require.NoError(t, err)
		last = id
	}

	infos, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, last, infos[0].ID)

	limited, err := s.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSnapshotStore_GetMissing(t *testing.T) {
	s := NewSnapshotStore(testDB(t), 0)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, snapshot.ErrNoSnapshot)
}

// --- Decision log tests ---

func TestDecisionLog_RecordAndRecent(t *testing.T) {
	l := NewDecisionLog(testDB(t))
	ctx := context.Background()
	at := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return at }

	req := domain.TaskRoutingRequest{TaskID: "t1", Category: "research"}
	d := domain.RoutingDecision{
		TaskID:        "t1",
		SelectedAgent: "researcher",
		Confidence:    0.8,
		CandidateScores: []domain.CandidateScore{
			{AgentID: "researcher", Fitness: 88},
			{AgentID: "coder", Fitness: 80},
		},
		Reasoning: "selected researcher",
	}
	id, err := l.Record(ctx, req, d)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	none := domain.RoutingDecision{TaskID: "t2", Reasoning: "no eligible agent"}
	_, err = l.Record(ctx, domain.TaskRoutingRequest{TaskID: "t2", Category: "general"}, none)
	require.NoError(t, err)

	recent, err := l.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "t2", recent[0].Decision.TaskID)
	assert.False(t, recent[0].Decision.Selected())
	assert.Equal(t, id, recent[1].ID)
	assert.Equal(t, "research", recent[1].Category)
	assert.Equal(t, d, recent[1].Decision)
	assert.Equal(t, at, recent[1].RecordedAt)

	one, err := l.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

func TestDecisionLog_ForAgent(t *testing.T) {
	l := NewDecisionLog(testDB(t))
	ctx := context.Background()

	for _, agent := range []string{"researcher", "coder", "researcher", ""} {
		_, err := l.Record(ctx, domain.TaskRoutingRequest{Category: "general"},
			domain.RoutingDecision{SelectedAgent: agent})
		require.NoError(t, err)
	}

	got, err := l.ForAgent(ctx, "researcher", 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	for _, rec := range got {
		assert.Equal(t, "researcher", rec.Decision.SelectedAgent)
	}
}
