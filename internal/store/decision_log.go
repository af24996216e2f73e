package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/domain"
)

// DecisionRecord is one audited routing decision.
type DecisionRecord struct {
	ID         string                 `json:"id"`
	Category   string                 `json:"category"`
	Decision   domain.RoutingDecision `json:"decision"`
	RecordedAt time.Time              `json:"recorded_at"`
}

// DecisionLog is the append-only audit trail of routing decisions.
type DecisionLog struct {
	db  *DB
	now func() time.Time
}

// NewDecisionLog creates a decision log using the given database.
func NewDecisionLog(db *DB) *DecisionLog {
	return &DecisionLog{db: db, now: time.Now}
}

// Record appends a decision for req and returns its ID.
func (l *DecisionLog) Record(ctx context.Context, req domain.TaskRoutingRequest, d domain.RoutingDecision) (string, error) {
	doc, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encoding decision: %w", err)
	}
	id := uuid.NewString()
	if _, err := l.db.sql.ExecContext(ctx,
		`INSERT INTO routing_decisions (id, task_id, category, selected_agent, confidence, candidates, doc, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, d.TaskID, req.Category, d.SelectedAgent, d.Confidence, len(d.CandidateScores),
		string(doc), l.now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return "", fmt.Errorf("recording decision: %w", err)
	}
	return id, nil
}

// Recent returns up to limit decisions, newest first. A limit of zero
// returns all of them.
func (l *DecisionLog) Recent(ctx context.Context, limit int) ([]DecisionRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	return l.query(ctx,
		`SELECT id, category, doc, recorded_at FROM routing_decisions ORDER BY rowid DESC LIMIT ?`, limit)
}

// ForAgent returns up to limit decisions that selected agentID, newest first.
func (l *DecisionLog) ForAgent(ctx context.Context, agentID string, limit int) ([]DecisionRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	return l.query(ctx,
		`SELECT id, category, doc, recorded_at FROM routing_decisions
		 WHERE selected_agent = ? ORDER BY rowid DESC LIMIT ?`, agentID, limit)
}

func (l *DecisionLog) query(ctx context.Context, q string, args ...any) ([]DecisionRecord, error) {
	rows, err := l.db.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying decisions: %w", err)
	}
	defer rows.Close()

	var out []DecisionRecord
	for rows.Next() {
		var rec DecisionRecord
		var doc, recordedAt string
		if err := rows.Scan(&rec.ID, &rec.Category, &doc, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning decision: %w", err)
		}
		if err := json.Unmarshal([]byte(doc), &rec.Decision); err != nil {
			return nil, fmt.Errorf("decoding decision %s: %w", rec.ID, err)
		}
		rec.RecordedAt, _ = time.Parse(time.RFC3339Nano, recordedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}
