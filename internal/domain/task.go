package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DefaultCategory is used when a task carries no category.
const DefaultCategory = "general"

// physicalEvidence lists evidence types that can only be produced in person.
var physicalEvidence = map[string]bool{
	"photo_geo":   true,
	"video":       true,
	"signature":   true,
	"measurement": true,
}

// TaskRoutingRequest is a task that needs an agent.
type TaskRoutingRequest struct {
	TaskID           string     `json:"task_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Category         string     `json:"category"`
	BountyUSD        float64    `json:"bounty_usd"`
	RequiresPhysical bool       `json:"requires_physical"`
	Deadline         *time.Time `json:"deadline,omitempty"`
	EvidenceTypes    []string   `json:"evidence_types,omitempty"`
}

// TaskError reports a task payload field that could not be converted.
type TaskError struct {
	Field   string
	Message string
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task: %s: %s", e.Field, e.Message)
}

// ParseTaskRoutingRequest decodes a JSON task payload through NewTaskRoutingRequest.
func ParseTaskRoutingRequest(data []byte) (TaskRoutingRequest, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return TaskRoutingRequest{}, &TaskError{Field: "payload", Message: err.Error()}
	}
	return NewTaskRoutingRequest(raw)
}

// NewTaskRoutingRequest converts a loosely typed task payload into a
// TaskRoutingRequest. Missing fields default conservatively: bounty 0,
// category "general", requires_physical false.
func NewTaskRoutingRequest(raw map[string]any) (TaskRoutingRequest, error) {
	req := TaskRoutingRequest{Category: DefaultCategory}
	var err error

	if req.TaskID, err = stringField(raw, "task_id", "id"); err != nil {
		return TaskRoutingRequest{}, err
	}
	if req.Title, err = stringField(raw, "title"); err != nil {
		return TaskRoutingRequest{}, err
	}
	if req.Description, err = stringField(raw, "description", "instructions"); err != nil {
		return TaskRoutingRequest{}, err
	}

	category, err := stringField(raw, "category")
	if err != nil {
		return TaskRoutingRequest{}, err
	}
	if category = strings.TrimSpace(strings.ToLower(category)); category != "" {
		req.Category = category
	}

	if req.BountyUSD, err = floatField(raw, "bounty_usd"); err != nil {
		return TaskRoutingRequest{}, err
	}
	if req.BountyUSD < 0 {
		return TaskRoutingRequest{}, &TaskError{Field: "bounty_usd", Message: "must not be negative"}
	}

	if req.EvidenceTypes, err = stringListField(raw, "evidence_types"); err != nil {
		return TaskRoutingRequest{}, err
	}
	for _, e := range req.EvidenceTypes {
		if physicalEvidence[e] {
			req.RequiresPhysical = true
		}
	}
	if v, ok := raw["requires_physical"]; ok && v != nil {
		b, ok := v.(bool)
		if !ok {
			return TaskRoutingRequest{}, &TaskError{Field: "requires_physical", Message: fmt.Sprintf("expected bool, got %T", v)}
		}
		req.RequiresPhysical = req.RequiresPhysical || b
	}

	deadline, err := stringField(raw, "deadline")
	if err != nil {
		return TaskRoutingRequest{}, err
	}
	if deadline != "" {
		t, err := time.Parse(time.RFC3339, deadline)
		if err != nil {
			return TaskRoutingRequest{}, &TaskError{Field: "deadline", Message: err.Error()}
		}
		t = t.UTC()
		req.Deadline = &t
	}

	return req, nil
}

// stringField returns the first present key as a string.
func stringField(raw map[string]any, keys ...string) (string, error) {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		switch s := v.(type) {
		case string:
			return s, nil
		case float64:
			return strconv.FormatFloat(s, 'f', -1, 64), nil
		default:
			return "", &TaskError{Field: k, Message: fmt.Sprintf("expected string, got %T", v)}
		}
	}
	return "", nil
}

func floatField(raw map[string]any, key string) (float64, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return 0, nil
	}
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case string:
		if n == "" {
			return 0, nil
		}
		var err error
		if f, err = strconv.ParseFloat(n, 64); err != nil {
			return 0, &TaskError{Field: key, Message: err.Error()}
		}
	default:
		return 0, &TaskError{Field: key, Message: fmt.Sprintf("expected number, got %T", v)}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &TaskError{Field: key, Message: "must be a finite number"}
	}
	return f, nil
}

func stringListField(raw map[string]any, key string) ([]string, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, &TaskError{Field: key, Message: fmt.Sprintf("expected list, got %T", v)}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, &TaskError{Field: key, Message: fmt.Sprintf("expected string item, got %T", item)}
		}
		out = append(out, s)
	}
	return out, nil
}
