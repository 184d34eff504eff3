// Package audit records security-relevant decisions in an append-only log.
// Entries are never mutated or deleted except by the retention purge that
// removes their parent submission.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"regelrecht.org/internal/ids"
	"regelrecht.org/internal/obs"
)

// ActorType identifies who triggered an audited action.
type ActorType string

const (
	ActorApplicant ActorType = "applicant"
	ActorUploader  ActorType = "uploader"
	ActorAdmin     ActorType = "admin"
	ActorSystem    ActorType = "system"
)

// Entry is one immutable audit fact.
type Entry struct {
	ID         string
	Action     string
	EntityType string
	EntityID   string
	ActorType  ActorType
	ActorID    string
	ActorAddr  string
	Detail     map[string]any
	OccurredAt time.Time
}

// Logger appends entries to the audit store. Callers performing privileged
// mutations must treat an append error as fatal for the mutation itself
// (fail closed); deny paths and read-only operations may degrade the error
// to a warning.
type Logger interface {
	Append(ctx context.Context, e *Entry) error
}

// Fill normalizes an entry in place: assigns an id and timestamp when absent
// and defaults the actor type to system.
func Fill(e *Entry, now func() time.Time) error {
	if e == nil || strings.TrimSpace(e.Action) == "" {
		return errors.New("audit: action is required")
	}
	if e.ID == "" {
		e.ID = ids.New()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = now().UTC()
	}
	if e.ActorType == "" {
		e.ActorType = ActorSystem
	}
	return nil
}

// emitLine mirrors the entry to the structured log so operators can follow
// the trail without a database session.
func emitLine(e *Entry) {
	line := map[string]any{
		"ts":          e.OccurredAt.Format(time.RFC3339Nano),
		"type":        "audit",
		"event":       e.Action,
		"entity_type": e.EntityType,
		"entity_id":   e.EntityID,
		"actor_type":  string(e.ActorType),
	}
	if e.ActorID != "" {
		line["actor_id"] = e.ActorID
	}
	if e.ActorAddr != "" {
		line["actor_addr"] = e.ActorAddr
	}
	if len(e.Detail) > 0 {
		line["detail"] = e.Detail
	}
	data, err := json.Marshal(line)
	if err != nil {
		obs.Logger().Println(`{"ts":"error","level":"error","msg":"audit marshal failed"}`)
		return
	}
	obs.Logger().Println(string(data))
}

// Warn logs an audit append failure that was deliberately not escalated.
func Warn(action string, err error) {
	data, _ := json.Marshal(map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"level": "warn",
		"msg":   "audit append failed",
		"event": action,
		"error": err.Error(),
	})
	obs.Logger().Println(string(data))
}
