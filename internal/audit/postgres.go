package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// PG appends audit entries to the audit_log table and mirrors each entry to
// the structured log.
type PG struct {
	db  *sql.DB
	now func() time.Time
}

var _ Logger = (*PG)(nil)

// NewPG constructs a Postgres-backed audit logger.
func NewPG(db *sql.DB) *PG {
	return &PG{db: db, now: time.Now}
}

func (p *PG) Append(ctx context.Context, e *Entry) error {
	if err := Fill(e, p.now); err != nil {
		return err
	}
	detail, err := json.Marshal(e.Detail)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx,
		`insert into audit_log(id, occurred_at, action, entity_type, entity_id, actor_type, actor_id, actor_addr, detail)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		e.ID, e.OccurredAt, e.Action, e.EntityType, nullable(e.EntityID),
		string(e.ActorType), nullable(e.ActorID), nullable(e.ActorAddr), detail,
	)
	if err != nil {
		return err
	}
	emitLine(e)
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
