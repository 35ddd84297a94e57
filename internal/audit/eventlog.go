// Package audit keeps an append-only log of admin mutations
// (who scheduled, moved or cancelled what).
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/examdesk/examdesk/internal/db"
)

const (
	TypeScheduledExamCreated = "ScheduledExamCreated"
	TypeScheduledExamUpdated = "ScheduledExamUpdated"
	TypeScheduledExamDeleted = "ScheduledExamDeleted"
	TypeScheduledExamStatus  = "ScheduledExamStatusChanged"
	TypeStructureSaved       = "ExamStructureSaved"
	TypeStructureDeleted     = "ExamStructureDeleted"
	TypeUserUpdated          = "UserUpdated"
)

type Event struct {
	Seq       int64           `json:"seq" db:"seq"`
	SiteID    string          `json:"site_id" db:"site_id"`
	Type      string          `json:"type" db:"typ"`
	Key       string          `json:"key" db:"key"`
	Data      json.RawMessage `json:"data" db:"-"`
	DataJSON  string          `json:"-" db:"data"`
	CreatedAt int64           `json:"created_at" db:"created_at"`
}

// Recorder is what mutating stores depend on.
type Recorder interface {
	Record(ctx context.Context, typ, key string, data any) error
}

type EventRepo struct {
	db     *sqlx.DB
	siteID string
}

func NewEventRepo(db *sqlx.DB, siteID string) *EventRepo {
	if siteID == "" {
		siteID = "local"
	}
	return &EventRepo{db: db, siteID: siteID}
}

func (r *EventRepo) Record(ctx context.Context, typ, key string, data any) error {
	return r.RecordTx(ctx, r.db, typ, key, data)
}

// RecordTx appends the event using ex, typically the transaction that made
// the change, so the event and the change commit together.
func (r *EventRepo) RecordTx(ctx context.Context, ex sqlx.ExecerContext, typ, key string, data any) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "audit: marshal event")
	}
	_, err = ex.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		r.siteID, typ, key, string(buf), time.Now().Unix())
	return errors.Wrap(err, "audit: append")
}

type ListOpts struct {
	Key    string
	Type   string
	Limit  int
	Offset int
}

// List returns events newest first.
func (r *EventRepo) List(ctx context.Context, opts ListOpts) ([]Event, error) {
	limit, offset := db.Page(opts.Limit, opts.Offset, 100, 500)
	var args db.Args
	q := `SELECT seq, site_id, typ, key, data, created_at FROM event_log WHERE 1=1`
	if opts.Key != "" {
		q += " AND key=" + args.Add(opts.Key)
	}
	if opts.Type != "" {
		q += " AND typ=" + args.Add(opts.Type)
	}
	q += " ORDER BY seq DESC LIMIT " + args.Add(limit) + " OFFSET " + args.Add(offset)

	out := []Event{}
	if err := sqlx.SelectContext(ctx, r.db, &out, q, args...); err != nil {
		return nil, errors.Wrap(err, "audit: list")
	}
	for i := range out {
		out[i].Data = json.RawMessage(out[i].DataJSON)
	}
	return out, nil
}
