package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the durable Store backed by Postgres. The seq column is a
// bigserial, so ordering survives restarts without coordination here.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Schema creates the audit table. Run once at startup; idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS payer_audit_log (
	id         uuid PRIMARY KEY,
	seq        bigserial,
	recorded   timestamptz NOT NULL,
	action     text NOT NULL,
	resource   text NOT NULL,
	user_id    text NOT NULL,
	user_name  text NOT NULL,
	details    jsonb,
	status     text NOT NULL
);
CREATE INDEX IF NOT EXISTS payer_audit_log_recorded_idx ON payer_audit_log (recorded DESC, seq DESC);
CREATE INDEX IF NOT EXISTS payer_audit_log_action_idx ON payer_audit_log (action);
`

// EnsureSchema applies Schema.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

const auditCols = `id, seq, recorded, action, resource, user_id, user_name, details, status`

func (s *PGStore) Append(ctx context.Context, e *Entry) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO payer_audit_log (id, recorded, action, resource, user_id, user_name, details, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING seq`,
		e.ID, e.Timestamp, string(e.Action), e.Resource, e.UserID, e.UserName, e.Details, string(e.Status),
	).Scan(&e.Seq)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.Seq, &e.Timestamp, &e.Action, &e.Resource, &e.UserID, &e.UserName, &e.Details, &e.Status)
	return &e, err
}

func (s *PGStore) Query(ctx context.Context, f Filter) ([]*Entry, error) {
	where := []string{}
	args := []interface{}{}
	idx := 1

	if f.Action != "" {
		where = append(where, fmt.Sprintf("action = $%d", idx))
		args = append(args, string(f.Action))
		idx++
	}
	if f.CardNumber != "" {
		where = append(where, fmt.Sprintf("(resource LIKE $%d OR details->>'card_number' = $%d)", idx, idx+1))
		args = append(args, "%"+f.CardNumber+"%", f.CardNumber)
		idx += 2
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	q := fmt.Sprintf("SELECT %s FROM payer_audit_log %s ORDER BY recorded DESC, seq DESC", auditCols, whereClause)
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var result []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
