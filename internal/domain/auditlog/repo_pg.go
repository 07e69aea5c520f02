package auditlog

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samasante/amina/internal/platform/compliance"
	"github.com/samasante/amina/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const entryCols = `id, user_id, action, entity_type, entity_id, prior_state,
	COALESCE(ip_address, ''), COALESCE(user_agent, ''), COALESCE(request_id, ''), created_at`

func scanEntry(row pgx.Row) (*compliance.Entry, error) {
	var e compliance.Entry
	var prior []byte
	err := row.Scan(&e.ID, &e.UserID, &e.Action, &e.EntityType, &e.EntityID, &prior,
		&e.IPAddress, &e.UserAgent, &e.RequestID, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.PriorState = prior
	return &e, nil
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*compliance.Entry, error) {
	e, err := scanEntry(r.conn(ctx).QueryRow(ctx, `SELECT `+entryCols+` FROM audit_log WHERE id = $1`, id))
	if err != nil {
		return nil, db.NotFoundOr(err, "audit entry", id)
	}
	return e, nil
}

func (r *repoPG) Search(ctx context.Context, f Filter, limit, offset int) ([]*compliance.Entry, int, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if f.EntityType != "" {
		add("entity_type = $%d", f.EntityType)
	}
	if f.EntityID != 0 {
		add("entity_id = $%d", f.EntityID)
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at < $%d", f.To)
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM audit_log`+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("audit count: %w", err)
	}

	n := len(args)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT `+entryCols+` FROM audit_log`+whereClause+` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, n+1, n+2),
		args...)
	if err != nil {
		return nil, 0, fmt.Errorf("audit search: %w", err)
	}
	defer rows.Close()

	var items []*compliance.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("audit scan: %w", err)
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}
