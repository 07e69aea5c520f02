package compliance

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samasante/amina/internal/platform/db"
)

const (
	ActionAccess = "access"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// RequestInfo is the HTTP context attached to audit entries.
type RequestInfo struct {
	IPAddress string
	UserAgent string
	RequestID string
}

type requestInfoKey struct{}

func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

func RequestInfoFromContext(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info
}

// Entry is one row of the append-only audit_log table.
type Entry struct {
	ID         int64           `json:"id"`
	UserID     string          `json:"user_id"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   int64           `json:"entity_id"`
	PriorState json.RawMessage `json:"prior_state,omitempty"`
	IPAddress  string          `json:"ip_address,omitempty"`
	UserAgent  string          `json:"user_agent,omitempty"`
	RequestID  string          `json:"request_id,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// AuditLogger writes audit entries through the caller's transaction or tenant
// connection, so an entry commits or rolls back with the change it records.
type AuditLogger struct {
	pool *pgxpool.Pool
}

func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// NewEntry builds an entry carrying ctx's request info. priorState is
// marshalled to JSON when not nil.
func NewEntry(ctx context.Context, userID, action, entityType string, entityID int64, priorState any) (*Entry, error) {
	info := RequestInfoFromContext(ctx)
	e := &Entry{
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		IPAddress:  info.IPAddress,
		UserAgent:  info.UserAgent,
		RequestID:  info.RequestID,
	}
	if priorState != nil {
		raw, err := json.Marshal(priorState)
		if err != nil {
			return nil, fmt.Errorf("marshal prior state of %s %d: %w", entityType, entityID, err)
		}
		e.PriorState = raw
	}
	return e, nil
}

func (a *AuditLogger) Log(ctx context.Context, e *Entry) error {
	var prior any
	if len(e.PriorState) > 0 {
		prior = []byte(e.PriorState)
	}
	err := db.Conn(ctx, a.pool).QueryRow(ctx, `
		INSERT INTO audit_log (user_id, action, entity_type, entity_id, prior_state, ip_address, user_agent, request_id)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''))
		RETURNING id, created_at`,
		e.UserID, e.Action, e.EntityType, e.EntityID, prior, e.IPAddress, e.UserAgent, e.RequestID,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	return nil
}

// LogAccess records a read of entityType/entityID by userID.
func (a *AuditLogger) LogAccess(ctx context.Context, userID, entityType string, entityID int64) error {
	e, err := NewEntry(ctx, userID, ActionAccess, entityType, entityID, nil)
	if err != nil {
		return err
	}
	return a.Log(ctx, e)
}

// LogDelete records the deletion or anonymization of an entity together with
// the state it had before.
func (a *AuditLogger) LogDelete(ctx context.Context, userID, entityType string, entityID int64, priorState any) error {
	e, err := NewEntry(ctx, userID, ActionDelete, entityType, entityID, priorState)
	if err != nil {
		return err
	}
	return a.Log(ctx, e)
}
