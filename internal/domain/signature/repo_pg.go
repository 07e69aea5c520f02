package signature

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samasante/amina/internal/platform/db"
)

const signatureCols = `id, document_id, document_type, user_id, content_hash, signature, signed_at`

type signatureRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &signatureRepoPG{pool: pool}
}

func (r *signatureRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *signatureRepoPG) Create(ctx context.Context, s *Signature) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO document_signature (document_id, document_type, user_id, content_hash, signature, signed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		s.DocumentID, s.DocumentType, s.UserID, s.ContentHash, s.Signature, s.SignedAt,
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("signature create: %w", db.MapError(err))
	}
	return nil
}

func (r *signatureRepoPG) Latest(ctx context.Context, documentType string, documentID int64) (*Signature, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+signatureCols+` FROM document_signature
		WHERE document_type = $1 AND document_id = $2
		ORDER BY signed_at DESC, id DESC
		LIMIT 1`, documentType, documentID)
	if err != nil {
		return nil, fmt.Errorf("signature latest: %w", err)
	}
	s, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[Signature])
	if db.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("signature latest: %w", err)
	}
	return s, nil
}
