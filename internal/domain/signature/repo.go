package signature

import "context"

type Repository interface {
	Create(ctx context.Context, s *Signature) error
	// Latest returns the most recent signature of a document, or nil when
	// it was never signed.
	Latest(ctx context.Context, documentType string, documentID int64) (*Signature, error)
}
