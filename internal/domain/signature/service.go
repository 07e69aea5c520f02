package signature

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/samasante/amina/internal/domain/documents"
	"github.com/samasante/amina/internal/platform/apperr"
	"github.com/samasante/amina/internal/platform/metrics"
)

// DocumentSource renders the canonical content of a signable document.
// *documents.Service implements it.
type DocumentSource interface {
	LoadDocument(ctx context.Context, docType string, id int64) (*documents.Document, error)
}

type Service struct {
	repo    Repository
	docs    DocumentSource
	signer  *Signer
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(repo Repository, docs DocumentSource, signer *Signer, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		docs:    docs,
		signer:  signer,
		metrics: m,
		logger:  logger.With().Str("component", "signature-service").Logger(),
		now:     time.Now,
	}
}

func validateRef(documentID int64, documentType string) error {
	if documentID <= 0 {
		return apperr.Invalid("document_id must be a positive integer")
	}
	if !signableTypes[documentType] {
		return apperr.Invalid("document type %q cannot be signed", documentType)
	}
	return nil
}

// Document loads a signable document with its canonical content.
func (s *Service) Document(ctx context.Context, documentType string, documentID int64) (*documents.Document, error) {
	if err := validateRef(documentID, documentType); err != nil {
		return nil, err
	}
	return s.docs.LoadDocument(ctx, documentType, documentID)
}

// Sign hashes content, signs the composite record and persists it.
func (s *Service) Sign(ctx context.Context, documentID int64, documentType, userID, content string) (*Signature, error) {
	if err := validateRef(documentID, documentType); err != nil {
		s.metrics.Signature("sign", "rejected")
		return nil, err
	}
	if strings.TrimSpace(userID) == "" {
		s.metrics.Signature("sign", "rejected")
		return nil, apperr.Invalid("user_id is required")
	}

	sig := &Signature{
		DocumentID:   documentID,
		DocumentType: documentType,
		UserID:       userID,
		SignedAt:     s.now(),
	}
	s.signer.Sign(sig, content)
	if err := s.repo.Create(ctx, sig); err != nil {
		s.metrics.Signature("sign", "error")
		return nil, err
	}

	s.metrics.Signature("sign", "ok")
	s.logger.Info().
		Int64("document_id", documentID).
		Str("document_type", documentType).
		Str("user_id", userID).
		Msg("document signed")
	return sig, nil
}

// Verify checks content against the latest signature of the document.
func (s *Service) Verify(ctx context.Context, documentID int64, documentType, content string) (*VerificationResult, error) {
	if err := validateRef(documentID, documentType); err != nil {
		return nil, err
	}
	sig, err := s.repo.Latest(ctx, documentType, documentID)
	if err != nil {
		return nil, err
	}

	res := &VerificationResult{Signature: sig}
	switch {
	case sig == nil:
		res.Message = MsgNoSignature
	case HashContent(content) != sig.ContentHash:
		res.Message = MsgModified
	case !s.signer.Authentic(sig):
		res.Message = MsgInvalid
	default:
		res.Valid = true
		res.Message = MsgValid
	}

	s.metrics.Signature("verify", res.Message)
	if sig != nil && !res.Valid {
		s.logger.Warn().
			Int64("document_id", documentID).
			Str("document_type", documentType).
			Str("result", res.Message).
			Msg("signature verification failed")
	}
	return res, nil
}

// CertificateText renders a human readable attestation of the latest
// signature of the document.
func (s *Service) CertificateText(ctx context.Context, documentID int64, documentType string) (string, error) {
	if err := validateRef(documentID, documentType); err != nil {
		return "", err
	}
	sig, err := s.repo.Latest(ctx, documentType, documentID)
	if err != nil {
		return "", err
	}
	if sig == nil {
		return "", fmt.Errorf("signature of %s %d: %w", documentType, documentID, apperr.ErrNotFound)
	}

	short := sig.Signature
	if len(short) > 16 {
		short = short[:16] + "..."
	}
	var b strings.Builder
	b.WriteString("CERTIFICAT DE SIGNATURE ÉLECTRONIQUE\n")
	fmt.Fprintf(&b, "Document : %s n°%d\n", sig.DocumentType, sig.DocumentID)
	fmt.Fprintf(&b, "Signataire : %s\n", sig.UserID)
	fmt.Fprintf(&b, "Date de signature : %s\n", sig.SignedAt.UTC().Format(signedAtLayout))
	fmt.Fprintf(&b, "Empreinte SHA-256 : %s\n", sig.ContentHash)
	fmt.Fprintf(&b, "Signature HMAC-SHA256 : %s\n", short)
	return b.String(), nil
}
