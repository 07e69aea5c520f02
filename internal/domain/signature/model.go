// Package signature attaches tamper-evident HMAC-SHA256 signatures to
// prescriptions, certificates and referral letters.
package signature

import (
	"time"

	"github.com/samasante/amina/internal/domain/documents"
)

// Verification messages.
const (
	MsgValid       = "valid"
	MsgNoSignature = "no signature found"
	MsgModified    = "document modified"
	MsgInvalid     = "invalid signature"
)

// signedAtLayout is RFC 3339 with milliseconds. Timestamps are truncated to
// the millisecond so they survive a database round trip unchanged.
const signedAtLayout = "2006-01-02T15:04:05.000Z07:00"

var signableTypes = map[string]bool{
	documents.TypePrescription:   true,
	documents.TypeCertificate:    true,
	documents.TypeReferralLetter: true,
}

type Signature struct {
	ID           int64     `db:"id" json:"id"`
	DocumentID   int64     `db:"document_id" json:"document_id"`
	DocumentType string    `db:"document_type" json:"document_type"`
	UserID       string    `db:"user_id" json:"user_id"`
	ContentHash  string    `db:"content_hash" json:"content_hash"`
	Signature    string    `db:"signature" json:"signature"`
	SignedAt     time.Time `db:"signed_at" json:"signed_at"`
}

type VerificationResult struct {
	Valid     bool       `json:"valid"`
	Message   string     `json:"message"`
	Signature *Signature `json:"signature,omitempty"`
}
