package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const devKeyLength = 32

// Signer computes content hashes and HMACs under one server-held key.
type Signer struct {
	key []byte
}

func NewSigner(key []byte) *Signer {
	return &Signer{key: key}
}

// KeyFromConfig returns the configured secret. Outside production a missing
// secret is replaced by a random key, so signatures do not survive a restart.
func KeyFromConfig(secret string, production bool, logger zerolog.Logger) ([]byte, error) {
	if secret != "" {
		return []byte(secret), nil
	}
	if production {
		return nil, fmt.Errorf("signature secret key is required in production")
	}
	key := make([]byte, devKeyLength)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate signature key: %w", err)
	}
	logger.Warn().Msg("SIGNATURE_SECRET_KEY not set, using a random key: signatures will not verify after a restart")
	return key, nil
}

// HashContent is the hex SHA-256 of content.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// composite is the signed string: id:type:user:hash:signedAt.
func composite(documentID int64, documentType, userID, contentHash string, signedAt time.Time) string {
	return strings.Join([]string{
		strconv.FormatInt(documentID, 10),
		documentType,
		userID,
		contentHash,
		signedAt.UTC().Format(signedAtLayout),
	}, ":")
}

func (s *Signer) mac(msg string) []byte {
	h := hmac.New(sha256.New, s.key)
	h.Write([]byte(msg))
	return h.Sum(nil)
}

// Sign fills ContentHash and Signature of sig from content.
func (s *Signer) Sign(sig *Signature, content string) {
	sig.SignedAt = sig.SignedAt.UTC().Truncate(time.Millisecond)
	sig.ContentHash = HashContent(content)
	sig.Signature = hex.EncodeToString(s.mac(composite(sig.DocumentID, sig.DocumentType, sig.UserID, sig.ContentHash, sig.SignedAt)))
}

// Authentic re-derives the HMAC from the stored fields of sig.
func (s *Signer) Authentic(sig *Signature) bool {
	got, err := hex.DecodeString(sig.Signature)
	if err != nil {
		return false
	}
	return hmac.Equal(got, s.mac(composite(sig.DocumentID, sig.DocumentType, sig.UserID, sig.ContentHash, sig.SignedAt)))
}
