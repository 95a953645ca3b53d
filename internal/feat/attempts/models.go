package attempts

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// Outcome is the visitor-facing result of one network submission.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// Attempt is one POST made to the patient service on behalf of a visitor.
// The phone number is stored only as a digest.
type Attempt struct {
	ID          uuid.UUID `json:"id"`
	VisitorID   string    `json:"visitor_id"`
	OfferSlug   string    `json:"offer_slug,omitempty"`
	PhoneDigest string    `json:"phone_digest"`
	Months      string    `json:"months"`
	Outcome     Outcome   `json:"outcome"`
	StatusCode  int       `json:"status_code"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewAttempt builds an attempt with a fresh id and timestamp. phoneDigest
// comes from Service.PhoneDigest.
func NewAttempt(visitorID, offerSlug, phoneDigest, months string) *Attempt {
	return &Attempt{
		ID:          uuid.New(),
		VisitorID:   visitorID,
		OfferSlug:   offerSlug,
		PhoneDigest: phoneDigest,
		Months:      months,
		CreatedAt:   time.Now().UTC(),
	}
}

// PhoneDigest returns the BLAKE2b-256 MAC of phone under key, truncated to
// 16 bytes and hex encoded. key must be 1 to 64 bytes long.
func PhoneDigest(key []byte, phone string) (string, error) {
	h, err := blake2b.New256(key)
	if err != nil {
		return "", fmt.Errorf("cannot create phone digest: %w", err)
	}
	h.Write([]byte(phone))
	return hex.EncodeToString(h.Sum(nil)[:16]), nil
}
