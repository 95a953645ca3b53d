package attempts

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patientcare/offers/pkg/pc/config"
	"github.com/patientcare/offers/pkg/pc/logger"
	"golang.org/x/crypto/blake2b"
)

const (
	defaultListLimit = 50
	digestKeySetting = "phone_digest_key"
	digestKeySize    = 32
)

var (
	ErrNoDatabase = errors.New("attempt log has no database")
	ErrNotStarted = errors.New("attempt log not started")
)

// Service stores submission attempts.
type Service interface {
	Start(ctx context.Context) error
	Record(ctx context.Context, a *Attempt) error
	List(ctx context.Context, limit int) ([]*Attempt, error)
	CountByOutcome(ctx context.Context) (map[Outcome]int64, error)
	PhoneDigest(phone string) (string, error)
}

// DBProvider provides access to the database.
type DBProvider interface {
	GetDB() *sql.DB
}

type service struct {
	dbProvider DBProvider
	digestKey  []byte
	cfg        *config.Config
	log        logger.Logger
}

// NewService creates a new attempt log service.
func NewService(dbProvider DBProvider, cfg *config.Config, log logger.Logger) Service {
	return &service{
		dbProvider: dbProvider,
		cfg:        cfg,
		log:        log,
	}
}

// Start resolves the phone digest key: the configured one, else the key stored
// in attempt_settings, else a new random key that is stored for later runs.
func (s *service) Start(ctx context.Context) error {
	db, err := s.db()
	if err != nil {
		return err
	}

	key, err := s.loadDigestKey(ctx, db)
	if err != nil {
		return err
	}
	s.digestKey = key

	s.log.Info("Attempt log service started")
	return nil
}

func (s *service) loadDigestKey(ctx context.Context, db *sql.DB) ([]byte, error) {
	if k := s.cfg.Attempts.DigestKey; k != "" {
		// Keys longer than blake2b allows are compressed to 32 bytes.
		if len(k) > blake2b.Size {
			sum := blake2b.Sum256([]byte(k))
			return sum[:], nil
		}
		return []byte(k), nil
	}

	var stored string
	err := db.QueryRowContext(ctx, `SELECT value FROM attempt_settings WHERE name = ?`, digestKeySetting).Scan(&stored)
	switch {
	case err == nil:
		key, err := hex.DecodeString(stored)
		if err != nil || len(key) == 0 {
			return nil, errors.New("stored phone digest key is corrupt")
		}
		return key, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("cannot read phone digest key: %w", err)
	}

	key := make([]byte, digestKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("cannot generate phone digest key: %w", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO attempt_settings (name, value, created_at) VALUES (?, ?, ?)`,
		digestKeySetting, hex.EncodeToString(key), time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("cannot store phone digest key: %w", err)
	}
	s.log.Info("Generated a new phone digest key")
	return key, nil
}

// PhoneDigest keys the digest with the key resolved by Start.
func (s *service) PhoneDigest(phone string) (string, error) {
	if len(s.digestKey) == 0 {
		return "", ErrNotStarted
	}
	return PhoneDigest(s.digestKey, phone)
}

func (s *service) db() (*sql.DB, error) {
	if s.dbProvider == nil || s.dbProvider.GetDB() == nil {
		return nil, ErrNoDatabase
	}
	return s.dbProvider.GetDB(), nil
}

func (s *service) Record(ctx context.Context, a *Attempt) error {
	db, err := s.db()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO submission_attempts
			(id, visitor_id, offer_slug, phone_digest, months, outcome, status_code, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID.String(), a.VisitorID, a.OfferSlug, a.PhoneDigest, a.Months,
		string(a.Outcome), a.StatusCode, a.Error, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("cannot record attempt: %w", err)
	}
	return nil
}

// List returns the most recent attempts first. A non-positive limit uses the default.
func (s *service) List(ctx context.Context, limit int) ([]*Attempt, error) {
	db, err := s.db()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, visitor_id, offer_slug, phone_digest, months, outcome, status_code, error, created_at
		FROM submission_attempts
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("cannot list attempts: %w", err)
	}
	defer rows.Close()

	list := make([]*Attempt, 0, limit)
	for rows.Next() {
		var (
			a       Attempt
			id      string
			outcome string
		)
		if err := rows.Scan(&id, &a.VisitorID, &a.OfferSlug, &a.PhoneDigest, &a.Months,
			&outcome, &a.StatusCode, &a.Error, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("cannot scan attempt: %w", err)
		}
		a.ID, _ = uuid.Parse(id)
		a.Outcome = Outcome(outcome)
		list = append(list, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cannot list attempts: %w", err)
	}
	return list, nil
}

func (s *service) CountByOutcome(ctx context.Context) (map[Outcome]int64, error) {
	db, err := s.db()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM submission_attempts GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("cannot count attempts: %w", err)
	}
	defer rows.Close()

	counts := make(map[Outcome]int64)
	for rows.Next() {
		var (
			outcome string
			n       int64
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("cannot scan count: %w", err)
		}
		counts[Outcome(outcome)] = n
	}
	return counts, rows.Err()
}
