package attempts

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/patientcare/offers/internal/testutil"
	"github.com/patientcare/offers/pkg/pc/config"
	"github.com/patientcare/offers/pkg/pc/logger"
	"golang.org/x/crypto/blake2b"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	db, err := testutil.NewTestDB()
	if err != nil {
		t.Fatalf("NewTestDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	svc := NewService(&testutil.TestDBProvider{DB: db}, &config.Config{}, logger.NewNoopLogger())
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return svc
}

func TestServiceRecordAndList(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first := NewAttempt("visitor-1", "monthly-offer", "d1", "3")
	first.Outcome = OutcomeSuccess
	first.StatusCode = 200
	first.CreatedAt = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	second := NewAttempt("visitor-2", "", "d2", "6")
	second.Outcome = OutcomeError
	second.StatusCode = 500
	second.Error = "unexpected status from patient service: 500 Internal Server Error"
	second.CreatedAt = first.CreatedAt.Add(time.Minute)

	for _, a := range []*Attempt{first, second} {
		if err := svc.Record(ctx, a); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	list, err := svc.List(ctx, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List() returned %d attempts, want 2", len(list))
	}
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Errorf("List() order = %s, %s; want newest first", list[0].ID, list[1].ID)
	}

	got := list[1]
	if got.VisitorID != "visitor-1" || got.OfferSlug != "monthly-offer" || got.Months != "3" {
		t.Errorf("attempt = %+v", got)
	}
	if got.Outcome != OutcomeSuccess || got.StatusCode != 200 {
		t.Errorf("outcome = %s/%d, want success/200", got.Outcome, got.StatusCode)
	}
	if !got.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, first.CreatedAt)
	}
	if list[0].Error == "" {
		t.Error("error text was not stored")
	}
}

func TestServiceListLimit(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		a := NewAttempt("v", "", "d", "1")
		a.Outcome = OutcomeSuccess
		if err := svc.Record(ctx, a); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	tests := []struct {
		limit int
		want  int
	}{
		{1, 1},
		{2, 2},
		{0, 3},
		{-1, 3},
	}
	for _, tt := range tests {
		list, err := svc.List(ctx, tt.limit)
		if err != nil {
			t.Fatalf("List(%d) error = %v", tt.limit, err)
		}
		if len(list) != tt.want {
			t.Errorf("List(%d) returned %d, want %d", tt.limit, len(list), tt.want)
		}
	}
}

func TestServiceCountByOutcome(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	outcomes := []Outcome{OutcomeSuccess, OutcomeError, OutcomeError}
	for _, o := range outcomes {
		a := NewAttempt("v", "", "d", "1")
		a.Outcome = o
		if err := svc.Record(ctx, a); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	counts, err := svc.CountByOutcome(ctx)
	if err != nil {
		t.Fatalf("CountByOutcome() error = %v", err)
	}
	if counts[OutcomeSuccess] != 1 || counts[OutcomeError] != 2 {
		t.Errorf("counts = %v, want success=1 error=2", counts)
	}
}

func TestServiceWithoutDatabase(t *testing.T) {
	svc := NewService(&testutil.TestDBProvider{}, &config.Config{}, logger.NewNoopLogger())
	if err := svc.Start(context.Background()); !errors.Is(err, ErrNoDatabase) {
		t.Errorf("Start() error = %v, want ErrNoDatabase", err)
	}
	if err := svc.Record(context.Background(), &Attempt{}); !errors.Is(err, ErrNoDatabase) {
		t.Errorf("Record() error = %v, want ErrNoDatabase", err)
	}
}

func TestPhoneDigestDependsOnKey(t *testing.T) {
	keyA := []byte("clinic-key-a")
	keyB := []byte("clinic-key-b")

	a, err := PhoneDigest(keyA, "712345678")
	if err != nil {
		t.Fatalf("PhoneDigest() error = %v", err)
	}
	if len(a) != 32 {
		t.Errorf("digest length = %d, want 32", len(a))
	}
	if again, _ := PhoneDigest(keyA, "712345678"); again != a {
		t.Error("digest is not stable under the same key")
	}
	if other, _ := PhoneDigest(keyA, "712345679"); other == a {
		t.Error("different numbers share a digest")
	}
	if b, _ := PhoneDigest(keyB, "712345678"); b == a {
		t.Error("digest does not change with the key")
	}

	unkeyed := blake2b.Sum256([]byte("712345678"))
	if strings.HasPrefix(hex.EncodeToString(unkeyed[:]), a) {
		t.Error("digest matches the unkeyed hash")
	}

	if _, err := PhoneDigest(nil, "712345678"); err != nil {
		t.Errorf("empty key error = %v", err)
	}
	if _, err := PhoneDigest(make([]byte, 65), "712345678"); err == nil {
		t.Error("expected error for a key longer than 64 bytes")
	}
}

func TestServiceDigestKey(t *testing.T) {
	db, err := testutil.NewTestDB()
	if err != nil {
		t.Fatalf("NewTestDB() error = %v", err)
	}
	defer db.Close()
	provider := &testutil.TestDBProvider{DB: db}
	ctx := context.Background()

	start := func(cfg *config.Config) Service {
		t.Helper()
		svc := NewService(provider, cfg, logger.NewNoopLogger())
		if err := svc.Start(ctx); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		return svc
	}
	digest := func(svc Service) string {
		t.Helper()
		d, err := svc.PhoneDigest("712345678")
		if err != nil {
			t.Fatalf("PhoneDigest() error = %v", err)
		}
		return d
	}

	generated := digest(start(&config.Config{}))
	if restarted := digest(start(&config.Config{})); restarted != generated {
		t.Error("generated key was not kept across restarts")
	}

	configured := digest(start(&config.Config{Attempts: config.AttemptsConfig{DigestKey: "from-config"}}))
	if configured == generated {
		t.Error("configured key was ignored")
	}
	want, _ := PhoneDigest([]byte("from-config"), "712345678")
	if configured != want {
		t.Errorf("digest = %q, want %q", configured, want)
	}

	long := strings.Repeat("k", 100)
	if d := digest(start(&config.Config{Attempts: config.AttemptsConfig{DigestKey: long}})); d == "" {
		t.Error("long configured key produced no digest")
	}

	var stored int
	if err := db.QueryRow(`SELECT COUNT(*) FROM attempt_settings`).Scan(&stored); err != nil {
		t.Fatalf("cannot count settings: %v", err)
	}
	if stored != 1 {
		t.Errorf("stored keys = %d, want 1", stored)
	}
}

func TestServicePhoneDigestBeforeStart(t *testing.T) {
	svc := NewService(&testutil.TestDBProvider{}, &config.Config{}, logger.NewNoopLogger())
	if _, err := svc.PhoneDigest("712345678"); !errors.Is(err, ErrNotStarted) {
		t.Errorf("PhoneDigest() error = %v, want ErrNotStarted", err)
	}
}
