package pgstore_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/linnemanlabs/acuity/internal/postgres"
	"github.com/linnemanlabs/acuity/internal/triage"
	"github.com/linnemanlabs/acuity/internal/triage/pgstore"
)

func openStore(t *testing.T) *pgstore.Store {
	t.Helper()
	dsn := os.Getenv("ACUITY_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("ACUITY_TEST_DATABASE_URL not set, skipping integration test")
	}
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("postgres.NewPool: %v", err)
	}
	t.Cleanup(pool.Close)

	s, err := pgstore.New(ctx, pool)
	if err != nil {
		t.Fatalf("pgstore.New: %v", err)
	}
	return s
}

func newSession() *triage.Session {
	now := time.Now().Truncate(time.Microsecond).UTC()
	return &triage.Session{
		ID: uuid.NewString(),
		Patient: triage.PatientContext{
			Age:            41,
			ChiefComplaint: "persistent cough",
		},
		Messages: []triage.Message{
			{Role: triage.RoleSystem, Content: "system prompt", Timestamp: now},
			{Role: triage.RoleAssistant, Content: "When did the cough start?", Timestamp: now},
		},
		CreatedAt:     now,
		LastUpdatedAt: now,
		Status:        triage.StatusActive,
	}
}

func TestPutAndGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	sess := newSession()
	if err := s.Put(ctx, sess); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Patient.ChiefComplaint != "persistent cough" {
		t.Errorf("ChiefComplaint = %q, want %q", got.Patient.ChiefComplaint, "persistent cough")
	}
	if len(got.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2", len(got.Messages))
	}
	if got.Messages[1].Role != triage.RoleAssistant {
		t.Errorf("Messages[1].Role = %q, want assistant", got.Messages[1].Role)
	}
	if got.Status != triage.StatusActive {
		t.Errorf("Status = %q, want active", got.Status)
	}
	if got.Result != nil {
		t.Error("Result should be nil for an active session")
	}
}

func TestPut_UpdatesExistingMessages(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	sess := newSession()
	if err := s.Put(ctx, sess); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// Refresh the system prompt and append a turn, as the controller does.
	sess.Messages[0].Content = "system prompt v2"
	sess.Messages = append(sess.Messages, triage.Message{
		Role: triage.RoleUser, Content: "About a week ago", Timestamp: time.Now().UTC(),
	})
	if err := s.Put(ctx, sess); err != nil {
		t.Fatalf("second Put: %v", err)
	}

	got, err := s.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Messages) != 3 {
		t.Fatalf("len(Messages) = %d, want 3", len(got.Messages))
	}
	if got.Messages[0].Content != "system prompt v2" {
		t.Errorf("Messages[0].Content = %q, want refreshed prompt", got.Messages[0].Content)
	}
}

func TestPut_FinalizedSessionRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	sess := newSession()
	sess.Status = triage.StatusComplete
	sess.Result = &triage.Result{
		UrgencyLevel:      triage.UrgencyUrgent,
		RecommendedAction: "Seek care within hours",
		Reasoning:         "breathing difficulty reported",
		WarningSigns:      []string{"can't breathe"},
		Disclaimer:        triage.Disclaimer,
	}
	sess.Sources = []triage.Source{
		{Content: "reference text", Metadata: map[string]string{"source": "resp.jsonl"}},
	}
	if err := s.Put(ctx, sess); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Result == nil {
		t.Fatal("Result is nil, want finalized result")
	}
	if got.Result.UrgencyLevel != triage.UrgencyUrgent {
		t.Errorf("UrgencyLevel = %q, want URGENT", got.Result.UrgencyLevel)
	}
	if len(got.Sources) != 1 || got.Sources[0].Metadata["source"] != "resp.jsonl" {
		t.Errorf("Sources = %+v, want one source from resp.jsonl", got.Sources)
	}
}

func TestGet_Missing(t *testing.T) {
	s := openStore(t)

	_, err := s.Get(context.Background(), uuid.NewString())
	if !errors.Is(err, triage.ErrSessionNotFound) {
		t.Fatalf("Get error = %v, want ErrSessionNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	sess := newSession()
	if err := s.Put(ctx, sess); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, sess.ID); !errors.Is(err, triage.ErrSessionNotFound) {
		t.Fatalf("Get after Delete error = %v, want ErrSessionNotFound", err)
	}
}
