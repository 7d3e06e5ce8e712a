package maillog

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
)

func setupStore(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return NewStore(db), mock, func() { db.Close() }
}

func TestInsertSentAssignsIdentity(t *testing.T) {
	store, mock, cleanup := setupStore(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO email_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &Entry{
		EmailType: "user_posted",
		ToAddress: "user@example.com",
		MessageID: "<abc@acme.example.com>",
	}
	if err := store.InsertSent(context.Background(), entry); err != nil {
		t.Fatalf("InsertSent() error: %v", err)
	}
	if entry.ID == uuid.Nil {
		t.Error("InsertSent() should assign an id")
	}
	if entry.CreatedAt.IsZero() {
		t.Error("InsertSent() should stamp created_at")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestInsertSkip(t *testing.T) {
	store, mock, cleanup := setupStore(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO skipped_email_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &SkipEntry{
		EmailType: "user_posted",
		ToAddress: "x@y.invalid",
		Reason:    "to_invalid",
	}
	if err := store.InsertSkip(context.Background(), entry); err != nil {
		t.Fatalf("InsertSkip() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRecentSkipped(t *testing.T) {
	store, mock, cleanup := setupStore(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "email_type", "to_address", "reason", "detail", "created_at"}).
		AddRow(uuid.NewString(), "user_posted", "x@y.invalid", "to_invalid", "", now).
		AddRow(uuid.NewString(), "digest", "a@b.com", "body_blank", "", now.Add(-time.Minute))
	mock.ExpectQuery("SELECT id, email_type, to_address, reason, detail, created_at").
		WithArgs(10).
		WillReturnRows(rows)

	entries, err := store.RecentSkipped(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentSkipped() error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("RecentSkipped() returned %d entries, want 2", len(entries))
	}
	if entries[0].Reason != "to_invalid" {
		t.Errorf("first entry reason = %q", entries[0].Reason)
	}
}

func TestJoinAddresses(t *testing.T) {
	got := JoinAddresses([]string{"a@x.com", "b@x.com"})
	if got != "a@x.com;b@x.com" {
		t.Errorf("JoinAddresses() = %q", got)
	}
	if JoinAddresses(nil) != "" {
		t.Error("JoinAddresses(nil) should be empty")
	}
}
