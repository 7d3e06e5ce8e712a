// Package maillog persists the append-only delivery record stream: one
// immutable row per sent email, one per policy skip. Rows are never
// updated in place, so concurrent pipeline runs insert without
// coordination.
package maillog

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Entry is a persisted record of an accepted send. It exists only after
// the transport accepted the message.
type Entry struct {
	ID           uuid.UUID `json:"id"`
	EmailType    string    `json:"email_type"`
	ToAddress    string    `json:"to_address"`
	CCAddresses  string    `json:"cc_addresses,omitempty"`
	CCUserIDs    []int64   `json:"cc_user_ids,omitempty"`
	BCCAddresses string    `json:"bcc_addresses,omitempty"`

	UserID  *int64 `json:"user_id,omitempty"`
	PostID  *int64 `json:"post_id,omitempty"`
	TopicID *int64 `json:"topic_id,omitempty"`

	BounceKey   string `json:"bounce_key,omitempty"`
	SMTPGroupID *int64 `json:"smtp_group_id,omitempty"`
	// Raw is the full wire-form content, kept only for group-mailbox
	// sends as a deliverability audit trail.
	Raw string `json:"raw,omitempty"`

	MessageID         string    `json:"message_id"`
	TransportResponse string    `json:"transport_response,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// SkipEntry is a persisted record of a policy-driven non-send.
type SkipEntry struct {
	ID        uuid.UUID `json:"id"`
	EmailType string    `json:"email_type"`
	ToAddress string    `json:"to_address"`
	Reason    string    `json:"reason"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// JoinAddresses collapses an address list into the single stored column.
func JoinAddresses(addrs []string) string {
	return strings.Join(addrs, ";")
}

// Store provides append-only access to the delivery log tables.
type Store struct {
	db *sql.DB
}

// NewStore creates a maillog store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// InsertSent persists a delivery record. Called exactly once per
// accepted send, after the transport call returned.
func (s *Store) InsertSent(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	query := `INSERT INTO email_logs (id, email_type, to_address, cc_addresses, cc_user_ids,
		bcc_addresses, user_id, post_id, topic_id, bounce_key, smtp_group_id, raw,
		message_id, transport_response, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := s.db.ExecContext(ctx, query, e.ID, e.EmailType, e.ToAddress, e.CCAddresses,
		pq.Array(e.CCUserIDs), e.BCCAddresses, e.UserID, e.PostID, e.TopicID, e.BounceKey,
		e.SMTPGroupID, e.Raw, e.MessageID, e.TransportResponse, e.CreatedAt)
	return err
}

// InsertSkip persists a skip record with its reason code.
func (s *Store) InsertSkip(ctx context.Context, e *SkipEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	query := `INSERT INTO skipped_email_logs (id, email_type, to_address, reason, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.ExecContext(ctx, query, e.ID, e.EmailType, e.ToAddress, e.Reason, e.Detail, e.CreatedAt)
	return err
}

// RecentSent returns the latest delivery records, newest first.
func (s *Store) RecentSent(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, email_type, to_address, cc_addresses, bcc_addresses, user_id,
		post_id, topic_id, bounce_key, smtp_group_id, message_id, transport_response, created_at
		FROM email_logs ORDER BY created_at DESC LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		err := rows.Scan(&e.ID, &e.EmailType, &e.ToAddress, &e.CCAddresses, &e.BCCAddresses,
			&e.UserID, &e.PostID, &e.TopicID, &e.BounceKey, &e.SMTPGroupID,
			&e.MessageID, &e.TransportResponse, &e.CreatedAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RecentSkipped returns the latest skip records, newest first.
func (s *Store) RecentSkipped(ctx context.Context, limit int) ([]*SkipEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, email_type, to_address, reason, detail, created_at
		FROM skipped_email_logs ORDER BY created_at DESC LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*SkipEntry
	for rows.Next() {
		e := &SkipEntry{}
		if err := rows.Scan(&e.ID, &e.EmailType, &e.ToAddress, &e.Reason, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
