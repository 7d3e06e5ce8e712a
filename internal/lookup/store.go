// Package lookup resolves the forum entities a send references: users,
// posts, topics, categories, group mailboxes and reply keys. Lookups are
// read-only except for reply-key allocation.
package lookup

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// User is a forum account referenced by a notification.
type User struct {
	ID       int64
	Username string
	Email    string
	Staff    bool
}

// Post is a forum post; existence is checked before header enrichment.
type Post struct {
	ID      int64
	TopicID int64
}

// Topic is a forum topic with its optional category.
type Topic struct {
	ID         int64
	Title      string
	Slug       string
	CategoryID sql.NullInt64
}

// URL returns the public topic URL under the given base.
func (t *Topic) URL(baseURL string) string {
	return fmt.Sprintf("%s/t/%s/%d", baseURL, t.Slug, t.ID)
}

// SluglessURL returns the topic URL without the slug, for private sites
// that keep titles out of headers.
func (t *Topic) SluglessURL(baseURL string) string {
	return fmt.Sprintf("%s/t/%d", baseURL, t.ID)
}

// Category is a forum category, possibly nested one level deep.
type Category struct {
	ID       int64
	Name     string
	ParentID sql.NullInt64
}

// Store provides database lookups for delivery context resolution.
type Store struct {
	db *sql.DB
}

// NewStore creates a lookup store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetUser retrieves a user by id. Returns (nil, nil) when absent.
func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	query := `SELECT id, username, email, staff FROM users WHERE id = $1`

	u := &User{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Username, &u.Email, &u.Staff)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// UserIDsByEmail resolves the user ids behind a set of addresses, for the
// cc bookkeeping on the delivery log. Unknown addresses are silently
// absent from the result.
func (s *Store) UserIDsByEmail(ctx context.Context, emails []string) ([]int64, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	lowered := make([]string, len(emails))
	for i, e := range emails {
		lowered[i] = strings.ToLower(strings.TrimSpace(e))
	}

	query := `SELECT id FROM users WHERE lower(email) = ANY($1) ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(lowered))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetPost retrieves a post by id. Returns (nil, nil) when the post is
// deleted or was never there; the pipeline skips the send.
func (s *Store) GetPost(ctx context.Context, postID int64) (*Post, error) {
	query := `SELECT id, topic_id FROM posts WHERE id = $1 AND deleted_at IS NULL`

	p := &Post{}
	err := s.db.QueryRowContext(ctx, query, postID).Scan(&p.ID, &p.TopicID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// GetTopic retrieves a topic by id. Returns (nil, nil) when deleted.
func (s *Store) GetTopic(ctx context.Context, id int64) (*Topic, error) {
	query := `SELECT id, title, slug, category_id FROM topics WHERE id = $1 AND deleted_at IS NULL`

	t := &Topic{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.Title, &t.Slug, &t.CategoryID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// GetCategory retrieves a category by id. Returns (nil, nil) when absent,
// which downgrades List-ID to the uncategorized form.
func (s *Store) GetCategory(ctx context.Context, id int64) (*Category, error) {
	query := `SELECT id, name, parent_category_id FROM categories WHERE id = $1`

	c := &Category{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.ParentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// SMTPGroupID resolves the group mailbox sending under fromAddress, if
// any. A hit means this send is a group conversation, not list traffic.
func (s *Store) SMTPGroupID(ctx context.Context, fromAddress string) (*int64, error) {
	if strings.TrimSpace(fromAddress) == "" {
		return nil, nil
	}
	query := `SELECT id FROM groups WHERE email_username = $1 AND smtp_enabled = true`

	var id int64
	err := s.db.QueryRowContext(ctx, query, fromAddress).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// ReplyKey returns the reply-by-email key for a post/user pair, creating
// one on first use. The key routes an inbound reply back to the right
// post on the right account.
func (s *Store) ReplyKey(ctx context.Context, postID, userID int64) (string, error) {
	if postID == 0 || userID == 0 {
		return "", nil
	}

	var key string
	err := s.db.QueryRowContext(ctx,
		`SELECT reply_key FROM post_reply_keys WHERE post_id = $1 AND user_id = $2`,
		postID, userID).Scan(&key)
	if err == nil {
		return key, nil
	}
	if err != sql.ErrNoRows {
		return "", err
	}

	id := uuid.New()
	key = hex.EncodeToString(id[:])
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO post_reply_keys (id, post_id, user_id, reply_key, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), postID, userID, key, time.Now())
	if err != nil {
		return "", err
	}
	return key, nil
}
