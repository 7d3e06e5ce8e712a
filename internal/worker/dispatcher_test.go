package worker

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/mailroom/internal/config"
	"github.com/ignite/mailroom/internal/lookup"
	"github.com/ignite/mailroom/internal/maillog"
	"github.com/ignite/mailroom/internal/message"
	"github.com/ignite/mailroom/internal/pipeline"
	"github.com/ignite/mailroom/internal/render"
	"github.com/ignite/mailroom/internal/transport"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *redis.Client, *transport.Capture, sqlmock.Sqlmock) {
	t.Helper()

	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })

	lookupDB, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { lookupDB.Close() })

	logDB, logMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { logDB.Close() })

	site := config.SiteConfig{
		Title:             "Acme",
		BaseURL:           "https://acme.example.com",
		NotificationEmail: "noreply@acme.example.com",
	}
	capture := transport.NewCapture()
	p := pipeline.New(site, "", lookup.NewStore(lookupDB), maillog.NewStore(logDB),
		capture, pipeline.NewEnricher(render.NewService()))

	return NewDispatcher(rc, p, "", 2), rc, capture, logMock
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestDispatcherProcessesQueuedJob(t *testing.T) {
	d, rc, capture, logMock := newTestDispatcher(t)
	logMock.ExpectExec("INSERT INTO email_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	job := &Job{
		EmailType: "notification",
		Message: &message.OutboundMessage{
			To:       []string{"user@example.com"},
			Subject:  "queued send",
			TextBody: "hello from the queue",
		},
	}
	require.NoError(t, Enqueue(context.Background(), rc, "", job))

	d.Start(context.Background())
	defer d.Stop()

	waitFor(t, 3*time.Second, func() bool { return capture.Count() == 1 })

	delivered := capture.Delivered[0]
	assert.Equal(t, []string{"user@example.com"}, delivered.To)
	assert.Equal(t, "UTF-8", delivered.Charset)

	sent, skipped, failed := d.Stats()
	assert.Equal(t, int64(1), sent)
	assert.Equal(t, int64(0), skipped)
	assert.Equal(t, int64(0), failed)
}

func TestDispatcherCountsSkips(t *testing.T) {
	d, rc, capture, logMock := newTestDispatcher(t)
	logMock.ExpectExec("INSERT INTO skipped_email_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	job := &Job{
		EmailType: "notification",
		Message: &message.OutboundMessage{
			To:       []string{"ghost@anon.invalid"},
			TextBody: "hello",
		},
	}
	require.NoError(t, Enqueue(context.Background(), rc, "", job))

	d.Start(context.Background())
	defer d.Stop()

	waitFor(t, 3*time.Second, func() bool {
		_, skipped, _ := d.Stats()
		return skipped == 1
	})
	assert.Equal(t, 0, capture.Count())
}

func TestDispatcherBadPayloadCountsFailed(t *testing.T) {
	d, rc, _, _ := newTestDispatcher(t)
	require.NoError(t, rc.LPush(context.Background(), DefaultQueue, "not json").Err())

	d.Start(context.Background())
	defer d.Stop()

	waitFor(t, 3*time.Second, func() bool {
		_, _, failed := d.Stats()
		return failed == 1
	})
}

func TestDispatcherStartIsIdempotent(t *testing.T) {
	d, _, _, _ := newTestDispatcher(t)
	d.Start(context.Background())
	d.Start(context.Background())
	d.Stop()
	d.Stop()
}
