package expiry

import (
	"context"
	"sync"
	"time"

	"pantrynotify/internal/lock"
	"pantrynotify/internal/notifications/email"
	"pantrynotify/internal/types"
)

var testNow = time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)

func date(s string) *time.Time {
	t, err := time.Parse(types.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func ing(id, owner, name, expiry string) types.StoredIngredient {
	i := types.StoredIngredient{ID: id, OwnerID: owner, Name: name}
	if expiry != "" {
		i.ExpiryDate = date(expiry)
	}
	return i
}

// fakeStore honours the query range and owner filter like the real table.
type fakeStore struct {
	rows  []types.StoredIngredient
	err   error
	calls []types.ExpiringQuery
}

func (f *fakeStore) ListExpiring(_ context.Context, q types.ExpiringQuery) ([]types.StoredIngredient, error) {
	f.calls = append(f.calls, q)
	if f.err != nil {
		return nil, f.err
	}
	var out []types.StoredIngredient
	for _, r := range f.rows {
		if r.ExpiryDate == nil || r.ExpiryDate.Before(q.From) || r.ExpiryDate.After(q.To) {
			continue
		}
		if q.OwnerID != "" && r.OwnerID != q.OwnerID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

type fakeDirectory struct {
	users []types.UserContact
	err   error
	calls []int
}

func (f *fakeDirectory) UsersWithExpiringIngredients(_ context.Context, daysAhead int) ([]types.UserContact, error) {
	f.calls = append(f.calls, daysAhead)
	return f.users, f.err
}

type fakeLog struct {
	mu       sync.Mutex
	entries  []types.NotificationLogEntry
	prior    []types.NotificationLogEntry
	logErr   error
	sinceErr error
	since    []time.Time
}

func (f *fakeLog) Log(ctx context.Context, e types.NotificationLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if f.logErr != nil {
		return f.logErr
	}
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeLog) SentSince(_ context.Context, userIDs []string, since time.Time) ([]types.NotificationLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.since = append(f.since, since)
	if f.sinceErr != nil {
		return nil, f.sinceErr
	}
	want := map[string]bool{}
	for _, id := range userIDs {
		want[id] = true
	}
	var out []types.NotificationLogEntry
	for _, e := range f.prior {
		if want[e.UserID] && !e.SentAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeLog) byUser(userID string) []types.NotificationLogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.NotificationLogEntry
	for _, e := range f.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

type sentDigest struct {
	to     string
	digest email.Digest
	ref    string
}

type fakeSender struct {
	mu     sync.Mutex
	sent   []sentDigest
	failTo map[string]error
	block  chan struct{}
}

func (f *fakeSender) Send(ctx context.Context, to string, d email.Digest, ref string) (string, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", types.NewAppError(types.ErrCodeUpstreamTimeout, "timed out", ctx.Err())
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentDigest{to: to, digest: d, ref: ref})
	if err := f.failTo[to]; err != nil {
		return "", err
	}
	return "msg-" + to, nil
}

func (f *fakeSender) ProviderName() string { return "fake" }

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeLocker struct {
	held     bool
	err      error
	released []*lock.Lease
	ttl      time.Duration
}

func (f *fakeLocker) TryAcquire(_ context.Context, key string, ttl time.Duration) (*lock.Lease, error) {
	f.ttl = ttl
	if f.err != nil {
		return nil, f.err
	}
	if f.held {
		return nil, nil
	}
	return &lock.Lease{Key: key, Token: "tok"}, nil
}

func (f *fakeLocker) Release(_ context.Context, lease *lock.Lease) error {
	f.released = append(f.released, lease)
	return nil
}

type fakeHistory struct {
	started  []string
	statuses []string
	items    []int
}

func (f *fakeHistory) Start(_ context.Context, jobType string) (int64, error) {
	f.started = append(f.started, jobType)
	return 7, nil
}

func (f *fakeHistory) Finish(_ context.Context, id int64, status string, items int, _ error) error {
	f.statuses = append(f.statuses, status)
	f.items = append(f.items, items)
	return nil
}

type fakeMetrics struct {
	mu       sync.Mutex
	runs     []*types.RunResult
	failures []types.ErrorCode
	sends    []bool
	triggers []types.Trigger
}

func (f *fakeMetrics) RecordRun(_ context.Context, trigger types.Trigger, r *types.RunResult, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, r)
	f.triggers = append(f.triggers, trigger)
}

func (f *fakeMetrics) RecordRunFailure(_ context.Context, trigger types.Trigger, code types.ErrorCode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, code)
	f.triggers = append(f.triggers, trigger)
}

func (f *fakeMetrics) RecordSend(_ context.Context, _ string, ok bool, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, ok)
}

type fakeFailures struct {
	mu   sync.Mutex
	msgs []types.DeliveryFailureMessage
}

func (f *fakeFailures) PublishFailure(_ context.Context, msg types.DeliveryFailureMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return nil
}
