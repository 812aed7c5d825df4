package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/authsync/internal/events"
	"github.com/and161185/authsync/internal/model"
)

type fakeApplier struct {
	mu      sync.Mutex
	seen    map[uuid.UUID]bool
	effects int

	seenErr   error
	commitErr error
	// raceWith marks the event as committed by someone else between Seen and Commit.
	raceWith bool
}

var _ Applier = (*fakeApplier)(nil)

func (f *fakeApplier) Seen(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seenErr != nil {
		return false, f.seenErr
	}
	return f.seen[id], nil
}

func (f *fakeApplier) Commit(_ context.Context, ev events.UserEvent) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commitErr != nil {
		return false, f.commitErr
	}
	if f.raceWith || f.seen[ev.ID] {
		return false, nil
	}
	f.seen[ev.ID] = true
	f.effects++
	return true, nil
}

func body(t *testing.T) []byte {
	t.Helper()
	u := &model.User{ID: uuid.Must(uuid.NewV4()), Username: "carol", Email: "c@example.com"}
	ev, err := events.NewUserEvent(events.UserCreated, u, time.Now())
	if err != nil {
		t.Fatalf("NewUserEvent: %v", err)
	}
	b, err := events.Encode(ev)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return b
}

func TestHandle_DuplicateRedelivery(t *testing.T) {
	f := &fakeApplier{seen: map[uuid.UUID]bool{}}
	c := New(f, 0, zaptest.NewLogger(t))
	b := body(t)

	if got := c.Handle(context.Background(), b); got != Ack {
		t.Fatalf("first = %v", got)
	}
	if got := c.Handle(context.Background(), b); got != Ack {
		t.Fatalf("second = %v", got)
	}
	if f.effects != 1 {
		t.Fatalf("effects = %d, want 1", f.effects)
	}
}

func TestHandle_ConcurrentRedelivery(t *testing.T) {
	f := &fakeApplier{seen: map[uuid.UUID]bool{}}
	c := New(f, 0, zaptest.NewLogger(t))
	b := body(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := c.Handle(context.Background(), b); got != Ack {
				t.Errorf("outcome = %v", got)
			}
		}()
	}
	wg.Wait()
	if f.effects != 1 {
		t.Fatalf("effects = %d, want 1", f.effects)
	}
}

func TestHandle_DuplicateInsideTransaction(t *testing.T) {
	f := &fakeApplier{seen: map[uuid.UUID]bool{}, raceWith: true}
	c := New(f, 0, zaptest.NewLogger(t))
	if got := c.Handle(context.Background(), body(t)); got != Ack {
		t.Fatalf("outcome = %v, want ack", got)
	}
	if f.effects != 0 {
		t.Fatalf("effects = %d", f.effects)
	}
}

func TestHandle_DeadLetter(t *testing.T) {
	f := &fakeApplier{seen: map[uuid.UUID]bool{}}
	c := New(f, 0, zaptest.NewLogger(t))

	bad := [][]byte{
		[]byte(`not json`),
		[]byte(`{"eventId":"` + uuid.Must(uuid.NewV4()).String() + `","eventType":"user.created","schemaVersion":7,"occurredAt":"2026-01-01T00:00:00Z","payload":{"id":"` + uuid.Must(uuid.NewV4()).String() + `","username":"x"}}`),
		[]byte(`{"eventId":"` + uuid.Must(uuid.NewV4()).String() + `","eventType":"user.renamed","schemaVersion":1,"occurredAt":"2026-01-01T00:00:00Z","payload":{"id":"` + uuid.Must(uuid.NewV4()).String() + `","username":"x"}}`),
	}
	for _, b := range bad {
		if got := c.Handle(context.Background(), b); got != DeadLetter {
			t.Fatalf("%s: outcome = %v", b, got)
		}
	}
	if f.effects != 0 {
		t.Fatalf("effects = %d", f.effects)
	}
}

func TestHandle_StoreFailureRequeues(t *testing.T) {
	c := New(&fakeApplier{seen: map[uuid.UUID]bool{}, seenErr: errors.New("db down")}, 0, zaptest.NewLogger(t))
	if got := c.Handle(context.Background(), body(t)); got != Requeue {
		t.Fatalf("seen failure: outcome = %v", got)
	}

	c = New(&fakeApplier{seen: map[uuid.UUID]bool{}, commitErr: errors.New("tx aborted")}, 0, zaptest.NewLogger(t))
	if got := c.Handle(context.Background(), body(t)); got != Requeue {
		t.Fatalf("commit failure: outcome = %v", got)
	}
}

// hangingApplier blocks every call until its context ends.
type hangingApplier struct {
	hangSeen bool
	calls    chan struct{}
}

var _ Applier = (*hangingApplier)(nil)

func (h *hangingApplier) Seen(ctx context.Context, _ uuid.UUID) (bool, error) {
	h.calls <- struct{}{}
	if !h.hangSeen {
		return false, nil
	}
	<-ctx.Done()
	return false, ctx.Err()
}

func (h *hangingApplier) Commit(ctx context.Context, _ events.UserEvent) (bool, error) {
	h.calls <- struct{}{}
	<-ctx.Done()
	return false, ctx.Err()
}

func TestHandle_HungStoreRequeues(t *testing.T) {
	for _, hangSeen := range []bool{true, false} {
		h := &hangingApplier{hangSeen: hangSeen, calls: make(chan struct{}, 2)}
		c := New(h, 50*time.Millisecond, zaptest.NewLogger(t))

		b := body(t)
		done := make(chan Outcome, 1)
		go func() { done <- c.Handle(context.Background(), b) }()

		select {
		case got := <-done:
			if got != Requeue {
				t.Fatalf("hangSeen=%v: outcome = %v, want requeue", hangSeen, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("hangSeen=%v: Handle did not return after the store timeout", hangSeen)
		}
	}
}

func TestOutcomeString(t *testing.T) {
	if Ack.String() != "ack" || Requeue.String() != "requeue" || DeadLetter.String() != "dead-letter" {
		t.Fatal("unexpected outcome names")
	}
}
