package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/authsync/internal/errs"
	"github.com/and161185/authsync/internal/events"
	"github.com/and161185/authsync/internal/model"
)

type fakeLedger struct {
	mu      sync.Mutex
	seen    map[uuid.UUID]bool
	applied []model.ProjectedUser
	err     error
}

var _ Ledger = (*fakeLedger)(nil)

func (f *fakeLedger) Seen(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[id], f.err
}

func (f *fakeLedger) ApplyOnce(_ context.Context, ev model.ProcessedEvent, u model.ProjectedUser) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.seen[ev.EventID] {
		return false, nil
	}
	f.seen[ev.EventID] = true
	f.applied = append(f.applied, u)
	return true, nil
}

func TestRoute(t *testing.T) {
	c := New(DefaultTopology(), nil)

	r, err := c.Route(events.UserCreated)
	if err != nil || r.Exchange != "user_events" || r.RoutingKey != "user.created" {
		t.Fatalf("created route = %+v, %v", r, err)
	}
	r, err = c.Route(events.UserUpdated)
	if err != nil || r.RoutingKey != "user.updated" {
		t.Fatalf("updated route = %+v, %v", r, err)
	}
	if _, err := c.Route("user.deleted"); !errors.Is(err, errs.ErrProtocol) {
		t.Fatalf("want ErrProtocol, got %v", err)
	}
	if b := c.Bindings(); len(b) != 2 || b[0] != "user.created" || b[1] != "user.updated" {
		t.Fatalf("bindings = %v", b)
	}
}

func TestCommit_OnlyOnce(t *testing.T) {
	l := &fakeLedger{seen: map[uuid.UUID]bool{}}
	c := New(DefaultTopology(), l)
	ctx := context.Background()

	ev := events.UserEvent{
		ID:         uuid.Must(uuid.NewV4()),
		Type:       events.UserCreated,
		OccurredAt: time.Now(),
		User:       events.UserPayload{ID: uuid.Must(uuid.NewV4()).String(), Username: "bob"},
	}
	ok, err := c.Commit(ctx, ev)
	if err != nil || !ok {
		t.Fatalf("first commit = %v, %v", ok, err)
	}
	seen, err := c.Seen(ctx, ev.ID)
	if err != nil || !seen {
		t.Fatalf("Seen = %v, %v", seen, err)
	}
	ok, err = c.Commit(ctx, ev)
	if err != nil || ok {
		t.Fatalf("second commit = %v, %v", ok, err)
	}
	if len(l.applied) != 1 || l.applied[0].Username != "bob" {
		t.Fatalf("applied = %+v", l.applied)
	}
}

func TestCommit_NoLedger(t *testing.T) {
	c := New(DefaultTopology(), nil)
	if _, err := c.Commit(context.Background(), events.UserEvent{}); err == nil {
		t.Fatal("want error without ledger")
	}
}
