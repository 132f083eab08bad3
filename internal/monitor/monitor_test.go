package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/b3hniya/tenderd-fms-sub000/internal/domain"
)

type fakeDirectory struct {
	mu       sync.Mutex
	vehicles []domain.Vehicle
	listErr  error
	failIDs  map[string]error
	updates  []statusUpdate
	block    chan struct{}
}

type statusUpdate struct {
	id        string
	status    domain.ConnectionStatus
	clearedOS bool
}

func (f *fakeDirectory) ListWithLastSeen(ctx context.Context) ([]domain.Vehicle, error) {
	if f.block != nil {
		<-f.block
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Vehicle, len(f.vehicles))
	copy(out, f.vehicles)
	return out, nil
}

func (f *fakeDirectory) UpdateStatus(ctx context.Context, id string, status domain.ConnectionStatus, clearOfflineSince bool) error {
	if err := f.failIDs[id]; err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, statusUpdate{id: id, status: status, clearedOS: clearOfflineSince})
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (f *fakePublisher) Publish(ctx context.Context, event domain.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func vehicleSeen(id string, status domain.ConnectionStatus, lastSeen time.Time) domain.Vehicle {
	return domain.Vehicle{ID: id, VIN: "VIN-" + id, ConnectionStatus: status, LastSeenAt: &lastSeen}
}

func newMonitorForTest(dir *fakeDirectory, pub *fakePublisher, now time.Time) *Monitor {
	return New(dir, pub, zap.NewNop(), time.Minute).WithClock(func() time.Time { return now })
}

func TestClassify(t *testing.T) {
	cases := []struct {
		age  time.Duration
		want domain.ConnectionStatus
	}{
		{0, domain.StatusOnline},
		{45 * time.Second, domain.StatusOnline},
		{59 * time.Second, domain.StatusOnline},
		{60 * time.Second, domain.StatusStale},
		{120 * time.Second, domain.StatusStale},
		{299 * time.Second, domain.StatusStale},
		{300 * time.Second, domain.StatusOffline},
		{400 * time.Second, domain.StatusOffline},
	}
	for _, c := range cases {
		if got := Classify(c.age); got != c.want {
			t.Errorf("Classify(%v) = %v, want %v", c.age, got, c.want)
		}
	}
}

func TestSweepWritesOnlyOnChange(t *testing.T) {
	now := time.Now()
	dir := &fakeDirectory{vehicles: []domain.Vehicle{
		vehicleSeen("fresh", domain.StatusOnline, now.Add(-10*time.Second)),
		vehicleSeen("quiet", domain.StatusOnline, now.Add(-120*time.Second)),
		vehicleSeen("gone", domain.StatusOffline, now.Add(-400*time.Second)),
	}}
	pub := &fakePublisher{}
	m := newMonitorForTest(dir, pub, now)

	m.Tick(context.Background())

	if len(dir.updates) != 1 {
		t.Fatalf("expected exactly one write, got %v", dir.updates)
	}
	if dir.updates[0].id != "quiet" || dir.updates[0].status != domain.StatusStale {
		t.Fatalf("unexpected write %v", dir.updates[0])
	}
	// OFFLINE recomputed as OFFLINE: no write, no event.
	if len(pub.events) != 0 {
		t.Fatalf("STALE transition or unchanged status produced events: %v", pub.events)
	}
}

func TestOfflineTransitionEmitsOneEvent(t *testing.T) {
	now := time.Now()
	lastSeen := now.Add(-400 * time.Second)
	dir := &fakeDirectory{vehicles: []domain.Vehicle{
		vehicleSeen("v1", domain.StatusStale, lastSeen),
	}}
	pub := &fakePublisher{}
	m := newMonitorForTest(dir, pub, now)

	m.Tick(context.Background())

	if len(pub.events) != 1 {
		t.Fatalf("expected one event, got %d", len(pub.events))
	}
	ev, ok := pub.events[0].(domain.VehicleOfflineEvent)
	if !ok {
		t.Fatalf("expected VehicleOfflineEvent, got %T", pub.events[0])
	}
	if ev.VehicleID != "v1" || ev.VIN != "VIN-v1" {
		t.Fatalf("bad identity on event: %+v", ev)
	}
	if ev.PreviousStatus != domain.StatusStale {
		t.Fatalf("previousStatus = %v, want STALE", ev.PreviousStatus)
	}
	if !ev.LastSeenAt.Equal(lastSeen) {
		t.Fatalf("lastSeenAt = %v, want %v", ev.LastSeenAt, lastSeen)
	}

	// A second sweep sees OFFLINE -> OFFLINE and stays silent.
	dir.vehicles[0].ConnectionStatus = domain.StatusOffline
	m.Tick(context.Background())
	if len(pub.events) != 1 {
		t.Fatalf("unchanged OFFLINE emitted another event: %v", pub.events)
	}
}

func TestReconnectEmitsDurationAndClearsOfflineSince(t *testing.T) {
	now := time.Now()
	lastSeen := now.Add(-45 * time.Second)
	dir := &fakeDirectory{vehicles: []domain.Vehicle{
		vehicleSeen("v1", domain.StatusOffline, lastSeen),
	}}
	pub := &fakePublisher{}
	m := newMonitorForTest(dir, pub, now)

	m.Tick(context.Background())

	if len(dir.updates) != 1 || !dir.updates[0].clearedOS {
		t.Fatalf("expected ONLINE write clearing offlineSince, got %v", dir.updates)
	}
	if len(pub.events) != 1 {
		t.Fatalf("expected one event, got %d", len(pub.events))
	}
	ev, ok := pub.events[0].(domain.VehicleReconnectedEvent)
	if !ok {
		t.Fatalf("expected VehicleReconnectedEvent, got %T", pub.events[0])
	}
	if ev.OfflineDurationMs != now.Sub(lastSeen).Milliseconds() {
		t.Fatalf("offlineDurationMs = %d, want %d", ev.OfflineDurationMs, now.Sub(lastSeen).Milliseconds())
	}
	if !ev.ReconnectedAt.Equal(now) {
		t.Fatalf("reconnectedAt = %v, want %v", ev.ReconnectedAt, now)
	}
}

func TestStaleRecoveryEmitsNoEvent(t *testing.T) {
	now := time.Now()
	dir := &fakeDirectory{vehicles: []domain.Vehicle{
		vehicleSeen("v1", domain.StatusStale, now.Add(-10*time.Second)),
	}}
	pub := &fakePublisher{}
	m := newMonitorForTest(dir, pub, now)

	m.Tick(context.Background())

	if len(dir.updates) != 1 || dir.updates[0].status != domain.StatusOnline {
		t.Fatalf("expected ONLINE write, got %v", dir.updates)
	}
	if len(pub.events) != 0 {
		t.Fatalf("STALE -> ONLINE must not emit a domain event: %v", pub.events)
	}
}

func TestVehicleFailureDoesNotAbortSweep(t *testing.T) {
	now := time.Now()
	dir := &fakeDirectory{
		vehicles: []domain.Vehicle{
			vehicleSeen("bad", domain.StatusOnline, now.Add(-400*time.Second)),
			vehicleSeen("good", domain.StatusOnline, now.Add(-120*time.Second)),
		},
		failIDs: map[string]error{"bad": errors.New("db timeout")},
	}
	pub := &fakePublisher{}
	m := newMonitorForTest(dir, pub, now)

	m.Tick(context.Background())

	if len(dir.updates) != 1 || dir.updates[0].id != "good" {
		t.Fatalf("sweep did not continue past failing vehicle: %v", dir.updates)
	}
	if len(pub.events) != 0 {
		t.Fatalf("failed update must not emit events: %v", pub.events)
	}
}

func TestOverlappingTickSkipped(t *testing.T) {
	now := time.Now()
	block := make(chan struct{})
	dir := &fakeDirectory{block: block}
	pub := &fakePublisher{}
	m := newMonitorForTest(dir, pub, now)

	done := make(chan struct{})
	go func() {
		m.Tick(context.Background())
		close(done)
	}()

	// Wait until the first sweep holds the guard.
	for !m.busy.Load() {
		time.Sleep(time.Millisecond)
	}
	m.Tick(context.Background()) // must return immediately, not queue

	close(block)
	<-done
	if m.busy.Load() {
		t.Fatal("guard not released after sweep")
	}
}

func TestListFailureDoesNotPanicOrWedge(t *testing.T) {
	dir := &fakeDirectory{listErr: errors.New("db down")}
	pub := &fakePublisher{}
	m := newMonitorForTest(dir, pub, time.Now())

	m.Tick(context.Background())
	if m.busy.Load() {
		t.Fatal("guard not released after failed sweep")
	}

	// Next tick proceeds.
	dir.listErr = nil
	m.Tick(context.Background())
}
