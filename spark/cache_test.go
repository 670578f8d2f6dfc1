package spark

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestIdentityUniqueness(t *testing.T) {
	c, _ := newTestClient(t, http.NotFoundHandler())

	if c.Room("r1") != c.Room("r1") {
		t.Fatalf("expected one instance per id")
	}
	if c.Room("r1") == c.Room("r2") {
		t.Fatalf("expected distinct instances for distinct ids")
	}
	if c.Room("") == c.Room("") {
		t.Fatalf("expected uncached instances for empty ids")
	}
	if got := c.Room("r1").ID(); got != "r1" {
		t.Fatalf("expected id r1, got %q", got)
	}
	if c.Room("r1").Loaded() {
		t.Fatalf("expected a fresh instance to be unloaded")
	}
	if c.Lookup(KindRoom, "r1") != Entity(c.Room("r1")) {
		t.Fatalf("expected Lookup to resolve the cached room")
	}
	if c.Lookup(KindUnsupported, "x") != nil {
		t.Fatalf("expected nil for an unsupported kind")
	}
}

func TestLoadIdempotence(t *testing.T) {
	var requests atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		writeJSON(w, http.StatusOK, roomJSON("r1", "standup"))
	}))

	room := c.Room("r1")
	for i := 0; i < 2; i++ {
		if err := c.Load(context.Background(), room); err != nil {
			t.Fatalf("Load: %v", err)
		}
	}
	if got := requests.Load(); got != 1 {
		t.Fatalf("expected 1 request, got %d", got)
	}
	if !room.Loaded() || room.Title != "standup" || room.Type != RoomTypeGroup {
		t.Fatalf("unexpected room state: loaded=%v title=%q type=%v", room.Loaded(), room.Title, room.Type)
	}
	want := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if !room.Created().Equal(want) {
		t.Fatalf("expected created %v, got %v", want, room.Created())
	}
}

func TestLoadRequiresID(t *testing.T) {
	c, _ := newTestClient(t, http.NotFoundHandler())
	err := c.Load(context.Background(), NewRoom("x", nil))
	var stateErr *InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
}

// startBlockedLoads issues n concurrent loads of room r1 against a handler
// that blocks until release is closed. It returns once the first request is
// in the handler and every other caller is queued behind it.
func startBlockedLoads(t *testing.T, n int, status int, body string) (*Client, *Room, *atomic.Int32, chan struct{}, <-chan error) {
	t.Helper()
	var requests atomic.Int32
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		writeJSON(w, status, body)
	}))

	room := c.Room("r1")
	results := make(chan error, n)
	go func() { results <- c.Load(context.Background(), room) }()
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for the first request")
	}
	for i := 1; i < n; i++ {
		go func() { results <- c.Load(context.Background(), room) }()
	}

	key := cacheKey{kind: KindRoom, id: "r1"}
	deadline := time.Now().Add(5 * time.Second)
	for c.cache.waiting(key) != n-1 {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d queued loads, got %d", n-1, c.cache.waiting(key))
		}
		time.Sleep(time.Millisecond)
	}
	return c, room, &requests, release, results
}

func TestLoadDeduplication(t *testing.T) {
	const n = 8
	_, room, requests, release, results := startBlockedLoads(t, n, http.StatusOK, roomJSON("r1", "standup"))
	close(release)

	for i := 0; i < n; i++ {
		if err := <-results; err != nil {
			t.Fatalf("expected success for every caller, got %v", err)
		}
	}
	if got := requests.Load(); got != 1 {
		t.Fatalf("expected exactly 1 fetch, got %d", got)
	}
	if !room.Loaded() || room.Title != "standup" {
		t.Fatalf("expected loaded room, got loaded=%v title=%q", room.Loaded(), room.Title)
	}
}

func TestLoadDeduplicationSharesFailure(t *testing.T) {
	const n = 4
	c, room, requests, release, results := startBlockedLoads(t, n, http.StatusNotFound, `{"message":"not found","trackingId":"t-1"}`)
	close(release)

	for i := 0; i < n; i++ {
		err := <-results
		if !IsNotFound(err) {
			t.Fatalf("expected not found for every caller, got %v", err)
		}
	}
	if got := requests.Load(); got != 1 {
		t.Fatalf("expected exactly 1 fetch, got %d", got)
	}
	if room.Loaded() {
		t.Fatalf("expected room to stay unloaded after a failed fetch")
	}
	if got := c.cache.waiting(cacheKey{kind: KindRoom, id: "r1"}); got != 0 {
		t.Fatalf("expected in-flight entry cleared, got %d waiters", got)
	}

	// A later load starts a new fetch.
	if err := c.Load(context.Background(), room); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if got := requests.Load(); got != 2 {
		t.Fatalf("expected a second fetch, got %d", got)
	}
}

func TestLoadWaiterCancellation(t *testing.T) {
	var requests atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		once.Do(func() { close(entered) })
		<-release
		writeJSON(w, http.StatusOK, roomJSON("r1", "standup"))
	}))
	room := c.Room("r1")

	leader := make(chan error, 1)
	go func() { leader <- c.Load(context.Background(), room) }()
	<-entered

	ctx, cancel := context.WithCancel(context.Background())
	waiter := make(chan error, 1)
	go func() { waiter <- c.Load(ctx, room) }()
	key := cacheKey{kind: KindRoom, id: "r1"}
	for c.cache.waiting(key) != 1 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-waiter; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	close(release)
	if err := <-leader; err != nil {
		t.Fatalf("expected leader success, got %v", err)
	}
	if !room.Loaded() {
		t.Fatalf("expected room loaded by the leader")
	}
	if got := requests.Load(); got != 1 {
		t.Fatalf("expected 1 fetch, got %d", got)
	}
}

func TestIdentityCacheFinishNotifiesAllWaiters(t *testing.T) {
	ic := newIdentityCache()
	key := cacheKey{kind: KindTeam, id: "t1"}

	if _, leader, done := ic.join(key, nil); !leader || done {
		t.Fatalf("expected first join to lead")
	}
	var waits []chan error
	for i := 0; i < 3; i++ {
		wait, leader, done := ic.join(key, nil)
		if leader || done || wait == nil {
			t.Fatalf("expected join %d to queue", i)
		}
		waits = append(waits, wait)
	}
	if got := ic.waiting(key); got != 3 {
		t.Fatalf("expected 3 waiters, got %d", got)
	}

	errBoom := errors.New("boom")
	ic.finish(key, errBoom)
	for i, wait := range waits {
		if err := <-wait; err != errBoom {
			t.Fatalf("waiter %d: expected boom, got %v", i, err)
		}
	}
	if _, leader, _ := ic.join(key, nil); !leader {
		t.Fatalf("expected a new leader after finish")
	}
	if _, _, done := ic.join(cacheKey{kind: KindTeam, id: "t2"}, func() bool { return true }); !done {
		t.Fatalf("expected a ready key to need no fetch")
	}
}

func TestLoadRejectsMismatchedID(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, roomJSON("other", "x"))
	}))
	room := c.Room("r1")
	var parseErr *ParseError
	if err := c.Load(context.Background(), room); !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if room.Loaded() || room.ID() != "r1" {
		t.Fatalf("expected room untouched, got loaded=%v id=%q", room.Loaded(), room.ID())
	}
}
