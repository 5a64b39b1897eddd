package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"timelock-backend/internal/models"
	"timelock-backend/internal/repository"
	"timelock-backend/internal/repository/repotest"
)

// fakeClock is a settable clock for the calendar
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(_ context.Context, e Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

func (p *recordingPublisher) Last() Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

// memoryStatsCache is an in-process StatsCache. beforeSet, when set, runs at
// the start of every Set.
type memoryStatsCache struct {
	mu          sync.Mutex
	entries     map[string]models.RelationshipStats
	gens        map[string]uint64
	invalidated int
	beforeSet   func()
}

func newMemoryStatsCache() *memoryStatsCache {
	return &memoryStatsCache{
		entries: map[string]models.RelationshipStats{},
		gens:    map[string]uint64{},
	}
}

func (c *memoryStatsCache) Get(_ context.Context, id string) (*models.RelationshipStats, uint64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats, ok := c.entries[id]
	if !ok {
		return nil, c.gens[id], false, nil
	}
	return &stats, c.gens[id], true, nil
}

func (c *memoryStatsCache) Set(_ context.Context, id string, gen uint64, stats *models.RelationshipStats) error {
	if c.beforeSet != nil {
		c.beforeSet()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[id] != gen {
		return nil
	}
	c.entries[id] = *stats
	return nil
}

func (c *memoryStatsCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	c.gens[id]++
	c.invalidated++
	return nil
}

type testEnv struct {
	store        repository.Store
	clock        *fakeClock
	cal          *Calendar
	events       *recordingPublisher
	cache        *memoryStatsCache
	users        *UserService
	partnerships *PartnershipService
	messages     *MessageService
}

// day0 is the first test day, mid-morning in UTC
var day0 = time.Date(2024, time.June, 10, 10, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvIn(t, time.UTC)
}

func newTestEnvIn(t *testing.T, loc *time.Location) *testEnv {
	t.Helper()
	return newTestEnvOn(t, repotest.SQLite(t), loc)
}

// newTestEnvOn builds the services on top of store
func newTestEnvOn(t *testing.T, store repository.Store, loc *time.Location) *testEnv {
	t.Helper()

	clock := &fakeClock{now: day0}
	cal := NewCalendarWithClock(loc, clock.Now)
	events := &recordingPublisher{}
	cache := newMemoryStatsCache()

	partnerships := NewPartnershipService(store, cal, cache, events)
	return &testEnv{
		store:        store,
		clock:        clock,
		cal:          cal,
		events:       events,
		cache:        cache,
		users:        NewUserService(store, "test-secret", 24*time.Hour, cal),
		partnerships: partnerships,
		messages:     NewMessageService(store, cal, NewStreakCalculator(cal), partnerships, cache, events, 100),
	}
}

// addUser stores a user with a fixed ID
func (e *testEnv) addUser(t *testing.T, id, code string) {
	t.Helper()
	user := &models.User{ID: id, Code: code, CreatedAt: e.clock.Now()}
	if err := e.store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
}

// pair makes userA and userB accepted partners and returns the partnership
func (e *testEnv) pair(t *testing.T, userA, userB string, relationshipDate models.Date) *models.Partnership {
	t.Helper()
	ctx := context.Background()
	p, err := e.partnerships.SendRequest(ctx, userA, userB)
	if err != nil {
		t.Fatalf("send request: %v", err)
	}
	accepted, err := e.partnerships.AcceptRequest(ctx, userB, p.ID, relationshipDate)
	if err != nil {
		t.Fatalf("accept request: %v", err)
	}
	return accepted
}

func (e *testEnv) send(t *testing.T, from, to, content string, unlock models.Date) *models.Message {
	t.Helper()
	msg, err := e.messages.CreateMessage(context.Background(), from, to, content, unlock)
	if err != nil {
		t.Fatalf("create message %s->%s: %v", from, to, err)
	}
	return msg
}

func (e *testEnv) partnership(t *testing.T, id string) *models.Partnership {
	t.Helper()
	p, err := e.store.Partnerships().GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get partnership: %v", err)
	}
	return p
}
