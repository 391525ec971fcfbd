package session

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmuoria/agent-studio/internal/models"
)

func batchOf(names ...string) *models.BatchResult {
	b := &models.BatchResult{}
	for i, n := range names {
		b.Candidates = append(b.Candidates, models.CandidateRecord{Name: n, Score: 50 + i, Skills: []string{"Go"}})
	}
	return b
}

func TestReplaceBatchIsWholesale(t *testing.T) {
	s := New()
	assert.Nil(t, s.Batch())

	first := models.JobRequirements{Description: "Backend dev"}
	s.ReplaceBatch(first, batchOf("Ana", "Luis"), "raw-1", false)
	s.Book(models.InterviewBooking{CandidateName: "Ana", Date: "2026-10-19"})

	second := models.JobRequirements{Description: "Data engineer"}
	s.ReplaceBatch(second, batchOf("Marta"), "raw-2", true)

	assert.Equal(t, []string{"Marta"}, s.Batch().Names(), "no merge with the previous batch")
	assert.Equal(t, second, s.Job())
	raw, fallback := s.Raw()
	assert.Equal(t, "raw-2", raw)
	assert.True(t, fallback)
	assert.Len(t, s.Interviews(), 1, "bookings survive a new analysis")
}

func TestAccessorsReturnCopies(t *testing.T) {
	s := New()
	in := batchOf("Ana")
	s.ReplaceBatch(models.JobRequirements{}, in, "", false)

	in.Candidates[0].Name = "mutated by caller"
	got := s.Batch()
	got.Candidates[0].Skills[0] = "mutated copy"

	again := s.Batch()
	assert.Equal(t, "Ana", again.Candidates[0].Name)
	assert.Equal(t, []string{"Go"}, again.Candidates[0].Skills)

	s.Book(models.InterviewBooking{CandidateName: "Ana", Date: "2026-10-19"})
	list := s.Interviews()
	list[0].CandidateName = "changed"
	assert.Equal(t, "Ana", s.Interviews()[0].CandidateName)
}

func TestBookAppendsInOrder(t *testing.T) {
	s := New()
	s.Book(models.InterviewBooking{CandidateName: "Ana", Date: "2026-10-19"})
	s.Book(models.InterviewBooking{CandidateName: "Ana", Date: "2026-10-20"})
	s.Book(models.InterviewBooking{CandidateName: "Luis", Date: "2026-10-19"})

	got := s.Interviews()
	require.Len(t, got, 3)
	assert.Equal(t, "2026-10-20", got[1].Date)
	assert.Equal(t, "Luis", got[2].CandidateName)
}

func TestStore(t *testing.T) {
	st := NewStore(0)
	s := st.Create()
	_, err := uuid.Parse(s.ID())
	require.NoError(t, err)

	got, ok := st.Get(s.ID())
	require.True(t, ok)
	assert.Same(t, s, got)

	same, created := st.GetOrCreate(s.ID())
	assert.False(t, created)
	assert.Same(t, s, same)

	other, created := st.GetOrCreate("unknown")
	assert.True(t, created)
	assert.NotEqual(t, s.ID(), other.ID())

	_, created = st.GetOrCreate("")
	assert.True(t, created)
	assert.Equal(t, 3, st.Len())

	st.Delete(s.ID())
	_, ok = st.Get(s.ID())
	assert.False(t, ok)
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestStoreEndsIdleSessions(t *testing.T) {
	c := &clock{t: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
	st := NewStore(10 * time.Minute)
	st.now = c.now

	idle := st.Create()
	active := st.Create()

	c.advance(6 * time.Minute)
	_, ok := st.Get(active.ID())
	require.True(t, ok)

	c.advance(6 * time.Minute)
	_, ok = st.Get(idle.ID())
	assert.False(t, ok, "idle past the ttl")
	got, ok := st.Get(active.ID())
	require.True(t, ok, "a lookup resets the idle timer")
	assert.Same(t, active, got)
	assert.Equal(t, 1, st.Len())

	fresh, created := st.GetOrCreate(idle.ID())
	assert.True(t, created)
	assert.NotEqual(t, idle.ID(), fresh.ID())
}

func TestStoreSweep(t *testing.T) {
	c := &clock{t: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
	st := NewStore(time.Minute)
	st.now = c.now
	assert.Equal(t, time.Minute, st.TTL())

	for i := 0; i < 100; i++ {
		st.GetOrCreate("")
	}
	assert.Equal(t, 100, st.Len())

	c.advance(2 * time.Minute)
	st.GetOrCreate("")
	assert.Equal(t, 1, st.Len(), "creating a session sweeps the idle ones")

	c.advance(2 * time.Minute)
	assert.Equal(t, 1, st.Sweep())
	assert.Zero(t, st.Len())
}

func TestNewStoreDefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultIdleTTL, NewStore(0).TTL())
	assert.Equal(t, DefaultIdleTTL, NewStore(-time.Second).TTL())
}

func TestSessionsAreIsolated(t *testing.T) {
	st := NewStore(0)
	a, b := st.Create(), st.Create()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); a.Book(models.InterviewBooking{CandidateName: "A"}) }()
		go func() { defer wg.Done(); b.ReplaceBatch(models.JobRequirements{}, batchOf("B"), "", false) }()
	}
	wg.Wait()

	assert.Len(t, a.Interviews(), 20)
	assert.Nil(t, a.Batch())
	assert.Empty(t, b.Interviews())
}
