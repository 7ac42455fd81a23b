package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ocdul/social-listening/internal/filters"
	"github.com/ocdul/social-listening/internal/models"
	"github.com/ocdul/social-listening/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestManager(idle time.Duration) (*Manager, *clock) {
	clk := &clock{t: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
	m := NewManager(schema.Default(), filters.DefaultOptions(), idle)
	m.now = clk.now
	return m, clk
}

func TestCreateAndGet(t *testing.T) {
	m, _ := newTestManager(10 * time.Minute)

	s, err := m.Create(Identity{Actor: "ana", AlertID: 3, SuperEditor: true})
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.False(t, s.Filters.Applied())
	assert.Zero(t, s.Queue.Len())

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	other, err := m.Create(Identity{Actor: "ana", AlertID: 3})
	require.NoError(t, err)
	assert.NotEqual(t, s.ID, other.ID)
	assert.NotSame(t, s.Queue, other.Queue, "queues are never shared")
}

func TestCreateRequiresIdentity(t *testing.T) {
	m, _ := newTestManager(time.Minute)

	_, err := m.Create(Identity{AlertID: 1})
	assert.Error(t, err)
	_, err = m.Create(Identity{Actor: "ana"})
	assert.Error(t, err)
	assert.Zero(t, m.Len())
}

func TestIdleSessionsExpire(t *testing.T) {
	m, clk := newTestManager(10 * time.Minute)
	s, err := m.Create(Identity{Actor: "ana", AlertID: 1})
	require.NoError(t, err)

	clk.t = clk.t.Add(9 * time.Minute)
	_, err = m.Get(s.ID)
	require.NoError(t, err, "activity refreshes the session")

	clk.t = clk.t.Add(11 * time.Minute)
	_, err = m.Get(s.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Zero(t, m.Len())
}

func TestSweep(t *testing.T) {
	m, clk := newTestManager(10 * time.Minute)
	_, err := m.Create(Identity{Actor: "ana", AlertID: 1})
	require.NoError(t, err)
	clk.t = clk.t.Add(8 * time.Minute)
	fresh, err := m.Create(Identity{Actor: "luis", AlertID: 1})
	require.NoError(t, err)

	clk.t = clk.t.Add(5 * time.Minute)
	assert.Equal(t, 1, m.Sweep())

	_, err = m.Get(fresh.ID)
	assert.NoError(t, err)
}

func TestDiscard(t *testing.T) {
	m, _ := newTestManager(time.Minute)
	s, err := m.Create(Identity{Actor: "ana", AlertID: 1})
	require.NoError(t, err)

	require.NoError(t, m.Discard(s.ID))
	assert.True(t, errors.Is(m.Discard(s.ID), ErrNotFound))
	_, err = m.Get(s.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMaterialize(t *testing.T) {
	m, _ := newTestManager(time.Minute)
	s, err := m.Create(Identity{Actor: "ana", AlertID: 1})
	require.NoError(t, err)

	pos := models.SentimentPositive
	s.Materialize([]models.Mention{
		{ID: 1, SourceTable: "posts_x", Sentiment: &pos},
		{ID: 2, SourceTable: "quotes_x"},
	})

	require.Len(t, s.Grid, 2)
	assert.Equal(t, "posts_x:1", s.Grid[0].Key)
	assert.Equal(t, models.SentimentPositive, s.Grid[0].Sentiment)
	assert.Equal(t, models.SentimentAll, s.Grid[1].Sentiment)
	assert.Contains(t, s.Records, "quotes_x:2")
}

func TestRunSerializesInteractions(t *testing.T) {
	m, _ := newTestManager(time.Minute)
	s, err := m.Create(Identity{Actor: "ana", AlertID: 1})
	require.NoError(t, err)

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Run(func(*Session) error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}
