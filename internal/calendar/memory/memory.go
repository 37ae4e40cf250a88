package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cashflow/internal/calendar"
	"cashflow/internal/core"
)

// Store keeps events in memory. Events added with AddForeign are not tagged
// and are never listed for deletion.
type Store struct {
	mu      sync.Mutex
	seq     int
	events  map[string]calendar.Event
	foreign map[string]bool
}

var _ calendar.Store = (*Store)(nil)

func New() *Store {
	return &Store{events: map[string]calendar.Event{}, foreign: map[string]bool{}}
}

func (s *Store) Insert(_ context.Context, e calendar.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	e.ID = fmt.Sprintf("mem:%d", s.seq)
	s.events[e.ID] = e
	return nil
}

// AddForeign stores an event that belongs to someone else.
func (s *Store) AddForeign(e calendar.Event) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	e.ID = fmt.Sprintf("foreign:%d", s.seq)
	s.events[e.ID] = e
	s.foreign[e.ID] = true
	return e.ID
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return fmt.Errorf("event %s not found", id)
	}
	delete(s.events, id)
	delete(s.foreign, id)
	return nil
}

func (s *Store) ListTagged(_ context.Context, from, to core.Date) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, e := range s.events {
		if s.foreign[id] || e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Events returns a date-ordered snapshot.
func (s *Store) Events() []calendar.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]calendar.Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
