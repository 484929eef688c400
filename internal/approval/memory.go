package approval

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	code  string
	gen   uint64
	timer *time.Timer
}

// MemoryStore держит коды в памяти процесса; перезапуск их теряет.
// Каждая запись помечена поколением, и таймер удаляет только ту запись,
// для которой был создан.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
	gen     uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*entry)}
}

func (s *MemoryStore) Put(_ context.Context, passID, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[passID]; ok {
		old.timer.Stop()
	}
	s.gen++
	gen := s.gen
	e := &entry{code: code, gen: gen}
	e.timer = time.AfterFunc(ttl, func() { s.evict(passID, gen) })
	s.entries[passID] = e
	return nil
}

func (s *MemoryStore) Match(_ context.Context, passID, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[passID]
	return ok && e.code == code, nil
}

func (s *MemoryStore) Delete(_ context.Context, passID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[passID]; ok && e.code == code {
		e.timer.Stop()
		delete(s.entries, passID)
	}
	return nil
}

func (s *MemoryStore) Discard(_ context.Context, passID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[passID]; ok {
		e.timer.Stop()
		delete(s.entries, passID)
	}
	return nil
}

// Len возвращает число действующих кодов.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) evict(passID string, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[passID]; ok && e.gen == gen {
		delete(s.entries, passID)
	}
}
