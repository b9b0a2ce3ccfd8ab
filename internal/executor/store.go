package executor

import (
	"sync"
	"time"

	"procurement/internal/workflow"
)

// Store is the client-side collection of loaded documents together with the
// selection set and the per-document in-flight markers.
type Store struct {
	mu       sync.RWMutex
	order    []string
	entities map[string]workflow.Entity
	selected map[string]bool
	inFlight map[string]bool
}

func NewStore() *Store {
	return &Store{
		entities: make(map[string]workflow.Entity),
		selected: make(map[string]bool),
		inFlight: make(map[string]bool),
	}
}

// Replace swaps the collection for a freshly loaded page. Selections of
// documents that are no longer present are dropped.
func (s *Store) Replace(entities []workflow.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = make([]string, 0, len(entities))
	s.entities = make(map[string]workflow.Entity, len(entities))
	for _, e := range entities {
		if _, dup := s.entities[e.ID]; dup {
			continue
		}
		s.order = append(s.order, e.ID)
		s.entities[e.ID] = e
	}
	for id := range s.selected {
		if _, ok := s.entities[id]; !ok {
			delete(s.selected, id)
		}
	}
}

// Prepend adds a document at the top of the list.
func (s *Store) Prepend(e workflow.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[e.ID]; ok {
		s.entities[e.ID] = e
		return
	}
	s.order = append([]string{e.ID}, s.order...)
	s.entities[e.ID] = e
}

func (s *Store) Get(id string) (workflow.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	return e, ok
}

// All returns the documents in display order.
func (s *Store) All() []workflow.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]workflow.Entity, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entities[id])
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Remove deletes a document from the collection and the selection.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(id)
}

func (s *Store) removeLocked(id string) bool {
	if _, ok := s.entities[id]; !ok {
		return false
	}
	delete(s.entities, id)
	delete(s.selected, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// commit records a status the API has accepted.
func (s *Store) commit(id string, status workflow.Status, lastModified time.Time) (workflow.Entity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[id]
	if !ok {
		return workflow.Entity{}, false
	}
	e.Status = status
	e.LastModified = lastModified
	s.entities[id] = e
	return e, true
}

// replace swaps in a document the API returned after an edit.
func (s *Store) replace(e workflow.Entity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[e.ID]; !ok {
		return false
	}
	s.entities[e.ID] = e
	return true
}

// Select adds a loaded document to the selection.
func (s *Store) Select(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[id]; !ok {
		return false
	}
	s.selected[id] = true
	return true
}

func (s *Store) Deselect(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.selected, id)
}

func (s *Store) IsSelected(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected[id]
}

// Selected returns the selected ids in display order.
func (s *Store) Selected() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for _, id := range s.order {
		if s.selected[id] {
			out = append(out, id)
		}
	}
	return out
}

func (s *Store) beginAction(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight[id] {
		return false
	}
	s.inFlight[id] = true
	return true
}

func (s *Store) endAction(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
}

// InFlight reports whether an action on id is awaiting the API.
func (s *Store) InFlight(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inFlight[id]
}

// ApplyEvent folds a pushed change into the collection. Changes older than
// the local copy are ignored.
func (s *Store) ApplyEvent(ev workflow.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := ev.Entity.ID
	local, exists := s.entities[id]

	switch ev.Type {
	case workflow.EventCreated:
		if exists {
			return false
		}
		s.order = append([]string{id}, s.order...)
		s.entities[id] = ev.Entity
		return true
	case workflow.EventStatusChanged, workflow.EventUpdated:
		if !exists || !ev.Entity.LastModified.After(local.LastModified) {
			return false
		}
		s.entities[id] = ev.Entity
		return true
	case workflow.EventDeleted:
		return s.removeLocked(id)
	default:
		return false
	}
}
