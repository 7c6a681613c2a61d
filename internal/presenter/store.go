package presenter

import (
	"sync"

	"github.com/kjstillabower/ambient-mirror/internal/models"
)

// Store is a Renderer that keeps the latest view model for polling clients.
type Store struct {
	mu      sync.RWMutex
	vm      models.ViewModel
	renders uint64
}

func NewStore() *Store {
	return &Store{}
}

// Render replaces the stored view model.
func (s *Store) Render(vm models.ViewModel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vm = vm
	s.renders++
}

// View returns the latest view model and false if nothing has been rendered yet.
func (s *Store) View() (models.ViewModel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vm, s.renders > 0
}

// Renders returns how many view models have been stored.
func (s *Store) Renders() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.renders
}
