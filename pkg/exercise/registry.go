package exercise

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the profiles available to sessions.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{profiles: make(map[string]*Profile)}
}

// LoadBuiltIn registers every embedded profile.
func (r *Registry) LoadBuiltIn() error {
	ids, err := ListEmbedded()
	if err != nil {
		return err
	}
	for _, id := range ids {
		p, err := LoadEmbedded(id)
		if err != nil {
			return fmt.Errorf("failed to load profile %q: %w", id, err)
		}
		if err := r.Register(p); err != nil {
			return err
		}
	}
	return nil
}

// LoadDir registers the profiles in dir, replacing built-ins with the same id.
func (r *Registry) LoadDir(dir string) error {
	profiles, err := LoadFromDirectory(dir)
	if err != nil {
		return err
	}
	for _, p := range profiles {
		if err := r.Register(p); err != nil {
			return err
		}
	}
	return nil
}

// Register validates and adds a profile.
func (r *Registry) Register(p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.ID] = p
	return nil
}

// Get looks up a profile by id.
func (r *Registry) Get(id string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExercise, id)
	}
	return p, nil
}

// List returns all profile ids, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Summaries returns the listing view of every profile, sorted by id.
// An empty category matches everything.
func (r *Registry) Summaries(category string) []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Summary, 0, len(r.profiles))
	for _, p := range r.profiles {
		if category == "" || p.Category == category {
			out = append(out, p.Summarize())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of registered profiles.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}
