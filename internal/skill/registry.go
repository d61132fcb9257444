package skill

import (
	"sort"
	"sync/atomic"
)

// Registry is an immutable snapshot of loaded skills. Reloading builds a
// new Registry instead of modifying an existing one.
type Registry struct {
	skills map[string]*Skill
	names  []string
}

func newRegistry(skills map[string]*Skill) *Registry {
	names := make([]string, 0, len(skills))
	for name := range skills {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Registry{skills: skills, names: names}
}

// Resolve retrieves a skill by name
func (r *Registry) Resolve(name string) (*Skill, error) {
	skill, exists := r.skills[name]
	if !exists {
		return nil, &UnknownSkillError{Name: name, Available: r.Names()}
	}
	return skill, nil
}

// List returns all registered skills ordered by name
func (r *Registry) List() []*Skill {
	skills := make([]*Skill, 0, len(r.names))
	for _, name := range r.names {
		skills = append(skills, r.skills[name])
	}
	return skills
}

// Infos returns the listing view of every skill ordered by name.
func (r *Registry) Infos() []Info {
	infos := make([]Info, 0, len(r.names))
	for _, name := range r.names {
		infos = append(infos, r.skills[name].Info())
	}
	return infos
}

// Names returns all registered skill names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, len(r.names))
	copy(names, r.names)
	return names
}

// Exists checks if a skill exists
func (r *Registry) Exists(name string) bool {
	_, exists := r.skills[name]
	return exists
}

// Count returns the number of registered skills
func (r *Registry) Count() int {
	return len(r.skills)
}

// Store holds the active registry. Readers take a snapshot with Current and
// keep using it even if a reload swaps in a new registry meanwhile.
type Store struct {
	loader  *Loader
	current atomic.Pointer[Registry]
}

// NewStore loads the registry from dir. The initial load must succeed.
func NewStore(dir string) (*Store, error) {
	s := &Store{loader: NewLoader(dir)}
	if _, err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStoreWith wraps an already built registry. Reload reads from dir.
func NewStoreWith(dir string, registry *Registry) *Store {
	s := &Store{loader: NewLoader(dir)}
	s.current.Store(registry)
	return s
}

// Current returns the active registry snapshot.
func (s *Store) Current() *Registry {
	return s.current.Load()
}

// Reload rebuilds the registry from disk and swaps it in whole. On error
// the previous registry stays active.
func (s *Store) Reload() (*Registry, error) {
	registry, err := s.loader.Load()
	if err != nil {
		return nil, err
	}
	s.current.Store(registry)
	return registry, nil
}

// NewRegistry builds a registry from skills already in memory. Later
// entries win on duplicate names.
func NewRegistry(skills ...*Skill) *Registry {
	m := make(map[string]*Skill, len(skills))
	for _, s := range skills {
		if s != nil && s.Name != "" {
			m[s.Name] = s
		}
	}
	return newRegistry(m)
}
