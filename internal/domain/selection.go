package domain

// SelectionSet is the ordered working set of services chosen in the wizard.
// Names are unique; Add keeps the first occurrence.
type SelectionSet struct {
	services []ServiceDescriptor
}

func NewSelectionSet(initial ...ServiceDescriptor) *SelectionSet {
	s := &SelectionSet{}
	s.Add(initial...)
	return s
}

func (s *SelectionSet) Has(name string) bool {
	return s.index(name) >= 0
}

func (s *SelectionSet) Get(name string) (ServiceDescriptor, bool) {
	if i := s.index(name); i >= 0 {
		return s.services[i], true
	}
	return ServiceDescriptor{}, false
}

// Add appends services not already present and returns how many were added.
func (s *SelectionSet) Add(svcs ...ServiceDescriptor) int {
	added := 0
	for _, svc := range svcs {
		if svc.Name == "" || s.Has(svc.Name) {
			continue
		}
		s.services = append(s.services, svc)
		added++
	}
	return added
}

// Remove drops the named services and returns how many were removed.
func (s *SelectionSet) Remove(names ...string) int {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	kept := s.services[:0]
	removed := 0
	for _, svc := range s.services {
		if _, ok := drop[svc.Name]; ok {
			removed++
			continue
		}
		kept = append(kept, svc)
	}
	s.services = kept
	return removed
}

// Update replaces the stored descriptor with the same name.
func (s *SelectionSet) Update(svc ServiceDescriptor) bool {
	if i := s.index(svc.Name); i >= 0 {
		s.services[i] = svc
		return true
	}
	return false
}

func (s *SelectionSet) Len() int {
	return len(s.services)
}

// Services returns a copy of the selection in insertion order.
func (s *SelectionSet) Services() []ServiceDescriptor {
	out := make([]ServiceDescriptor, len(s.services))
	copy(out, s.services)
	return out
}

func (s *SelectionSet) Names() []string {
	out := make([]string, len(s.services))
	for i, svc := range s.services {
		out[i] = svc.Name
	}
	return out
}

func (s *SelectionSet) index(name string) int {
	for i, svc := range s.services {
		if svc.Name == name {
			return i
		}
	}
	return -1
}
