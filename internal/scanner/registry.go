// internal/scanner/registry.go
package scanner

// defaultIdentifiers is the factory list of known-compatible external
// scanner models. Reset always restores exactly this list.
var defaultIdentifiers = []Identifier{
	{VendorID: 0x0C2E, ProductID: 0x0B01}, // Honeywell Voyager 1200g
	{VendorID: 0x0C2E, ProductID: 0x0720}, // Honeywell Xenon 1900
	{VendorID: 0x05E0, ProductID: 0x1200}, // Zebra/Symbol DS2208
	{VendorID: 0x05F9, ProductID: 0x2204}, // Datalogic QuickScan QD2430
	{VendorID: 0x1EAB, ProductID: 0x1D06}, // Newland HR22
	{VendorID: 0x1A86, ProductID: 0x7523}, // CH340 serial bridge (cradle scanners)
}

// Registry maintains the mutable, insertion-ordered set of hardware
// identifiers recognized as compatible external scanners. It is not
// safe for concurrent use; the owning Manager serializes access.
type Registry struct {
	ordered []Identifier
	index   map[string]struct{}
}

// NewRegistry creates a registry seeded with the default identifier list
func NewRegistry() *Registry {
	r := &Registry{}
	r.Reset()
	return r
}

// Add inserts an identifier. Returns true if newly inserted, false if it
// was already present.
func (r *Registry) Add(id Identifier) bool {
	if _, ok := r.index[id.Key()]; ok {
		return false
	}
	r.index[id.Key()] = struct{}{}
	r.ordered = append(r.ordered, id)
	return true
}

// Remove deletes an identifier. Returns true if removed, false if absent.
func (r *Registry) Remove(id Identifier) bool {
	if _, ok := r.index[id.Key()]; !ok {
		return false
	}
	delete(r.index, id.Key())
	for i, existing := range r.ordered {
		if existing == id {
			r.ordered = append(r.ordered[:i], r.ordered[i+1:]...)
			break
		}
	}
	return true
}

// Contains reports whether an identifier is registered
func (r *Registry) Contains(id Identifier) bool {
	_, ok := r.index[id.Key()]
	return ok
}

// List returns the registered identifiers in insertion order. The result
// is a copy; callers may mutate it freely.
func (r *Registry) List() []Identifier {
	out := make([]Identifier, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Reset discards all mutations and re-seeds the registry from the
// default list, including defaults that were explicitly removed.
func (r *Registry) Reset() {
	r.ordered = make([]Identifier, len(defaultIdentifiers))
	copy(r.ordered, defaultIdentifiers)
	r.index = make(map[string]struct{}, len(defaultIdentifiers))
	for _, id := range defaultIdentifiers {
		r.index[id.Key()] = struct{}{}
	}
}
