package execution

import "slices"

// Waitlist is the set of open order ids. It is guarded by the engine lock.
type Waitlist struct {
	ids map[string]struct{}
}

func NewWaitlist() *Waitlist {
	return &Waitlist{ids: make(map[string]struct{})}
}

func (w *Waitlist) Add(id string) {
	w.ids[id] = struct{}{}
}

// Remove deletes id and reports whether it was present. Removing an absent id is a no-op.
func (w *Waitlist) Remove(id string) bool {
	if _, ok := w.ids[id]; !ok {
		return false
	}
	delete(w.ids, id)
	return true
}

func (w *Waitlist) Has(id string) bool {
	_, ok := w.ids[id]
	return ok
}

func (w *Waitlist) Len() int {
	return len(w.ids)
}

// IDs returns the members sorted; ids lead with their creation time, so this is
// creation order for ids of equal width.
func (w *Waitlist) IDs() []string {
	ids := make([]string, 0, len(w.ids))
	for id := range w.ids {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
