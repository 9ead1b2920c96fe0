package domain

// SeenSet holds the request ids observed during the current session.
//
// The set is bounded: once it holds more than limit ids the least recently
// seen ids are forgotten first. A non-positive limit keeps every id.
// Filter never forgets an id of the batch it is filtering, so a batch larger
// than the limit is remembered whole.
// SeenSet is not safe for concurrent use; the Syncer owning it serializes access.
type SeenSet struct {
	limit int
	ids   map[string]uint64 // id -> seq of its live order entry
	order []seenEntry       // oldest first from head; entries with an outdated seq are dead
	head  int
	seq   uint64
}

type seenEntry struct {
	id  string
	seq uint64
}

// NewSeenSet creates an empty seen set that remembers at most limit ids.
func NewSeenSet(limit int) *SeenSet {
	return &SeenSet{
		limit: limit,
		ids:   make(map[string]uint64),
	}
}

// Contains reports whether id has been seen.
func (s *SeenSet) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Add records id as the most recently seen. It returns false if id was
// already present.
func (s *SeenSet) Add(id string) bool {
	added := s.touch(id)
	s.evict(0)
	return added
}

// Len returns the number of remembered ids.
func (s *SeenSet) Len() int {
	return len(s.ids)
}

// IDs returns the remembered ids, least recently seen first.
func (s *SeenSet) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for _, e := range s.order[s.head:] {
		if s.live(e) {
			out = append(out, e.id)
		}
	}
	return out
}

func (s *SeenSet) live(e seenEntry) bool {
	seq, ok := s.ids[e.id]
	return ok && seq == e.seq
}

// touch moves id to the most recent position and reports whether it was new.
func (s *SeenSet) touch(id string) bool {
	_, existed := s.ids[id]
	s.seq++
	s.ids[id] = s.seq
	s.order = append(s.order, seenEntry{id: id, seq: s.seq})
	return !existed
}

// evict forgets the least recently seen ids until the set fits its limit,
// but never shrinks it below keep.
func (s *SeenSet) evict(keep int) {
	if s.limit > 0 {
		limit := max(s.limit, keep)
		for len(s.ids) > limit {
			e := s.order[s.head]
			s.order[s.head] = seenEntry{}
			s.head++
			if s.live(e) {
				delete(s.ids, e.id)
			}
		}
	}
	s.compact()
}

// compact drops dead entries once they outnumber the live ones.
func (s *SeenSet) compact() {
	if len(s.order)-len(s.ids) <= len(s.ids) {
		return
	}
	live := make([]seenEntry, 0, len(s.ids)+1)
	for _, e := range s.order[s.head:] {
		if s.live(e) {
			live = append(live, e)
		}
	}
	s.order = live
	s.head = 0
}

// Filter returns the events of batch whose request id is not in seen,
// preserving batch order, and adds the returned ids to seen.
// An id repeated within one batch is admitted only once. Every id of the
// batch survives eviction, so filtering the same batch again admits nothing.
func Filter(batch []Event, seen *SeenSet) []Event {
	admitted := make([]Event, 0, len(batch))
	inBatch := make(map[string]struct{}, len(batch))
	for _, e := range batch {
		if _, dup := inBatch[e.RequestID]; dup {
			continue
		}
		inBatch[e.RequestID] = struct{}{}
		if seen.touch(e.RequestID) {
			admitted = append(admitted, e)
		}
	}
	seen.evict(len(inBatch))
	return admitted
}
