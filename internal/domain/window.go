package domain

// Admit folds newly admitted events into the display window.
// The result is admitted ++ window truncated to capacity, newest-admitted first.
// Batch order is kept as is; events are never re-sorted by Timestamp.
// Neither input slice is modified or aliased by the result.
func Admit(window, admitted []Event, capacity int) []Event {
	if capacity < 0 {
		capacity = 0
	}
	n := len(admitted) + len(window)
	if n > capacity {
		n = capacity
	}

	out := make([]Event, 0, n)
	for _, src := range [][]Event{admitted, window} {
		for _, e := range src {
			if len(out) == n {
				return out
			}
			out = append(out, e)
		}
	}
	return out
}
