package domain

import "time"

const (
	// DisplayCapacity is the number of events kept in the display window.
	DisplayCapacity = 20

	// PollInterval is the fixed delay between feed polls.
	PollInterval = 15 * time.Second

	// SeenGrace is how many ids beyond the window capacity the seen set remembers.
	// Larger batches are still remembered whole, see Filter.
	SeenGrace = 80
)
