package domain

import (
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
)

var (
	// ErrTransport marks a cycle that failed before any markup was available:
	// unreachable upstream, non-2xx status, or a TLS failure.
	ErrTransport = errors.New("upstream transport failure")

	// ErrParse marks a cycle whose markup could not be turned into a snapshot.
	ErrParse = errors.New("status page parse failure")
)

// Occupancy is the state of one garage in one ingestion cycle.
// Open is nil when the open-spot count could not be determined.
type Occupancy struct {
	Total int  `json:"total"`
	Open  *int `json:"open"`
}

// Known reports whether the open-spot count was determined.
func (o Occupancy) Known() bool {
	return o.Open != nil
}

// Full reports whether the garage is confirmed full.
func (o Occupancy) Full() bool {
	return o.Open != nil && *o.Open == 0
}

// Snapshot maps garage name to occupancy for a single ingestion cycle.
type Snapshot map[string]Occupancy

// Unknown returns the number of garages whose open count is undetermined.
func (s Snapshot) Unknown() int {
	n := 0
	for _, o := range s {
		if !o.Known() {
			n++
		}
	}
	return n
}

// Observation is a snapshot stamped with the time it was taken.
type Observation struct {
	ObservedAt time.Time `json:"observed_at"`
	Garages    Snapshot  `json:"garages"`
}

// observedAt supplies ObservedAt for every Observation built by Observe.
var observedAt clockwork.Clock = clockwork.NewRealClock()

// SetClock makes Observe stamp ObservedAt from c instead of the wall clock,
// so published observations carry a predictable timestamp. nil restores the
// wall clock.
func SetClock(c clockwork.Clock) {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	observedAt = c
}

// Observe pairs a snapshot with the UTC time it was taken.
func Observe(s Snapshot) Observation {
	return Observation{
		ObservedAt: observedAt.Now().UTC(),
		Garages:    s,
	}
}

func intPtr(v int) *int {
	return &v
}
