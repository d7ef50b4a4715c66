package testutil

import (
	"fmt"
	"time"
)

// StubClock is a controllable clock for tests. Time only moves when the
// test moves it.
type StubClock struct {
	now time.Time
}

// NewStubClock creates a clock frozen at the given instant.
func NewStubClock(now time.Time) *StubClock {
	return &StubClock{now: now}
}

// Now returns the current stub time.
func (c *StubClock) Now() time.Time {
	return c.now
}

// Advance moves the clock forward by d.
func (c *StubClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// Set moves the clock to the given instant.
func (c *StubClock) Set(t time.Time) {
	c.now = t
}

// StubIDGenerator produces deterministic sequential ids.
type StubIDGenerator struct {
	prefix string
	next   int
}

// NewStubIDGenerator creates a generator producing "<prefix>-1",
// "<prefix>-2", and so on.
func NewStubIDGenerator(prefix string) *StubIDGenerator {
	return &StubIDGenerator{prefix: prefix}
}

// New returns the next id in sequence.
func (g *StubIDGenerator) New() string {
	g.next++
	return fmt.Sprintf("%s-%d", g.prefix, g.next)
}
