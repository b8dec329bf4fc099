// Package useragent provides a rotating pool of browser User-Agent strings.
package useragent

import (
	"math/rand"
	"sync"
)

// defaultAgents is a small set of common desktop browser identities.
var defaultAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:122.0) Gecko/20100101 Firefox/122.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
}

// Rotator hands out User-Agent strings round-robin
type Rotator struct {
	mu     sync.Mutex
	agents []string
	next   int
}

// NewRotator creates a Rotator over the given agents. An empty list falls
// back to the default set.
func NewRotator(agents []string) *Rotator {
	if len(agents) == 0 {
		agents = defaultAgents
	}
	copied := make([]string, len(agents))
	copy(copied, agents)

	return &Rotator{agents: copied}
}

// NewShuffledRotator creates a Rotator whose rotation order is shuffled
// with the given seed.
func NewShuffledRotator(agents []string, seed int64) *Rotator {
	r := NewRotator(agents)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(r.agents), func(i, j int) {
		r.agents[i], r.agents[j] = r.agents[j], r.agents[i]
	})
	return r
}

// Next returns the next User-Agent in rotation. Safe for concurrent use.
func (r *Rotator) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent := r.agents[r.next]
	r.next = (r.next + 1) % len(r.agents)
	return agent
}

// Len returns the number of agents in the pool
func (r *Rotator) Len() int {
	return len(r.agents)
}
