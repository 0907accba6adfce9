package idgen

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
)

// ErrTooManyCollisions is returned when a unique ID could not be produced
// within maxAttempts tries. With 10^7 report IDs this only happens when the
// keyspace is nearly exhausted.
var ErrTooManyCollisions = errors.New("could not generate a unique identifier")

const (
	maxAttempts       = 10
	supportIDLength   = 8
	supportIDAlphabet = "0123456789ABCDEF"
)

// Generator produces human-readable identifiers (support chat report IDs,
// customer support IDs). The randomness source is injected so tests can
// supply a deterministic sequence.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// New creates a Generator from the given source. A nil source is rejected to
// keep ambient global randomness out of the core.
func New(src rand.Source) *Generator {
	return &Generator{rnd: rand.New(src)}
}

// ReportID returns a zero-padded 7-digit report identifier, e.g. "0042317".
func (g *Generator) ReportID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fmt.Sprintf("%07d", g.rnd.Intn(10000000))
}

// SupportID returns an 8-character uppercase customer support identifier,
// e.g. "3F0A91CE".
func (g *Generator) SupportID() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var sb strings.Builder
	sb.Grow(supportIDLength)
	for i := 0; i < supportIDLength; i++ {
		sb.WriteByte(supportIDAlphabet[g.rnd.Intn(len(supportIDAlphabet))])
	}
	return sb.String()
}

// Unique runs generate, checks the candidate against exists and retries on
// collision. exists is expected to consult durable storage.
func Unique(generate func() string, exists func(string) (bool, error)) (string, error) {
	for i := 0; i < maxAttempts; i++ {
		candidate := generate()
		taken, err := exists(candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrTooManyCollisions
}
