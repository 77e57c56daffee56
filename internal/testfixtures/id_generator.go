package testfixtures

import (
	"strconv"
	"sync"
)

// IDGenerator hands out predictable ids such as "bk-1", "bk-2" so assertions
// can name bookings before they are created.
type IDGenerator struct {
	mu     sync.Mutex
	prefix string
	next   int
}

// NewIDGenerator uses prefix, or "id" when empty.
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix, next: 1}
}

func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.format(g.next)
	g.next++
	return id
}

// Peek returns the id Next would produce without consuming it.
func (g *IDGenerator) Peek() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.format(g.next)
}

// NextFunc adapts the generator to the func() string services expect.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// Reset restarts the sequence at 1.
func (g *IDGenerator) Reset() {
	g.mu.Lock()
	g.next = 1
	g.mu.Unlock()
}

func (g *IDGenerator) format(n int) string {
	return g.prefix + "-" + strconv.Itoa(n)
}
