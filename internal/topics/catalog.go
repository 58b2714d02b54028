package topics

import (
	"fmt"
	"strings"
)

// Catalog is an ordered, validated set of topics with lookup indices.
type Catalog struct {
	topics []Topic
	byID   map[string]*Topic
}

// NewCatalog builds a catalog from the given topics, validating structure.
func NewCatalog(ts []Topic) (*Catalog, error) {
	if err := validateTopics(ts); err != nil {
		return nil, err
	}
	c := &Catalog{
		topics: ts,
		byID:   make(map[string]*Topic, len(ts)),
	}
	for i := range c.topics {
		c.byID[c.topics[i].ID] = &c.topics[i]
	}
	return c, nil
}

// Default returns the seeded long-division catalog.
// Panics on a malformed seed; the seed is compile-time data.
func Default() *Catalog {
	c, err := NewCatalog(seedTopics())
	if err != nil {
		panic(fmt.Sprintf("topics: invalid seed catalog: %v", err))
	}
	return c
}

// All returns every topic in seed order.
func (c *Catalog) All() []Topic {
	out := make([]Topic, len(c.topics))
	copy(out, c.topics)
	return out
}

// ByID returns the topic with the given ID, or nil.
func (c *Catalog) ByID(id string) *Topic {
	return c.byID[id]
}

// ForLevel returns, in seed order, the topics whose level range contains
// the given level.
func (c *Catalog) ForLevel(level int) []Topic {
	var out []Topic
	for _, t := range c.topics {
		if t.Levels.Contains(level) {
			out = append(out, t)
		}
	}
	return out
}

// validateTopics checks for duplicate IDs, dangling prerequisites, and
// cycles (Kahn's algorithm). Returns a combined error listing every
// problem found, or nil.
func validateTopics(ts []Topic) error {
	var errs []string

	idSet := make(map[string]bool, len(ts))
	for _, t := range ts {
		if idSet[t.ID] {
			errs = append(errs, fmt.Sprintf("duplicate topic ID: %q", t.ID))
		}
		idSet[t.ID] = true
		if t.Levels.Min < 1 || t.Levels.Max > 10 || t.Levels.Min > t.Levels.Max {
			errs = append(errs, fmt.Sprintf("topic %q has invalid level range %d-%d", t.ID, t.Levels.Min, t.Levels.Max))
		}
	}

	for _, t := range ts {
		for _, p := range t.Prerequisites {
			if !idSet[p] {
				errs = append(errs, fmt.Sprintf("topic %q references nonexistent prerequisite %q", t.ID, p))
			}
		}
	}

	inDegree := make(map[string]int, len(ts))
	adj := make(map[string][]string)
	for _, t := range ts {
		inDegree[t.ID] = len(t.Prerequisites)
		for _, p := range t.Prerequisites {
			adj[p] = append(adj[p], t.ID)
		}
	}

	var queue []string
	for _, t := range ts {
		if inDegree[t.ID] == 0 {
			queue = append(queue, t.ID)
		}
	}
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range adj[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if visited < len(ts) {
		var cycleNodes []string
		for _, t := range ts {
			if inDegree[t.ID] > 0 {
				cycleNodes = append(cycleNodes, t.ID)
			}
		}
		errs = append(errs, fmt.Sprintf("cycle detected involving topics: %s", strings.Join(cycleNodes, ", ")))
	}

	if len(errs) > 0 {
		return fmt.Errorf("topic catalog validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}
