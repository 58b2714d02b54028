// Package topics holds the static catalog of long-division topics.
// The catalog is seeded in code, validated at init, and immutable
// afterwards. Levels run 1-10; each topic declares the inclusive level
// range in which it is presented and its prerequisite topics (a DAG).
package topics

// LevelRange is an inclusive span of difficulty levels.
type LevelRange struct {
	Min int
	Max int
}

// Contains reports whether level falls inside the range.
func (r LevelRange) Contains(level int) bool {
	return level >= r.Min && level <= r.Max
}

// Topic is a static catalog entry. Immutable after seeding.
type Topic struct {
	ID               string
	Name             string
	Levels           LevelRange
	Prerequisites    []string // topic IDs, ordered
	ConceptTags      []string
	DifficultyWeight float64
}
