package topics

// seedTopics returns the built-in long-division topic catalog.
// Prerequisites must form a DAG; NewCatalog verifies this.
func seedTopics() []Topic {
	return []Topic{
		{
			ID:               "basic-facts",
			Name:             "Division Facts",
			Levels:           LevelRange{Min: 1, Max: 2},
			ConceptTags:      []string{"facts", "times-tables"},
			DifficultyWeight: 1.0,
		},
		{
			ID:               "single-digit-divisor",
			Name:             "Dividing by a Single Digit",
			Levels:           LevelRange{Min: 2, Max: 4},
			Prerequisites:    []string{"basic-facts"},
			ConceptTags:      []string{"quotient", "place-value"},
			DifficultyWeight: 1.2,
		},
		{
			ID:               "remainders",
			Name:             "Division with Remainders",
			Levels:           LevelRange{Min: 4, Max: 6},
			Prerequisites:    []string{"single-digit-divisor"},
			ConceptTags:      []string{"remainder", "quotient"},
			DifficultyWeight: 1.5,
		},
		{
			ID:               "two-digit-divisor",
			Name:             "Dividing by Two Digits",
			Levels:           LevelRange{Min: 6, Max: 8},
			Prerequisites:    []string{"remainders"},
			ConceptTags:      []string{"estimation", "long-division"},
			DifficultyWeight: 1.8,
		},
		{
			ID:               "large-dividends",
			Name:             "Long Division with Large Numbers",
			Levels:           LevelRange{Min: 8, Max: 10},
			Prerequisites:    []string{"two-digit-divisor"},
			ConceptTags:      []string{"multi-step", "long-division"},
			DifficultyWeight: 2.0,
		},
	}
}
