package ai

import (
	"context"

	"title-classifier/internal/taxonomy"
)

// Suggestion is a model-produced classification proposal for a title the
// deterministic engine could not match.
type Suggestion struct {
	Function    string
	SubFunction string
	Seniority   string
	Score       float64
	Reason      string
	Raw         string
	Confident   bool
}

// Suggester asks an external model for a classification suggestion, scoped
// to the functions and seniority labels of the given snapshot.
type Suggester interface {
	Suggest(ctx context.Context, title string, snap *taxonomy.Snapshot) (*Suggestion, error)
}
