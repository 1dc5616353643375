package session

import (
	"time"

	"github.com/abhisek/chemgen/internal/questiongen"
)

// Item is one result in the session list, addressed by a stable ID.
type Item struct {
	ID        string                         `json:"id"`
	Result    questiongen.AnalysisResult     `json:"result"`
	Critiques []questiongen.CritiqueExchange `json:"critiques,omitempty"`
	CreatedAt time.Time                      `json:"createdAt"`
	UpdatedAt time.Time                      `json:"updatedAt"`

	// Revision increases each time Result is replaced. A response computed
	// from an older revision is discarded.
	Revision int `json:"revision"`

	// Transforming is set while a Transform for this item is in flight.
	Transforming bool `json:"transforming"`
}

func (it *Item) clone() Item {
	c := *it
	c.Critiques = append([]questiongen.CritiqueExchange(nil), it.Critiques...)
	return c
}

// Snapshot is a consistent view of the session.
type Snapshot struct {
	Items     []Item                `json:"items"`
	Busy      bool                  `json:"busy"`
	Operation questiongen.Operation `json:"operation,omitempty"`
}
