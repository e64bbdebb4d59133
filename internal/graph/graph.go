// Package graph builds the read-only knowledge map summary.
package graph

import "github.com/starford/cogninote/internal/models"

// Node is one note in the map.
type Node struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Category        models.Category `json:"category"`
	MasteryScore    int             `json:"masteryScore"`
	ConnectionCount int             `json:"connectionCount"`
}

// Projection is the map: nodes plus the aggregate connection count.
type Projection struct {
	Nodes            []Node `json:"nodes"`
	TotalConnections int    `json:"totalConnections"`
}

// Project derives the map from notes. Connections are directed display
// annotations: A→B and B→A count twice, and edges are never walked.
func Project(notes []models.Note) Projection {
	p := Projection{Nodes: make([]Node, 0, len(notes))}
	for _, n := range notes {
		count := len(n.Connections)
		p.Nodes = append(p.Nodes, Node{
			ID:              n.ID,
			Title:           n.Title,
			Category:        n.Category,
			MasteryScore:    n.MasteryScore,
			ConnectionCount: count,
		})
		p.TotalConnections += count
	}
	return p
}
