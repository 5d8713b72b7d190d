package chat

import "time"

// Session captures the live conversation of one owner.
type Session struct {
	ID           string    `json:"id"`
	Owner        string    `json:"owner"`
	Difficulty   string    `json:"difficulty"`
	Turns        []Turn    `json:"turns"`
	TotalScore   int       `json:"totalScore"`
	ScoredTurns  int       `json:"scoredTurns"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// Record is a saved chat session. Records are never modified after creation.
type Record struct {
	Timestamp    int64    `json:"timestamp"`
	AverageScore float64  `json:"averageScore"`
	Messages     []Bubble `json:"messages"`
	Summary      string   `json:"summary,omitempty"`
}
