package service

import (
	"strings"

	"github.com/mnemohq/mnemo/internal/domain"
)

// DefaultImportance is assumed for memories whose module skips the
// importance policy; the ranking math needs a neutral non-zero weight.
const DefaultImportance = 0.5

var priorityWeights = map[string]float64{
	"high":   0.9,
	"medium": 0.6,
	"low":    0.3,
}

// scoreImportance combines priority weight, deadline proximity and breadth
// of involvement into [0, 1]. Used as the central-index importance score.
func scoreImportance(md domain.Metadata, content string) float64 {
	score := 0.4

	priority := md.String("priority")
	if priority == "" {
		priority = priorityBucket(strings.ToLower(content))
	}
	if w, ok := priorityWeights[priority]; ok {
		score = w * 0.5
	}

	// Near-term deadlines push importance up.
	deadlines := md.StringSlice("deadlines")
	if deadlines == nil {
		deadlines = extractDeadlines(content)
	}
	if len(deadlines) > 0 {
		score += 0.25
	}

	// More participants means a broader blast radius.
	participants := md.StringSlice("participants")
	if participants == nil {
		participants = extractPeople(content)
	}
	switch {
	case len(participants) >= 4:
		score += 0.25
	case len(participants) >= 2:
		score += 0.15
	case len(participants) == 1:
		score += 0.05
	}

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

// importanceOf reads the stored importance, defaulting when absent.
func importanceOf(md domain.Metadata) float32 {
	if v, ok := md.Float("importance"); ok {
		if v < 0 {
			return 0
		}
		if v > 1 {
			return 1
		}
		return float32(v)
	}
	return DefaultImportance
}
