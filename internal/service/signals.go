package service

import (
	"strings"

	"github.com/mnemohq/mnemo/internal/domain"
)

var positiveWords = []string{
	"great", "good", "happy", "excellent", "love", "excited", "wonderful",
	"success", "win", "glad", "thanks", "amazing", "enjoyed", "progress",
}

var negativeWords = []string{
	"bad", "sad", "angry", "terrible", "hate", "worried", "awful", "fail",
	"problem", "blocked", "frustrated", "upset", "broken", "missed",
}

var urgentWords = []string{
	"urgent", "asap", "immediately", "critical", "emergency", "now", "today",
}

// fillSignals derives valence, sentiment, tone, priority and the
// response-required flag from content, filling only absent keys.
func fillSignals(md domain.Metadata, content string) {
	lower := strings.ToLower(content)
	valence := scoreValence(lower)

	if _, ok := md.Float("emotional_valence"); !ok {
		md["emotional_valence"] = valence
	}
	if md.String("sentiment") == "" {
		md["sentiment"] = sentimentBucket(valence)
	}
	if md.String("tone") == "" {
		md["tone"] = toneBucket(lower, valence)
	}
	if md.String("priority") == "" {
		md["priority"] = priorityBucket(lower)
	}
	if _, present := md["response_required"]; !present {
		md["response_required"] = responseRequired(lower)
	}
}

// scoreValence counts ± lexicon hits and maps the balance into [-1, 1].
func scoreValence(lower string) float64 {
	pos, neg := 0, 0
	for _, w := range positiveWords {
		pos += strings.Count(lower, w)
	}
	for _, w := range negativeWords {
		neg += strings.Count(lower, w)
	}
	total := pos + neg
	if total == 0 {
		return 0
	}
	return float64(pos-neg) / float64(total)
}

func sentimentBucket(valence float64) string {
	switch {
	case valence > 0.2:
		return "positive"
	case valence < -0.2:
		return "negative"
	default:
		return "neutral"
	}
}

func toneBucket(lower string, valence float64) string {
	switch {
	case containsAny(lower, urgentWords):
		return "urgent"
	case valence < -0.2:
		return "concerned"
	case valence > 0.2:
		return "enthusiastic"
	case strings.Contains(lower, "?"):
		return "inquisitive"
	default:
		return "informational"
	}
}

func priorityBucket(lower string) string {
	switch {
	case containsAny(lower, urgentWords):
		return "high"
	case containsAny(lower, []string{"soon", "this week", "important", "priority"}):
		return "medium"
	default:
		return "low"
	}
}

func responseRequired(lower string) bool {
	if strings.Contains(lower, "?") {
		return true
	}
	return containsAny(lower, []string{"please respond", "let me know", "get back to me", "rsvp", "waiting for", "need your"})
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
