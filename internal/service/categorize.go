package service

import "strings"

// categoryKeywords maps each known category to the tokens that vote for it.
var categoryKeywords = map[string][]string{
	// technical
	"code":           {"function", "code", "bug", "variable", "class", "method", "api", "library", "refactor"},
	"architecture":   {"architecture", "design", "system", "service", "component", "scalability", "pattern"},
	"debugging":      {"debug", "error", "stack", "trace", "crash", "fix", "reproduce", "log"},
	"tooling":        {"tool", "editor", "cli", "install", "config", "plugin", "setup"},
	"infrastructure": {"deploy", "server", "docker", "kubernetes", "cloud", "database", "network"},
	// personal
	"preference": {"prefer", "like", "dislike", "favorite", "hate", "enjoy"},
	"habit":      {"every", "daily", "weekly", "routine", "usually", "always", "habit"},
	"goal":       {"goal", "want", "plan", "aim", "target", "resolution", "hope"},
	"event":      {"birthday", "anniversary", "party", "trip", "vacation", "wedding"},
	"health":     {"doctor", "exercise", "sleep", "diet", "medication", "workout", "allergy"},
	// work
	"project":  {"project", "milestone", "launch", "release", "roadmap", "scope"},
	"task":     {"task", "todo", "assign", "complete", "due", "ticket", "backlog"},
	"meeting":  {"meeting", "agenda", "attendees", "discussed", "call", "standup", "sync"},
	"decision": {"decide", "decision", "agreed", "approved", "chose", "conclusion"},
	"planning": {"plan", "schedule", "quarter", "deadline", "estimate", "priority"},
	// learning
	"course":    {"course", "class", "lecture", "lesson", "tutorial", "module"},
	"reading":   {"book", "article", "paper", "chapter", "read", "author"},
	"concept":   {"concept", "theory", "principle", "definition", "understand", "idea"},
	"practice":  {"practice", "exercise", "drill", "problem", "solve", "attempt"},
	"reference": {"reference", "documentation", "manual", "cheatsheet", "glossary"},
	// communication
	"conversation": {"talked", "conversation", "chat", "spoke", "said", "told"},
	"email":        {"email", "inbox", "reply", "forwarded", "sent", "cc"},
	"message":      {"message", "text", "dm", "slack", "whatsapp", "ping"},
	"call":         {"call", "phone", "voicemail", "dial", "rang"},
	"announcement": {"announce", "announcement", "notice", "broadcast", "update"},
	// creative
	"idea":        {"idea", "brainstorm", "concept", "what if", "imagine"},
	"draft":       {"draft", "outline", "sketch", "version", "revision"},
	"design":      {"design", "layout", "color", "typography", "mockup"},
	"inspiration": {"inspiration", "inspired", "reference", "mood", "style"},
	"writing":     {"story", "poem", "essay", "character", "plot", "write"},
}

// categorize picks the taxonomy entry with the highest keyword-count score.
// The first category is the fallback when nothing matches.
func categorize(content string, taxonomy []string) string {
	if len(taxonomy) == 0 {
		return ""
	}

	lower := strings.ToLower(content)
	best := taxonomy[0]
	bestScore := 0
	for _, category := range taxonomy {
		score := 0
		for _, kw := range categoryKeywords[category] {
			score += strings.Count(lower, kw)
		}
		if score > bestScore {
			best, bestScore = category, score
		}
	}
	return best
}
