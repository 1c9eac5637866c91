package service

import (
	"strings"

	"github.com/mnemohq/mnemo/internal/domain"
)

// moduleKeywords are the voting lexicons for module determination when the
// caller does not pin a module.
var moduleKeywords = map[string][]string{
	domain.ModuleTechnical: {
		"code", "function", "bug", "api", "server", "database", "deploy",
		"error", "compile", "debug", "library", "framework", "script",
	},
	domain.ModuleWork: {
		"meeting", "project", "deadline", "client", "report", "task",
		"presentation", "stakeholder", "sprint", "quarterly", "budget",
	},
	domain.ModuleLearning: {
		"learn", "course", "study", "book", "tutorial", "lecture", "chapter",
		"concept", "practice", "exam",
	},
	domain.ModuleCommunication: {
		"email", "call", "message", "conversation", "replied", "discussed",
		"told", "spoke", "chat", "said",
	},
	domain.ModuleCreative: {
		"idea", "design", "story", "draft", "sketch", "write", "song",
		"paint", "inspiration", "compose",
	},
	domain.ModulePersonal: {
		"family", "friend", "home", "weekend", "feel", "birthday", "dinner",
		"hobby", "vacation", "health",
	},
}

// ClassifyModule picks the module whose keyword lexicon scores highest on
// the content. Ties resolve in builtin registration order; no votes fall
// back to the personal module.
func ClassifyModule(content string) string {
	lower := strings.ToLower(content)

	best := domain.ModulePersonal
	bestScore := 0
	for _, id := range domain.ModuleIDs() {
		score := 0
		for _, kw := range moduleKeywords[id] {
			score += strings.Count(lower, kw)
		}
		if score > bestScore {
			best, bestScore = id, score
		}
	}
	return best
}
