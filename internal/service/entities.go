package service

import (
	"regexp"
	"strings"

	"github.com/mnemohq/mnemo/internal/domain"
)

// Bounds on extracted entity lists, to keep index rows small.
const (
	maxPeople      = 10
	maxProjects    = 10
	maxDeadlines   = 10
	maxActionItems = 20
	maxQuestions   = 10
	maxDecisions   = 10
)

var (
	// Capitalized words not at sentence start are treated as names.
	capitalizedRe = regexp.MustCompile(`(?:[a-z0-9,;]\s+)([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`)

	projectRe  = regexp.MustCompile(`(?i)(?:the\s+)?([A-Z][A-Za-z0-9]*)\s+project|project\s+([A-Z][A-Za-z0-9]*)`)
	deadlineRe = regexp.MustCompile(`(?i)\b(?:by|due|before|until|deadline[:\s]+)\s*((?:monday|tuesday|wednesday|thursday|friday|saturday|sunday|tomorrow|today|next week|end of (?:day|week|month)|\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}(?:/\d{2,4})?|(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2}))`)
	actionRe   = regexp.MustCompile(`(?im)^\s*(?:[-*]\s*)?(?:\[\s?\]\s*)?(?:todo|action|need to|must|should|will)\b[:\s]*(.+)$`)
	decisionRe = regexp.MustCompile(`(?im)(?:decided|agreed|approved|concluded)\s+(?:to|that|on)\s+([^.!?\n]+)`)
)

// fillEntities extracts people, projects, deadlines, action items, questions
// and decisions from content, filling only keys the caller left absent.
func fillEntities(md domain.Metadata, content string) {
	if md.StringSlice("participants") == nil {
		md["participants"] = extractPeople(content)
	}
	if md.StringSlice("people") == nil {
		md["people"] = md.StringSlice("participants")
	}
	if md.StringSlice("projects") == nil {
		md["projects"] = extractProjects(content)
	}
	if md.StringSlice("deadlines") == nil {
		md["deadlines"] = extractDeadlines(content)
	}
	if md.StringSlice("action_items") == nil {
		md["action_items"] = extractActionItems(content)
	}
	if md.StringSlice("questions") == nil {
		md["questions"] = extractQuestions(content)
	}
	if md.StringSlice("decisions") == nil {
		md["decisions"] = extractDecisions(content)
	}
}

func extractPeople(content string) []string {
	seen := make(map[string]struct{})
	var people []string
	for _, match := range capitalizedRe.FindAllStringSubmatch(content, -1) {
		name := strings.TrimSpace(match[1])
		if name == "" || isCommonCapitalized(name) {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		people = append(people, name)
		if len(people) >= maxPeople {
			break
		}
	}
	return people
}

// Day, month and pronoun capitals are not names.
var commonCapitalized = map[string]struct{}{
	"Monday": {}, "Tuesday": {}, "Wednesday": {}, "Thursday": {}, "Friday": {},
	"Saturday": {}, "Sunday": {}, "January": {}, "February": {}, "March": {},
	"April": {}, "May": {}, "June": {}, "July": {}, "August": {},
	"September": {}, "October": {}, "November": {}, "December": {},
	"The": {}, "This": {}, "That": {}, "Then": {}, "When": {}, "Where": {},
}

func isCommonCapitalized(name string) bool {
	first := name
	if i := strings.IndexByte(first, ' '); i >= 0 {
		first = first[:i]
	}
	_, common := commonCapitalized[first]
	return common
}

func extractProjects(content string) []string {
	seen := make(map[string]struct{})
	var projects []string
	for _, match := range projectRe.FindAllStringSubmatch(content, -1) {
		name := match[1]
		if name == "" {
			name = match[2]
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		projects = append(projects, name)
		if len(projects) >= maxProjects {
			break
		}
	}
	return projects
}

func extractDeadlines(content string) []string {
	var deadlines []string
	for _, match := range deadlineRe.FindAllStringSubmatch(content, -1) {
		deadlines = append(deadlines, strings.TrimSpace(match[1]))
		if len(deadlines) >= maxDeadlines {
			break
		}
	}
	return deadlines
}

func extractActionItems(content string) []string {
	var items []string
	for _, match := range actionRe.FindAllStringSubmatch(content, -1) {
		item := strings.TrimSpace(match[1])
		if item == "" {
			continue
		}
		items = append(items, item)
		if len(items) >= maxActionItems {
			break
		}
	}
	return items
}

func extractQuestions(content string) []string {
	if !strings.Contains(content, "?") {
		return nil
	}

	segments := strings.Split(content, "?")
	// Text after the final question mark is not a question.
	segments = segments[:len(segments)-1]

	var questions []string
	for _, segment := range segments {
		// Keep the clause after the last terminator before the question mark.
		if i := strings.LastIndexAny(segment, ".!\n"); i >= 0 {
			segment = segment[i+1:]
		}
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		questions = append(questions, segment+"?")
		if len(questions) >= maxQuestions {
			break
		}
	}
	return questions
}

func extractDecisions(content string) []string {
	var decisions []string
	for _, match := range decisionRe.FindAllStringSubmatch(content, -1) {
		decisions = append(decisions, strings.TrimSpace(match[1]))
		if len(decisions) >= maxDecisions {
			break
		}
	}
	return decisions
}
