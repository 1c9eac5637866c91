package service

import (
	"strings"

	"github.com/mnemohq/mnemo/internal/domain"
)

// ProcessMetadata applies the module's post-processing policies to the
// caller's metadata. Auto-computed fields fill only absent keys; caller
// values always win.
func (m *Module) ProcessMetadata(content string, userMetadata domain.Metadata) domain.Metadata {
	md := userMetadata.Clone()
	if md == nil {
		md = domain.Metadata{}
	}

	if md.String("type") == "" {
		md["type"] = m.config.ID
	}
	if md.String("title") == "" {
		md["title"] = deriveTitle(content)
	}
	if md.String("summary") == "" {
		md["summary"] = deriveSummary(content)
	}
	if md.StringSlice("keywords") == nil {
		md["keywords"] = extractKeywords(content, maxKeywords)
	}

	if m.config.HasPolicy(domain.PolicyAutoCategorize) {
		if md.String("category") == "" {
			md["category"] = categorize(content, m.config.Categories)
		}
	}
	if md.StringSlice("categories") == nil {
		var categories []string
		if c := md.String("category"); c != "" {
			categories = append(categories, c)
		}
		md["categories"] = categories
	}

	if m.config.HasPolicy(domain.PolicyEntityExtraction) {
		fillEntities(md, content)
	}
	if m.config.HasPolicy(domain.PolicySignalAnalysis) {
		fillSignals(md, content)
	}
	if m.config.HasPolicy(domain.PolicyImportance) {
		if _, ok := md.Float("importance"); !ok {
			md["importance"] = scoreImportance(md, content)
		}
	}

	return md
}

// EmbeddingInput builds the deterministic projection of (title, summary,
// content) that is fed to the embedding provider for both full and routing
// vectors.
func EmbeddingInput(md domain.Metadata, content string) string {
	parts := make([]string, 0, 3)
	if t := md.String("title"); t != "" {
		parts = append(parts, t)
	}
	if s := md.String("summary"); s != "" {
		parts = append(parts, s)
	}
	parts = append(parts, content)
	return strings.Join(parts, "\n")
}

const (
	maxTitleLen   = 80
	maxSummaryLen = 200
	maxKeywords   = 10
)

func deriveTitle(content string) string {
	line := content
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if len(line) > maxTitleLen {
		line = strings.TrimSpace(line[:maxTitleLen])
	}
	return line
}

func deriveSummary(content string) string {
	s := strings.TrimSpace(strings.ReplaceAll(content, "\n", " "))
	if len(s) > maxSummaryLen {
		s = strings.TrimSpace(s[:maxSummaryLen])
	}
	return s
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "from": {}, "had": {}, "has": {},
	"have": {}, "he": {}, "her": {}, "his": {}, "i": {}, "in": {}, "is": {},
	"it": {}, "its": {}, "my": {}, "of": {}, "on": {}, "or": {}, "our": {},
	"she": {}, "that": {}, "the": {}, "their": {}, "them": {}, "they": {},
	"this": {}, "to": {}, "us": {}, "was": {}, "we": {}, "were": {},
	"with": {}, "you": {}, "your": {},
}

// extractKeywords returns the most frequent non-stopword tokens, first-seen
// order breaking frequency ties so output is deterministic.
func extractKeywords(content string, limit int) []string {
	counts := make(map[string]int)
	var order []string
	for _, tok := range tokenize(content) {
		if len(tok) < 3 {
			continue
		}
		if _, skip := stopwords[tok]; skip {
			continue
		}
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
	}

	// Stable selection: sort by count desc while preserving first-seen
	// order among equals.
	selected := make([]string, 0, limit)
	for len(selected) < limit {
		best := ""
		bestCount := 0
		for _, tok := range order {
			if counts[tok] > bestCount {
				best, bestCount = tok, counts[tok]
			}
		}
		if best == "" {
			break
		}
		selected = append(selected, best)
		counts[best] = 0
	}
	return selected
}

func tokenize(content string) []string {
	return strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}
