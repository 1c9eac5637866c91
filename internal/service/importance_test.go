package service

import (
	"testing"

	"github.com/mnemohq/mnemo/internal/domain"
)

func TestScoreImportance(t *testing.T) {
	tests := []struct {
		name    string
		md      domain.Metadata
		content string
		want    float64
	}{
		{
			name:    "low priority nothing else",
			md:      domain.Metadata{"priority": "low"},
			content: "notes",
			want:    0.15,
		},
		{
			name:    "medium priority",
			md:      domain.Metadata{"priority": "medium"},
			content: "notes",
			want:    0.3,
		},
		{
			name:    "high priority with deadline",
			md:      domain.Metadata{"priority": "high", "deadlines": []string{"friday"}},
			content: "notes",
			want:    0.7,
		},
		{
			name: "clamped at one",
			md: domain.Metadata{
				"priority":     "high",
				"deadlines":    []string{"friday"},
				"participants": []string{"a", "b", "c", "d"},
			},
			content: "notes",
			want:    1,
		},
		{
			name:    "two participants",
			md:      domain.Metadata{"priority": "low", "participants": []string{"a", "b"}},
			content: "notes",
			want:    0.3,
		},
		{
			name:    "one participant",
			md:      domain.Metadata{"priority": "low", "participants": []string{"a"}},
			content: "notes",
			want:    0.2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scoreImportance(tt.md, tt.content)
			if !closeTo(got, tt.want) {
				t.Fatalf("scoreImportance() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScoreImportance_DerivesPriorityFromContent(t *testing.T) {
	// No priority in metadata; urgent content buckets to high (0.45),
	// and the inline "by friday" deadline adds 0.25.
	got := scoreImportance(domain.Metadata{"participants": []string{}}, "urgent: finish the rollout by friday")
	if !closeTo(got, 0.7) {
		t.Fatalf("scoreImportance() = %v, want 0.7", got)
	}
}

func closeTo(got, want float64) bool {
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	return diff < 1e-9
}

func TestImportanceOf(t *testing.T) {
	tests := []struct {
		name string
		md   domain.Metadata
		want float32
	}{
		{"absent defaults", domain.Metadata{}, DefaultImportance},
		{"stored value", domain.Metadata{"importance": 0.8}, 0.8},
		{"clamped high", domain.Metadata{"importance": 3.0}, 1},
		{"clamped low", domain.Metadata{"importance": -0.5}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := importanceOf(tt.md); got != tt.want {
				t.Fatalf("importanceOf() = %v, want %v", got, tt.want)
			}
		})
	}
}
