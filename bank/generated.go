package bank

import (
	"strings"

	"classroom-rollcall-go/models"
)

// Draft is a question proposed by an external generator.
type Draft struct {
	Content    string   `json:"content"`
	Difficulty string   `json:"difficulty"`
	Subject    string   `json:"subject"`
	Tags       []string `json:"tags"`
}

// AddGenerated appends drafts to the bank. Drafts without content are dropped.
func AddGenerated(state models.AppState, drafts []Draft) (models.AppState, []models.Question) {
	added := []models.Question{}
	for _, d := range drafts {
		content := strings.TrimSpace(d.Content)
		if content == "" {
			continue
		}
		q := newQuestion(content, ParseDifficulty(d.Difficulty), d.Subject)
		q.Tags = cleanTags(d.Tags)
		added = append(added, q)
	}

	out := state.Clone().Normalize()
	out.Questions = append(out.Questions, added...)
	return out, added
}

func cleanTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := []string{}
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
