// Package bank holds the question bank mutators and importers.
package bank

import (
	"errors"
	"regexp"
	"strings"

	"classroom-rollcall-go/models"
)

var ErrEmptyContent = errors.New("question content cannot be empty")

// ImportTemplateName is the suggested file name of ImportTemplate.
const ImportTemplateName = "题库导入模板.txt"

// ImportTemplate documents the bulk import format with literal example rows.
const ImportTemplate = "这是一道简单题,简单,数学\n" +
	"这是一道中等题,中等,历史\n" +
	"这是一道困难题,困难,物理\n" +
	"或者您可以直接每行输入一个问题内容，无需后续字段"

var (
	lineBreak = regexp.MustCompile(`\r?\n`)
	fieldSep  = regexp.MustCompile(`[,，]`)
)

// ParseDifficulty maps an import token to a difficulty. Unknown and empty
// tokens are Medium.
func ParseDifficulty(token string) models.Difficulty {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "easy", "简单":
		return models.Easy
	case "hard", "困难":
		return models.Hard
	default:
		return models.Medium
	}
}

func newQuestion(content string, difficulty models.Difficulty, subject string) models.Question {
	if difficulty == "" {
		difficulty = models.Medium
	}
	return models.Question{
		ID:         models.NewID(),
		Content:    content,
		Difficulty: difficulty,
		Subject:    strings.TrimSpace(subject),
		Tags:       []string{},
	}
}

// AddQuestion appends a question. An empty difficulty means Medium.
func AddQuestion(state models.AppState, content string, difficulty models.Difficulty, subject string) (models.AppState, models.Question, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return state, models.Question{}, ErrEmptyContent
	}
	switch difficulty {
	case "", models.Easy, models.Medium, models.Hard:
	default:
		difficulty = ParseDifficulty(string(difficulty))
	}

	q := newQuestion(content, difficulty, subject)
	out := state.Clone().Normalize()
	out.Questions = append(out.Questions, q)
	return out, q, nil
}

// DeleteQuestion removes a question. History entries keep referring to its ID.
func DeleteQuestion(state models.AppState, questionID string) models.AppState {
	out := state.Clone().Normalize()
	questions := make([]models.Question, 0, len(out.Questions))
	for _, q := range out.Questions {
		if q.ID != questionID {
			questions = append(questions, q)
		}
	}
	out.Questions = questions
	return out
}

// ParseQuestions turns every non-empty line of raw into one question. Lines
// are "content[,difficulty[,subject]]" with ASCII or full-width commas.
func ParseQuestions(raw string) []models.Question {
	questions := []models.Question{}
	for _, line := range lineBreak.Split(raw, -1) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := fieldSep.Split(line, -1)

		var token, subject string
		if len(parts) > 1 {
			token = parts[1]
		}
		if len(parts) > 2 {
			subject = parts[2]
		}
		questions = append(questions, newQuestion(strings.TrimSpace(parts[0]), ParseDifficulty(token), subject))
	}
	return questions
}

// BulkImportQuestions appends the parsed questions and returns them.
func BulkImportQuestions(state models.AppState, raw string) (models.AppState, []models.Question) {
	imported := ParseQuestions(raw)
	out := state.Clone().Normalize()
	out.Questions = append(out.Questions, imported...)
	return out, imported
}
