// Package generator asks an external text-generation service for new questions.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"classroom-rollcall-go/bank"
	"classroom-rollcall-go/models"
)

// MaxCount caps the number of questions requested at once.
const MaxCount = 20

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.5-flash"

// ErrNotConfigured is returned when no generator is available.
var ErrNotConfigured = errors.New("question generation is not configured")

// Generator produces question drafts about a topic.
type Generator interface {
	Generate(ctx context.Context, topic string, count int, difficulty models.Difficulty) ([]bank.Draft, error)
}

// Gemini generates questions with the Gemini API.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a Gemini generator. An empty apiKey yields ErrNotConfigured.
func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = draftsSchema

	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}

var draftsSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"content":    {Type: genai.TypeString, Description: "The question text"},
			"difficulty": {Type: genai.TypeString, Description: "Easy, Medium, or Hard"},
			"subject":    {Type: genai.TypeString, Description: "The subject area (e.g. History, Math)"},
			"tags": {
				Type:        genai.TypeArray,
				Items:       &genai.Schema{Type: genai.TypeString},
				Description: "Keywords related to the question",
			},
		},
		Required: []string{"content", "difficulty", "subject", "tags"},
	},
}

func (g *Gemini) Generate(ctx context.Context, topic string, count int, difficulty models.Difficulty) ([]bank.Draft, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(BuildPrompt(topic, count, difficulty)))
	if err != nil {
		return nil, fmt.Errorf("gemini API error: %w", err)
	}
	return DecodeDrafts(extractText(resp))
}

// ClampCount keeps count within 1..MaxCount.
func ClampCount(count int) int {
	if count < 1 {
		return 1
	}
	if count > MaxCount {
		return MaxCount
	}
	return count
}

// BuildPrompt renders the generation request.
func BuildPrompt(topic string, count int, difficulty models.Difficulty) string {
	if difficulty == "" {
		difficulty = models.Medium
	}
	return fmt.Sprintf("Generate %d %s level questions about %q for middle school students.",
		ClampCount(count), difficulty, strings.TrimSpace(topic))
}

// DecodeDrafts parses the model output, tolerating a markdown code fence.
func DecodeDrafts(text string) ([]bank.Draft, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	if text == "" {
		return []bank.Draft{}, nil
	}

	var drafts []bank.Draft
	if err := json.Unmarshal([]byte(text), &drafts); err != nil {
		return nil, fmt.Errorf("generator returned invalid JSON: %w", err)
	}
	return drafts, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		break
	}
	return b.String()
}
