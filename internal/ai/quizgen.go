package ai

import (
	"context"
	"strings"

	"github.com/khrees2412/jobportal/internal/apiclient"
	"github.com/khrees2412/jobportal/internal/apperr"
	"github.com/khrees2412/jobportal/pkg/models"
)

const GenerateQuizPath = "/api/generate-quiz"

var quizSchema = apiclient.MustCompileSchema("generate-quiz", map[string]any{
	"type":     "object",
	"required": []string{"success"},
	"properties": map[string]any{
		"success":         map[string]any{"type": "boolean"},
		"message":         map[string]any{"type": "string"},
		"topic":           map[string]any{"type": "string"},
		"total_questions": map[string]any{"type": "integer"},
	},
	"if": map[string]any{
		"properties": map[string]any{"success": map[string]any{"const": true}},
	},
	"then": map[string]any{
		"required": []string{"questions"},
		"properties": map[string]any{
			"questions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"id", "type", "question"},
					"properties": map[string]any{
						"id":          map[string]any{"type": "integer"},
						"type":        map[string]any{"enum": []string{"mcq", "code"}},
						"question":    map[string]any{"type": "string"},
						"options":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"placeholder": map[string]any{"type": "string"},
						"correct":     map[string]any{"type": "integer", "minimum": 0},
					},
					"if": map[string]any{
						"properties": map[string]any{"type": map[string]any{"const": "mcq"}},
					},
					"then": map[string]any{"required": []string{"options"}},
				},
			},
		},
	},
})

// QuestionSet is a generated quiz.
type QuestionSet struct {
	Topic     string
	Message   string
	Questions []models.Question
}

type generateQuizRequest struct {
	Topic string `json:"topic"`
}

type generateQuizResponse struct {
	Success        bool              `json:"success"`
	Message        string            `json:"message"`
	Topic          string            `json:"topic"`
	TotalQuestions int               `json:"total_questions"`
	Questions      []models.Question `json:"questions"`
}

// QuizGenerator requests topic-based question sets.
type QuizGenerator struct {
	api *apiclient.Client
}

func NewQuizGenerator(api *apiclient.Client) *QuizGenerator {
	return &QuizGenerator{api: api}
}

// Generate asks for a question set on topic.
func (g *QuizGenerator) Generate(ctx context.Context, topic string) (*QuestionSet, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, apperr.NewValidation("topic", "Quiz topic is required")
	}

	var resp generateQuizResponse
	if err := g.api.PostJSON(ctx, GenerateQuizPath, generateQuizRequest{Topic: topic}, quizSchema, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "Failed to generate quiz"
		}
		return nil, apperr.NewService("quiz-generator", 200, msg, nil)
	}
	if len(resp.Questions) == 0 {
		return nil, apperr.NewService("quiz-generator", 200, "Quiz has no questions", nil)
	}

	set := &QuestionSet{Topic: resp.Topic, Message: resp.Message, Questions: resp.Questions}
	if set.Topic == "" {
		set.Topic = topic
	}
	return set, nil
}
