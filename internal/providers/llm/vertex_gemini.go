package llm

import (
	"context"
	"strings"

	vertexgenai "cloud.google.com/go/vertexai/genai"

	"github.com/phraser/location-server/internal/models"
	"github.com/phraser/location-server/internal/utils"
)

// VertexGemini provides completions through Vertex AI Gemini.
type VertexGemini struct {
	client *vertexgenai.Client
	model  *vertexgenai.GenerativeModel
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName string) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	m := c.GenerativeModel(modelName)
	m.SetTemperature(Temperature)
	m.SetTopP(TopP)
	m.SetMaxOutputTokens(MaxTokens)

	return &VertexGemini{client: c, model: m}, nil
}

func (v *VertexGemini) Close() error { return v.client.Close() }

func (v *VertexGemini) Complete(ctx context.Context, messages []models.ChatMessage) (string, error) {
	const op = "VertexGemini.Complete"

	if len(messages) == 0 {
		return "", utils.E(utils.CodeInvalidArgument, op, "empty conversation", nil)
	}

	model := *v.model
	var history []*vertexgenai.Content
	var last string

	for i, msg := range messages {
		switch msg.Role {
		case models.RoleSystem:
			model.SystemInstruction = &vertexgenai.Content{
				Parts: []vertexgenai.Part{vertexgenai.Text(msg.Content)},
			}
		case models.RoleUser, models.RoleAssistant:
			if i == len(messages)-1 {
				last = msg.Content
				continue
			}
			role := "user"
			if msg.Role == models.RoleAssistant {
				role = "model"
			}
			history = append(history, &vertexgenai.Content{
				Role:  role,
				Parts: []vertexgenai.Part{vertexgenai.Text(msg.Content)},
			})
		}
	}
	if last == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "conversation must end with a user turn", nil)
	}

	chat := model.StartChat()
	chat.History = history

	resp, err := chat.SendMessage(ctx, vertexgenai.Text(last))
	if err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "completion request failed", err)
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(vertexgenai.Text); ok {
				sb.WriteString(string(t))
			}
		}
	}
	if sb.Len() == 0 {
		return "", utils.E(utils.CodeMalformed, op, "completion response has no text", nil)
	}
	return sb.String(), nil
}
