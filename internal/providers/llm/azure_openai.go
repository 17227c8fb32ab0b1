package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/phraser/location-server/internal/models"
	"github.com/phraser/location-server/internal/utils"
)

// AzureOpenAI talks to an Azure OpenAI chat-completions deployment.
type AzureOpenAI struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewAzureOpenAI(endpoint, apiKey string, timeout time.Duration) *AzureOpenAI {
	return &AzureOpenAI{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

type azureRequest struct {
	Messages    []models.ChatMessage `json:"messages"`
	MaxTokens   int                  `json:"max_tokens"`
	Temperature float64              `json:"temperature"`
	TopP        float64              `json:"top_p"`
}

type azureResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (a *AzureOpenAI) Complete(ctx context.Context, messages []models.ChatMessage) (string, error) {
	const op = "AzureOpenAI.Complete"

	body, err := json.Marshal(azureRequest{
		Messages:    messages,
		MaxTokens:   MaxTokens,
		Temperature: Temperature,
		TopP:        TopP,
	})
	if err != nil {
		return "", utils.E(utils.CodeInternal, op, "marshal request", err)
	}

	var out azureResponse
	if err := a.postJSON(ctx, body, &out); err != nil {
		return "", utils.E(utils.UpstreamCode(err), op, "completion request failed", err)
	}

	if len(out.Choices) == 0 {
		return "", utils.E(utils.CodeMalformed, op, "completion response has no choices", nil)
	}
	return out.Choices[0].Message.Content, nil
}

func (a *AzureOpenAI) Close() error { return nil }

// postJSON sends the payload with one retry on transport errors.
func (a *AzureOpenAI) postJSON(ctx context.Context, body []byte, dst any) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("api-key", a.apiKey)

		resp, err := a.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		err = json.NewDecoder(resp.Body).Decode(dst)
		resp.Body.Close()
		return err
	}
	return lastErr
}
