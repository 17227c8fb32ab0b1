package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phraser/location-server/internal/models"
	"github.com/phraser/location-server/internal/utils"
)

func TestAzureCompleteSendsPayload(t *testing.T) {
	var gotKey string
	var gotBody azureRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("api-key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"choices":[{"message":{"content":"[{\"phrase\":\"a\",\"translation\":\"b\",\"transliteration\":\"c\"}]"}}]}`))
	}))
	defer srv.Close()

	a := NewAzureOpenAI(srv.URL, "secret", time.Second)
	msgs := []models.ChatMessage{
		{Role: models.RoleSystem, Content: "sys"},
		{Role: models.RoleUser, Content: "Address: X, Name: Y, Category: Z"},
	}

	reply, err := a.Complete(context.Background(), msgs)
	require.NoError(t, err)
	assert.Contains(t, reply, "phrase")

	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, msgs, gotBody.Messages)
	assert.Equal(t, MaxTokens, gotBody.MaxTokens)
	assert.Equal(t, Temperature, gotBody.Temperature)
	assert.Equal(t, TopP, gotBody.TopP)
}

func TestAzureCompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	a := NewAzureOpenAI(srv.URL, "k", time.Second)
	_, err := a.Complete(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeMalformed))
}

func TestAzureCompleteHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := NewAzureOpenAI(srv.URL, "k", time.Second)
	_, err := a.Complete(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeUnavailable))
}

func TestAzureCompleteDeadlineExpiry(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	a := NewAzureOpenAI(srv.URL, "k", time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := a.Complete(ctx, []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeTimeout))
}

func TestAzureCompleteTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	a := NewAzureOpenAI(srv.URL, "k", time.Second)
	_, err := a.Complete(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}})
	require.Error(t, err)
}
