package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SurinSeong/seasonal-ai-backend/internal/citation"
	"github.com/SurinSeong/seasonal-ai-backend/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, mux *http.ServeMux, temperature *float64) *Client {
	t.Helper()

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	retries := 0
	return NewClient(Config{
		APIKey:      "test-key",
		BaseURL:     srv.URL,
		Temperature: temperature,
		MaxRetries:  &retries,
	}, metrics.NewMetrics())
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}

func TestComplete(t *testing.T) {
	var request map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat/completions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		writeJSON(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 0,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "hi there"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
		}`)
	})

	client := newTestClient(t, mux, nil)
	reply, err := client.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi there", reply)

	assert.Equal(t, "gpt-4o-mini", request["model"])
	assert.NotContains(t, request, "temperature")

	messages, ok := request["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, map[string]any{"role": "system", "content": "You are a helpful assistant."}, messages[0])
	assert.Equal(t, map[string]any{"role": "user", "content": "hello"}, messages[1])
}

func TestCompleteWithTemperature(t *testing.T) {
	var request map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat/completions", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		writeJSON(w, `{"choices": [{"index": 0, "message": {"role": "assistant", "content": "ok"}}]}`)
	})

	temperature := 0.2
	client := newTestClient(t, mux, &temperature)
	_, err := client.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, 0.2, request["temperature"])
}

func TestCompleteNoChoices(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat/completions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"choices": []}`)
	})

	client := newTestClient(t, mux, nil)
	_, err := client.Complete(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNoChoices)
}

func TestCompleteUpstreamError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat/completions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error": {"message": "bad key", "type": "invalid_request_error", "code": "invalid_api_key"}}`)
	})

	client := newTestClient(t, mux, nil)
	_, err := client.Complete(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ChatCompletion error")
}

func TestAssistantCalls(t *testing.T) {
	var threadRequest map[string]any
	var runRequest map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc("GET /assistants/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "assistants=v2", r.Header.Get("OpenAI-Beta"))
		writeJSON(w, `{"id": "`+r.PathValue("id")+`", "object": "assistant"}`)
	})
	mux.HandleFunc("POST /threads", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&threadRequest))
		writeJSON(w, `{"id": "thread_1", "object": "thread"}`)
	})
	mux.HandleFunc("POST /threads/{thread}/runs", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&runRequest))
		writeJSON(w, `{"id": "run_1", "thread_id": "`+r.PathValue("thread")+`", "status": "queued"}`)
	})
	mux.HandleFunc("GET /threads/{thread}/runs/{run}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(pollAfterHeader, "250")
		writeJSON(w, `{"id": "`+r.PathValue("run")+`", "thread_id": "thread_1", "status": "failed", "last_error": {"code": "server_error", "message": "boom"}}`)
	})
	mux.HandleFunc("GET /threads/{thread}/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "run_1", r.URL.Query().Get("run_id"))
		writeJSON(w, `{
			"object": "list",
			"has_more": false,
			"data": [{
				"id": "msg_1",
				"role": "assistant",
				"content": [
					{"type": "text", "text": {"value": "The sky is blue.", "annotations": [
						{"type": "file_citation", "text": "blue", "start_index": 11, "end_index": 15, "file_citation": {"file_id": "file_1"}},
						{"type": "file_path", "text": "sky", "start_index": 4, "end_index": 7, "file_path": {"file_id": "file_2"}}
					]}},
					{"type": "image_file", "image_file": {"file_id": "file_3"}}
				]
			}]
		}`)
	})
	mux.HandleFunc("GET /files/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"id": "`+r.PathValue("id")+`", "object": "file", "filename": "colors.pdf"}`)
	})

	client := newTestClient(t, mux, nil)
	ctx := context.Background()

	assistantID, err := client.RetrieveAssistant(ctx, "asst_1")
	require.NoError(t, err)
	assert.Equal(t, "asst_1", assistantID)

	threadID, err := client.NewThread(ctx, "why is the sky blue?")
	require.NoError(t, err)
	assert.Equal(t, "thread_1", threadID)
	assert.Equal(t, []any{map[string]any{"role": "user", "content": "why is the sky blue?"}}, threadRequest["messages"])

	run, err := client.StartRun(ctx, threadID, assistantID)
	require.NoError(t, err)
	assert.Equal(t, "asst_1", runRequest["assistant_id"])
	assert.Equal(t, Run{ID: "run_1", ThreadID: "thread_1", Status: "queued"}, run)
	assert.False(t, run.Terminal())

	run, err = client.GetRun(ctx, threadID, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "failed", run.Status)
	assert.Equal(t, "boom", run.LastError)
	assert.Equal(t, 250*time.Millisecond, run.PollAfter)
	assert.True(t, run.Terminal())
	assert.False(t, run.Succeeded())

	messages, err := client.ListMessages(ctx, threadID, "run_1")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, Message{
		ID:   "msg_1",
		Role: "assistant",
		Content: []ContentBlock{
			{
				Type: "text",
				Text: "The sky is blue.",
				Annotations: []citation.Annotation{
					{Text: "blue", FileID: "file_1"},
					{Text: "sky"},
				},
			},
			{Type: "image_file"},
		},
	}, messages[0])

	name, err := client.FileName(ctx, "file_1")
	require.NoError(t, err)
	assert.Equal(t, "colors.pdf", name)
}

func TestRetrieveAssistantNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /assistants/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error": {"message": "No assistant found", "type": "invalid_request_error"}}`)
	})

	client := newTestClient(t, mux, nil)
	_, err := client.RetrieveAssistant(context.Background(), "asst_missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "asst_missing")
}

func TestRunStatus(t *testing.T) {
	tests := []struct {
		status    string
		terminal  bool
		succeeded bool
	}{
		{"queued", false, false},
		{"in_progress", false, false},
		{"cancelling", false, false},
		{"requires_action", true, false},
		{"cancelled", true, false},
		{"failed", true, false},
		{"expired", true, false},
		{"incomplete", true, true},
		{"completed", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			run := Run{Status: tt.status}
			assert.Equal(t, tt.terminal, run.Terminal())
			assert.Equal(t, tt.succeeded, run.Succeeded())
		})
	}
}
