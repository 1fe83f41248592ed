package openai

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/SurinSeong/seasonal-ai-backend/internal/citation"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pkg/errors"
)

const (
	annotationFileCitation = "file_citation"
	contentText            = "text"
	pollAfterHeader        = "openai-poll-after-ms"
)

// Run is the subset of an assistant run the service acts on.
type Run struct {
	ID        string
	ThreadID  string
	Status    string
	LastError string
	// server hint for the next poll, zero when absent
	PollAfter time.Duration
}

// Terminal reports whether the run will not change status anymore.
func (r Run) Terminal() bool {
	switch openai.RunStatus(r.Status) {
	case openai.RunStatusQueued, openai.RunStatusInProgress, openai.RunStatusCancelling:
		return false
	default:
		return true
	}
}

// Succeeded reports whether the run left messages worth reading.
func (r Run) Succeeded() bool {
	switch openai.RunStatus(r.Status) {
	case openai.RunStatusCompleted, openai.RunStatusIncomplete:
		return true
	default:
		return false
	}
}

type ContentBlock struct {
	Type        string
	Text        string
	Annotations []citation.Annotation
}

type Message struct {
	ID      string
	Role    string
	Content []ContentBlock
}

// RetrieveAssistant resolves an assistant identifier and returns the ID the
// API knows it by.
func (c *Client) RetrieveAssistant(ctx context.Context, assistantID string) (string, error) {
	assistant, err := c.client.Beta.Assistants.Get(ctx, assistantID)
	c.observe("assistants.get", err)
	if err != nil {
		return "", errors.Wrapf(err, "failed to retrieve assistant %q", assistantID)
	}
	return assistant.ID, nil
}

// NewThread creates a thread seeded with a single user message.
func (c *Client) NewThread(ctx context.Context, userMessage string) (string, error) {
	thread, err := c.client.Beta.Threads.New(ctx, openai.BetaThreadNewParams{
		Messages: []openai.BetaThreadNewParamsMessage{
			{
				Role: string(openai.MessageRoleUser),
				Content: openai.BetaThreadNewParamsMessageContentUnion{
					OfString: openai.String(userMessage),
				},
			},
		},
	})
	c.observe("threads.new", err)
	if err != nil {
		return "", errors.Wrap(err, "failed to create thread")
	}
	return thread.ID, nil
}

func runOf(run *openai.Run, raw *http.Response) Run {
	r := Run{
		ID:        run.ID,
		ThreadID:  run.ThreadID,
		Status:    string(run.Status),
		LastError: run.LastError.Message,
	}
	if raw != nil {
		if ms, err := strconv.Atoi(raw.Header.Get(pollAfterHeader)); err == nil && ms > 0 {
			r.PollAfter = time.Duration(ms) * time.Millisecond
		}
	}
	return r
}

// StartRun starts the assistant against the thread without waiting for it.
func (c *Client) StartRun(ctx context.Context, threadID string, assistantID string) (Run, error) {
	var raw *http.Response
	run, err := c.client.Beta.Threads.Runs.New(ctx, threadID, openai.BetaThreadRunNewParams{
		AssistantID: assistantID,
	}, option.WithResponseInto(&raw))
	c.observe("runs.new", err)
	if err != nil {
		return Run{}, errors.Wrapf(err, "failed to start run on thread %s", threadID)
	}
	return runOf(run, raw), nil
}

// GetRun fetches the current status of a run.
func (c *Client) GetRun(ctx context.Context, threadID string, runID string) (Run, error) {
	var raw *http.Response
	run, err := c.client.Beta.Threads.Runs.Get(ctx, threadID, runID, option.WithResponseInto(&raw))
	c.observe("runs.get", err)
	if err != nil {
		return Run{}, errors.Wrapf(err, "failed to get run %s", runID)
	}
	if c.metrics != nil {
		c.metrics.IncrementRunPolls()
	}
	return runOf(run, raw), nil
}

func annotationsOf(annotations []openai.AnnotationUnion) []citation.Annotation {
	result := make([]citation.Annotation, 0, len(annotations))
	for _, annotation := range annotations {
		a := citation.Annotation{Text: annotation.Text}
		if annotation.Type == annotationFileCitation {
			a.FileID = annotation.FileCitation.FileID
		}
		result = append(result, a)
	}
	return result
}

func messageOf(message openai.Message) Message {
	content := make([]ContentBlock, 0, len(message.Content))
	for _, block := range message.Content {
		b := ContentBlock{Type: block.Type}
		if block.Type == contentText {
			b.Text = block.Text.Value
			b.Annotations = annotationsOf(block.Text.Annotations)
		}
		content = append(content, b)
	}

	return Message{
		ID:      message.ID,
		Role:    string(message.Role),
		Content: content,
	}
}

// ListMessages returns the messages a run produced on its thread, newest
// first.
func (c *Client) ListMessages(ctx context.Context, threadID string, runID string) ([]Message, error) {
	page, err := c.client.Beta.Threads.Messages.List(ctx, threadID, openai.BetaThreadMessageListParams{
		RunID: openai.String(runID),
	})
	c.observe("messages.list", err)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list messages of run %s", runID)
	}

	messages := make([]Message, 0, len(page.Data))
	for _, message := range page.Data {
		messages = append(messages, messageOf(message))
	}
	return messages, nil
}

// FileName returns the display name of an uploaded file.
func (c *Client) FileName(ctx context.Context, fileID string) (string, error) {
	file, err := c.client.Files.Get(ctx, fileID)
	c.observe("files.get", err)
	if err != nil {
		return "", errors.Wrapf(err, "failed to retrieve file %s", fileID)
	}
	return file.Filename, nil
}
