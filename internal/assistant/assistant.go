package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/SurinSeong/seasonal-ai-backend/internal/citation"
	"github.com/SurinSeong/seasonal-ai-backend/internal/openai"
	"github.com/SurinSeong/seasonal-ai-backend/internal/util"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const DefaultPollInterval = time.Second

var (
	ErrRunNotCompleted = errors.New("run did not complete")
	ErrNoReply         = errors.New("run produced no text reply")
)

// Backend is the slice of the OpenAI Assistants API a single ask needs.
type Backend interface {
	citation.FileResolver

	RetrieveAssistant(ctx context.Context, assistantID string) (string, error)
	NewThread(ctx context.Context, userMessage string) (string, error)
	StartRun(ctx context.Context, threadID string, assistantID string) (openai.Run, error)
	GetRun(ctx context.Context, threadID string, runID string) (openai.Run, error)
	ListMessages(ctx context.Context, threadID string, runID string) ([]openai.Message, error)
}

type Assistant struct {
	backend      Backend
	assistantID  string
	pollInterval time.Duration
}

func New(backend Backend, assistantID string, pollInterval time.Duration) *Assistant {
	util.Assert(backend != nil, "assistant.New nil backend")

	if assistantID == "" {
		log.Warn("assistant ID not configured, /assistant requests will fail until it is set")
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	return &Assistant{
		backend:      backend,
		assistantID:  assistantID,
		pollInterval: pollInterval,
	}
}

// WaitRun polls a run until it reaches a terminal status. It imposes no
// deadline of its own and stops early only when ctx is done.
func (a *Assistant) WaitRun(ctx context.Context, run openai.Run) (openai.Run, error) {
	for !run.Terminal() {
		wait := run.PollAfter
		if wait <= 0 {
			wait = a.pollInterval
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return run, errors.Wrapf(ctx.Err(), "stopped polling run %s", run.ID)
		case <-timer.C:
		}

		next, err := a.backend.GetRun(ctx, run.ThreadID, run.ID)
		if err != nil {
			return run, err
		}
		log.WithFields(log.Fields{"thread_id": next.ThreadID, "run_id": next.ID, "status": next.Status}).Debug("polled run")
		run = next
	}

	return run, nil
}

func firstText(messages []openai.Message) (openai.ContentBlock, error) {
	if len(messages) == 0 || len(messages[0].Content) == 0 {
		return openai.ContentBlock{}, ErrNoReply
	}
	block := messages[0].Content[0]
	if block.Type != "text" {
		return openai.ContentBlock{}, errors.Wrapf(ErrNoReply, "first content block is %s", block.Type)
	}
	return block, nil
}

// Ask runs the configured assistant on a fresh thread seeded with the user
// message and returns its reply with citations rewritten.
func (a *Assistant) Ask(ctx context.Context, userMessage string) (string, error) {
	assistantID, err := a.backend.RetrieveAssistant(ctx, a.assistantID)
	if err != nil {
		return "", err
	}

	threadID, err := a.backend.NewThread(ctx, userMessage)
	if err != nil {
		return "", err
	}

	run, err := a.backend.StartRun(ctx, threadID, assistantID)
	if err != nil {
		return "", err
	}
	if run.ThreadID == "" {
		run.ThreadID = threadID
	}

	run, err = a.WaitRun(ctx, run)
	if err != nil {
		return "", err
	}

	logger := log.WithFields(log.Fields{"thread_id": threadID, "run_id": run.ID, "status": run.Status})
	if !run.Succeeded() {
		logger.WithField("last_error", run.LastError).Warn("run ended without completing")
		return "", errors.Wrap(ErrRunNotCompleted, fmt.Sprintf("status %s: %s", run.Status, run.LastError))
	}
	logger.Debug("run finished")

	messages, err := a.backend.ListMessages(ctx, threadID, run.ID)
	if err != nil {
		return "", err
	}

	block, err := firstText(messages)
	if err != nil {
		return "", err
	}

	return citation.Rewrite(ctx, block.Text, block.Annotations, a.backend)
}
