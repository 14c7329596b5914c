// File: internal/usecase/chat_flow_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ollama-web-chat/internal/domain"
	"ollama-web-chat/internal/domain/model"
	"ollama-web-chat/internal/domain/ports/adapter"
	"ollama-web-chat/internal/infra/logging"
)

// Compile-time check
var _ ChatFlowUseCase = (*chatFlowUC)(nil)

// SessionLocker serializes background completion tasks per session. The redis
// implementation backs it in production; tests use an in-memory fake.
type SessionLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// TaskRunner runs a detached task after the triggering HTTP response has been
// handed off. The worker pool satisfies it.
type TaskRunner interface {
	Submit(task func(ctx context.Context) error) error
}

// ChatFlowUseCase drives the page-render/poll cycle that lets a no-JS client
// observe an in-flight completion. There is no stored "status" field: the
// processing state is derived on each request from the message count and the
// role of the last message, so nothing can get stuck across a restart.
type ChatFlowUseCase interface {
	// RenderChat renders the idle chat view for a session.
	RenderChat(ctx context.Context, sessionID string) (*ChatView, error)

	// PostMessage appends the user's message, kicks off the background
	// completion, and returns the processing view.
	PostMessage(ctx context.Context, sessionID, content string) (*ChatView, error)

	// CheckResponse is the polling endpoint: lastCount is the message count
	// the client last saw.
	CheckResponse(ctx context.Context, sessionID string, lastCount int) (*ChatView, error)
}

type chatFlowUC struct {
	sessions   SessionUseCase
	ai         adapter.AIAdapter
	locker     SessionLocker
	runner     TaskRunner
	maxHistory int
	lockTTL    time.Duration
	log        *zerolog.Logger
}

func NewChatFlowUseCase(
	sessions SessionUseCase,
	ai adapter.AIAdapter,
	locker SessionLocker,
	runner TaskRunner,
	maxHistory int,
	completionTimeout time.Duration,
	log *zerolog.Logger,
) *chatFlowUC {
	return &chatFlowUC{
		sessions:   sessions,
		ai:         ai,
		locker:     locker,
		runner:     runner,
		maxHistory: maxHistory,
		// The lock must outlive the slowest completion plus the appends around it.
		lockTTL: completionTimeout + 30*time.Second,
		log:     log,
	}
}

func generationLockKey(sessionID string) string { return "chat_generation:" + sessionID }

func (u *chatFlowUC) RenderChat(ctx context.Context, sessionID string) (*ChatView, error) {
	s, err := u.sessions.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return u.buildView(ctx, s), nil
}

func (u *chatFlowUC) PostMessage(ctx context.Context, sessionID, content string) (*ChatView, error) {
	defer logging.TraceDuration(u.log, "ChatFlowUC.PostMessage")()

	// At most one in-flight completion per session. A second POST while the
	// lock is held is rejected with an inline error; the no-JS client can
	// simply resubmit once the current reply lands.
	token, err := u.locker.TryLock(ctx, generationLockKey(sessionID), u.lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrGenerationInProgress) {
			return nil, err
		}
		// Lock infrastructure failure, not a held lock. Surfacing it as a
		// conflict would tell the user to retry against a broken backend.
		return nil, fmt.Errorf("acquire generation lock: %w", err)
	}

	s, err := u.sessions.AppendMessage(ctx, sessionID, model.RoleUser, content)
	if err != nil {
		if uerr := u.locker.Unlock(ctx, generationLockKey(sessionID), token); uerr != nil {
			u.log.Warn().Err(uerr).Str("session_id", sessionID).Msg("unlock after failed append")
		}
		return nil, err
	}

	countBefore := len(s.Messages)
	pending := s.Messages[countBefore-1].Content

	if err := u.runner.Submit(func(taskCtx context.Context) error {
		u.generateResponse(taskCtx, sessionID, token)
		return nil
	}); err != nil {
		// The user message is already persisted; without an assistant reply
		// the client would poll forever, so fail loudly into the conversation
		// right now.
		u.log.Error().Err(err).Str("session_id", sessionID).Msg("submit completion task")
		u.appendFailureReply(ctx, sessionID, domain.ErrAICallFailed)
		if uerr := u.locker.Unlock(ctx, generationLockKey(sessionID), token); uerr != nil {
			u.log.Warn().Err(uerr).Str("session_id", sessionID).Msg("unlock after failed submit")
		}
		return u.CheckResponse(ctx, sessionID, countBefore)
	}

	view := u.buildView(ctx, s)
	// The just-posted message renders as the pending bubble, so the list must
	// stop before it or the page shows the message twice.
	view.Messages = s.Messages[:countBefore-1]
	view.IsLoading = true
	view.PendingMessage = pending
	view.ExpectedCount = countBefore
	return view, nil
}

func (u *chatFlowUC) CheckResponse(ctx context.Context, sessionID string, lastCount int) (*ChatView, error) {
	s, err := u.sessions.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	view := u.buildView(ctx, s)
	current := len(s.Messages)
	last := s.LastMessage()

	// The in-flight state is derived from the last role alone: a trailing user
	// turn means a completion is pending, anything else means the session is
	// idle. The client-supplied count is advisory only and gets clamped to the
	// real count, so a stale bookmark can never keep the page refreshing on an
	// idle session.
	if last == nil || last.Role == model.RoleAssistant {
		view.ResponseComplete = true
		view.ExpectedCount = current
		return view, nil
	}

	view.IsLoading = true
	if lastCount < 0 {
		lastCount = 0
	}
	if lastCount > current {
		lastCount = current
	}
	// Carry the expected count forward as max(lastCount, current-1) so a
	// client that landed mid-flow without an explicit count converges instead
	// of looping on count=0 forever.
	expected := lastCount
	if current-1 > expected {
		expected = current - 1
	}
	view.ExpectedCount = expected
	return view, nil
}

// buildView assembles the presentation shape for any render path, performing
// model-fallback reconciliation along the way.
func (u *chatFlowUC) buildView(ctx context.Context, s *model.ChatSession) *ChatView {
	models, selected := u.reconcileModel(ctx, s)

	sessions, err := u.sessions.ListSessions(ctx, 0, 0)
	if err != nil {
		u.log.Warn().Err(err).Msg("list sessions for sidebar")
	}

	return &ChatView{
		SessionID:       s.ID,
		Messages:        s.Messages,
		Sessions:        sessions,
		AvailableModels: models,
		SelectedModel:   selected,
		SystemPrompt:    s.SystemPrompt,
		ExpectedCount:   len(s.Messages),
	}
}

// reconcileModel checks the session's persisted model against the live
// directory. When the model is gone, the adapter picks the closest installed
// substitute, which is persisted best-effort so the fallback doesn't repeat.
// An empty directory keeps the persisted choice (degraded but legitimate).
func (u *chatFlowUC) reconcileModel(ctx context.Context, s *model.ChatSession) ([]adapter.ModelInfo, string) {
	models := u.ai.ListModels(ctx)
	if len(models) == 0 {
		return models, s.SelectedModel
	}
	for _, m := range models {
		if m.Name == s.SelectedModel {
			return models, s.SelectedModel
		}
	}

	fallback, err := u.ai.SelectBestModel(ctx, s.SelectedModel)
	if err != nil {
		return models, s.SelectedModel
	}
	if _, err := u.sessions.UpdateSelectedModel(ctx, s.ID, fallback); err != nil {
		// The render must proceed regardless; the fallback is re-derived on
		// the next request.
		u.log.Warn().Err(err).
			Str("session_id", s.ID).
			Str("model", fallback).
			Msg("persist model fallback")
	}
	s.SelectedModel = fallback
	return models, fallback
}

// generateResponse is the detached background task. It re-fetches the session
// fresh (the pre-task snapshot does not include the message that triggered
// it), calls the runtime, and appends the reply. On any failure it appends a
// user-visible apology instead: a conversation with no new message ever
// arriving is indistinguishable from still-processing and would poll forever.
func (u *chatFlowUC) generateResponse(ctx context.Context, sessionID, lockToken string) {
	defer func() {
		if err := u.locker.Unlock(context.Background(), generationLockKey(sessionID), lockToken); err != nil {
			u.log.Warn().Err(err).Str("session_id", sessionID).Msg("release generation lock")
		}
	}()

	s, err := u.sessions.GetOrCreate(ctx, sessionID)
	if err != nil {
		u.log.Error().Err(err).Str("session_id", sessionID).Msg("fetch session for completion")
		u.appendFailureReply(ctx, sessionID, err)
		return
	}

	history := s.RecentMessages(u.maxHistory)
	msgs := make([]adapter.Message, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, adapter.Message{Role: m.Role, Content: m.Content})
	}

	start := time.Now()
	reply, err := u.ai.Complete(ctx, msgs, s.SelectedModel, s.SystemPrompt)
	if err != nil {
		u.log.Error().Err(err).
			Str("session_id", sessionID).
			Str("model", s.SelectedModel).
			Dur("elapsed", time.Since(start)).
			Msg("completion failed")
		u.appendFailureReply(ctx, sessionID, err)
		return
	}

	if _, err := u.sessions.AppendMessage(ctx, sessionID, model.RoleAssistant, reply); err != nil {
		u.log.Error().Err(err).Str("session_id", sessionID).Msg("append assistant reply")
		u.appendFailureReply(ctx, sessionID, err)
	}
}

// appendFailureReply turns a failure into a permanent assistant message. It
// retries once with a fresh context; failing to append at all is the worst
// outcome this component can produce.
func (u *chatFlowUC) appendFailureReply(ctx context.Context, sessionID string, cause error) {
	text := failureText(cause)
	if _, err := u.sessions.AppendMessage(ctx, sessionID, model.RoleAssistant, text); err == nil {
		return
	}
	if _, err := u.sessions.AppendMessage(context.Background(), sessionID, model.RoleAssistant, text); err != nil {
		u.log.Error().Err(err).Str("session_id", sessionID).
			Msg("could not append failure reply; session may poll until a new message is sent")
	}
}

// failureText maps a classified completion error to the apology copy stored
// in the conversation.
func failureText(err error) string {
	switch {
	case errors.Is(err, domain.ErrAIUnavailable):
		return "Sorry, I can't reach the AI runtime right now. Make sure Ollama is running and send your message again."
	case errors.Is(err, domain.ErrModelNotFound):
		return fmt.Sprintf("Sorry, I couldn't generate a response: %v. Pick another model and send your message again.", err)
	case errors.Is(err, domain.ErrRequestTimeout):
		return "Sorry, the response took too long and timed out. Please try again with a shorter message."
	case errors.Is(err, domain.ErrNoModelsAvailable):
		return "Sorry, no models are available. Pull a model first (for example: ollama pull llama3.2) and try again."
	default:
		return "Sorry, something went wrong while generating a response. Please try again."
	}
}
