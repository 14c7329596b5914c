// File: internal/usecase/session_uc_test.go
package usecase

import (
	"context"
	"testing"
	"time"

	"ollama-web-chat/internal/config"
	"ollama-web-chat/internal/domain"
	"ollama-web-chat/internal/domain/model"
)

func testChatConfig() config.ChatConfig {
	return config.ChatConfig{
		MaxMessageLength:      2000,
		MaxSystemPromptLength: 2000,
		SessionIDMinLength:    10,
		SessionIDMaxLength:    50,
		MaxHistoryMessages:    20,
		CleanupDays:           7,
	}
}

func TestSessionUC_GetOrCreateIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemChatRepo()
	uc := NewSessionUseCase(repo, testChatConfig(), "llama3.2")

	s1, err := uc.GetOrCreate(ctx, "session12345")
	if err != nil {
		t.Fatalf("first GetOrCreate: %v", err)
	}
	if s1.SelectedModel != "llama3.2" {
		t.Fatalf("expected default model, got %q", s1.SelectedModel)
	}

	s2, err := uc.GetOrCreate(ctx, "session12345")
	if err != nil {
		t.Fatalf("second GetOrCreate: %v", err)
	}
	if s2.ID != s1.ID || !s2.CreatedAt.Equal(s1.CreatedAt) {
		t.Fatalf("expected same session back, got %+v vs %+v", s2, s1)
	}
}

func TestSessionUC_GetOrCreateRejectsBadID(t *testing.T) {
	t.Parallel()

	uc := NewSessionUseCase(newMemChatRepo(), testChatConfig(), "llama3.2")
	if _, err := uc.GetOrCreate(context.Background(), "bad id!"); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSessionUC_ModelBackfillWritesOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemChatRepo()
	uc := NewSessionUseCase(repo, testChatConfig(), "llama3.2")

	// A session persisted before model selection existed.
	legacy := model.NewChatSession("legacysession1", "")
	legacy.UpdatedAt = time.Now().Add(-time.Hour)
	if err := repo.Save(ctx, legacy); err != nil {
		t.Fatalf("seed: %v", err)
	}
	savesBefore := repo.saveCalls

	s, err := uc.GetOrCreate(ctx, "legacysession1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if s.SelectedModel != "llama3.2" {
		t.Fatalf("expected backfilled model, got %q", s.SelectedModel)
	}
	if repo.saveCalls != savesBefore+1 {
		t.Fatalf("expected exactly one backfill save, got %d", repo.saveCalls-savesBefore)
	}
	if !s.UpdatedAt.Equal(legacy.UpdatedAt) {
		t.Fatal("backfill must not bump UpdatedAt")
	}

	// A second read must not write again.
	if _, err := uc.GetOrCreate(ctx, "legacysession1"); err != nil {
		t.Fatalf("re-read: %v", err)
	}
	if repo.saveCalls != savesBefore+1 {
		t.Fatalf("backfill wrote more than once: %d saves", repo.saveCalls-savesBefore)
	}
}

func TestSessionUC_AppendMessageTrimsAndStores(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemChatRepo()
	uc := NewSessionUseCase(repo, testChatConfig(), "llama3.2")

	s, err := uc.AppendMessage(ctx, "session12345", model.RoleUser, "  hello there  ")
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if len(s.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(s.Messages))
	}
	if s.Messages[0].Content != "hello there" {
		t.Fatalf("expected trimmed content, got %q", s.Messages[0].Content)
	}

	stored, err := repo.FindByID(ctx, "session12345")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if len(stored.Messages) != 1 || stored.Messages[0].Content != "hello there" {
		t.Fatalf("message not persisted: %+v", stored.Messages)
	}
}

func TestSessionUC_AppendMessageRejectsInvalid(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	uc := NewSessionUseCase(newMemChatRepo(), testChatConfig(), "llama3.2")

	if _, err := uc.AppendMessage(ctx, "session12345", model.RoleUser, "   "); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for empty message, got %v", err)
	}
	if _, err := uc.AppendMessage(ctx, "session12345", "system", "hi"); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for bad role, got %v", err)
	}
}

func TestSessionUC_UpdateSystemPrompt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemChatRepo()
	uc := NewSessionUseCase(repo, testChatConfig(), "llama3.2")

	s, err := uc.UpdateSystemPrompt(ctx, "session12345", "  be terse  ")
	if err != nil {
		t.Fatalf("UpdateSystemPrompt: %v", err)
	}
	if s.SystemPrompt != "be terse" {
		t.Fatalf("expected trimmed prompt, got %q", s.SystemPrompt)
	}

	// Clearing with an empty string is a valid update.
	s, err = uc.UpdateSystemPrompt(ctx, "session12345", "")
	if err != nil {
		t.Fatalf("clear prompt: %v", err)
	}
	if s.SystemPrompt != "" {
		t.Fatalf("expected cleared prompt, got %q", s.SystemPrompt)
	}
}

func TestSessionUC_ListSessionsOrderedByRecency(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemChatRepo()
	uc := NewSessionUseCase(repo, testChatConfig(), "llama3.2")

	old := model.NewChatSession("oldsession123", "llama3.2")
	old.AddMessage(model.RoleUser, "older conversation")
	old.UpdatedAt = time.Now().Add(-time.Hour)
	if err := repo.Save(ctx, old); err != nil {
		t.Fatalf("seed old: %v", err)
	}

	if _, err := uc.AppendMessage(ctx, "newsession123", model.RoleUser, "newer conversation"); err != nil {
		t.Fatalf("seed new: %v", err)
	}

	got, err := uc.ListSessions(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(got))
	}
	if got[0].SessionID != "newsession123" {
		t.Fatalf("expected most recent first, got %q", got[0].SessionID)
	}
	if got[1].Preview != "older conversation" {
		t.Fatalf("expected preview from first user message, got %q", got[1].Preview)
	}
}

func TestSessionUC_DeleteSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemChatRepo()
	uc := NewSessionUseCase(repo, testChatConfig(), "llama3.2")

	if _, err := uc.GetOrCreate(ctx, "session12345"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	deleted, err := uc.DeleteSession(ctx, "session12345")
	if err != nil || !deleted {
		t.Fatalf("expected delete to report true, got %v %v", deleted, err)
	}

	// Deleting again is not an error, just a no-op.
	deleted, err = uc.DeleteSession(ctx, "session12345")
	if err != nil {
		t.Fatalf("second delete errored: %v", err)
	}
	if deleted {
		t.Fatal("second delete should report false")
	}
}

func TestSessionUC_CleanupOldSessions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemChatRepo()
	uc := NewSessionUseCase(repo, testChatConfig(), "llama3.2")

	stale := model.NewChatSession("stalesession1", "llama3.2")
	stale.UpdatedAt = time.Now().AddDate(0, 0, -10)
	if err := repo.Save(ctx, stale); err != nil {
		t.Fatalf("seed stale: %v", err)
	}
	if _, err := uc.GetOrCreate(ctx, "freshsession1"); err != nil {
		t.Fatalf("seed fresh: %v", err)
	}

	n, err := uc.CleanupOldSessions(ctx, 7)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 deleted, got %d", n)
	}
	if _, err := repo.FindByID(ctx, "stalesession1"); err == nil {
		t.Fatal("stale session should be gone")
	}
	if _, err := repo.FindByID(ctx, "freshsession1"); err != nil {
		t.Fatalf("fresh session should survive: %v", err)
	}

	// Nothing qualifies now.
	n, err = uc.CleanupOldSessions(ctx, 7)
	if err != nil || n != 0 {
		t.Fatalf("expected 0 deleted on rerun, got %d %v", n, err)
	}
}
