// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"ollama-web-chat/internal/domain"
	"ollama-web-chat/internal/domain/model"
	"ollama-web-chat/internal/domain/ports/adapter"
)

// memChatRepo is a small in-memory implementation used by unit tests.
type memChatRepo struct {
	mu        sync.Mutex
	store     map[string]*model.ChatSession
	saveCalls int
	saveErr   error // used by tests to simulate save failures
	appendErr error
}

func newMemChatRepo() *memChatRepo {
	return &memChatRepo{store: make(map[string]*model.ChatSession)}
}

func (m *memChatRepo) Save(ctx context.Context, s *model.ChatSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls++
	if m.saveErr != nil {
		return m.saveErr
	}
	cp := *s
	cp.Messages = append([]model.ChatMessage(nil), s.Messages...)
	if existing, ok := m.store[s.ID]; ok {
		// Save never touches messages.
		cp.Messages = existing.Messages
	}
	m.store[s.ID] = &cp
	return nil
}

func (m *memChatRepo) FindByID(ctx context.Context, id string) (*model.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	cp.Messages = append([]model.ChatMessage(nil), s.Messages...)
	return &cp, nil
}

func (m *memChatRepo) AppendMessage(ctx context.Context, msg *model.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	s, ok := m.store[msg.SessionID]
	if !ok {
		return domain.ErrNotFound
	}
	s.Messages = append(s.Messages, *msg)
	s.UpdatedAt = time.Now()
	return nil
}

func (m *memChatRepo) ListRecent(ctx context.Context, limit, skip int) ([]*model.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*model.ChatSession
	for _, s := range m.store {
		cp := *s
		cp.Messages = append([]model.ChatMessage(nil), s.Messages...)
		all = append(all, &cp)
	}
	// updated_at descending, matching the SQL ordering
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			if all[j].UpdatedAt.After(all[i].UpdatedAt) {
				all[i], all[j] = all[j], all[i]
			}
		}
	}
	if skip >= len(all) {
		return nil, nil
	}
	all = all[skip:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *memChatRepo) CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.store {
		if s.UpdatedAt.Before(cutoff) {
			n++
		}
	}
	return n, nil
}

func (m *memChatRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.store {
		if s.UpdatedAt.Before(cutoff) {
			delete(m.store, id)
			n++
		}
	}
	return n, nil
}

func (m *memChatRepo) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return false, nil
	}
	delete(m.store, id)
	return true, nil
}

func (m *memChatRepo) Ping(ctx context.Context) error { return nil }

// fakeAI is a configurable AIAdapter.
type fakeAI struct {
	mu          sync.Mutex
	models      []adapter.ModelInfo
	best        string
	reply       string
	completeErr error
	calls       int
	lastModel   string
	lastSystem  string
	lastHistory []adapter.Message
}

func (f *fakeAI) ListModels(ctx context.Context) []adapter.ModelInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.models
}

func (f *fakeAI) SelectBestModel(ctx context.Context, preferred string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.models) == 0 {
		return "", domain.ErrNoModelsAvailable
	}
	if f.best != "" {
		return f.best, nil
	}
	return f.models[0].Name, nil
}

func (f *fakeAI) Complete(ctx context.Context, history []adapter.Message, modelName, systemPrompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastModel = modelName
	f.lastSystem = systemPrompt
	f.lastHistory = append([]adapter.Message(nil), history...)
	if f.completeErr != nil {
		return "", f.completeErr
	}
	if f.reply == "" {
		return "ok", nil
	}
	return f.reply, nil
}

func (f *fakeAI) HealthCheck(ctx context.Context) string {
	return adapter.StatusConnected
}

// fakeLocker holds locks in a map; it mirrors the SETNX semantics.
type fakeLocker struct {
	mu     sync.Mutex
	held   map[string]string
	tryErr error
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]string)}
}

func (l *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tryErr != nil {
		return "", l.tryErr
	}
	if _, ok := l.held[key]; ok {
		return "", domain.ErrGenerationInProgress
	}
	token := key + "-token"
	l.held[key] = token
	return token, nil
}

func (l *fakeLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] != token {
		return errors.New("not lock owner")
	}
	delete(l.held, key)
	return nil
}

func (l *fakeLocker) locked(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}

// manualRunner queues submitted tasks so tests control exactly when the
// background completion runs relative to the next poll.
type manualRunner struct {
	mu        sync.Mutex
	tasks     []func(ctx context.Context) error
	submitErr error
}

func (r *manualRunner) Submit(task func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.submitErr != nil {
		return r.submitErr
	}
	r.tasks = append(r.tasks, task)
	return nil
}

func (r *manualRunner) runAll(ctx context.Context) {
	r.mu.Lock()
	tasks := r.tasks
	r.tasks = nil
	r.mu.Unlock()
	for _, task := range tasks {
		_ = task(ctx)
	}
}
