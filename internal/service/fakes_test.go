package service_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/domain"
)

// --- Mocks ---

type mockProfileStore struct {
	mu       sync.Mutex
	profiles map[string]*domain.CustomerProfile
	getErr   error
	saveErr  error
	gets     int
	saves    int
}

func newMockProfileStore() *mockProfileStore {
	return &mockProfileStore{profiles: map[string]*domain.CustomerProfile{}}
}

func (m *mockProfileStore) GetProfile(_ context.Context, phone string) (*domain.CustomerProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.profiles[phone]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: phone}
	}
	cp := *p
	cp.Tags = p.Tags.Clone()
	return &cp, nil
}

func (m *mockProfileStore) SaveProfile(_ context.Context, p *domain.CustomerProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	cp := *p
	cp.Tags = p.Tags.Clone()
	m.profiles[p.Phone] = &cp
	return nil
}

type mockRuleStore struct {
	mu     sync.Mutex
	values map[string]string
	getErr error
	gets   int
}

func newMockRuleStore() *mockRuleStore {
	return &mockRuleStore{values: map[string]string{}}
}

func (m *mockRuleStore) GetRuleOverride(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *mockRuleStore) UpsertRuleOverride(_ context.Context, key, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = text
	return nil
}

func (m *mockRuleStore) DeleteRuleOverride(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

type mockFile struct {
	text    string
	modTime time.Time
}

// mockRuleSource is an in-memory RuleSource that counts reads.
type mockRuleSource struct {
	mu      sync.Mutex
	files   map[string]mockFile
	statErr error
	reads   int
}

func newMockRuleSource() *mockRuleSource {
	return &mockRuleSource{files: map[string]mockFile{}}
}

func (m *mockRuleSource) put(name, text string, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = mockFile{text: text, modTime: modTime}
}

func (m *mockRuleSource) ModTime(name string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statErr != nil {
		return time.Time{}, m.statErr
	}
	f, ok := m.files[name]
	if !ok {
		return time.Time{}, errors.New("no such file: " + name)
	}
	return f.modTime, nil
}

func (m *mockRuleSource) Read(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	f, ok := m.files[name]
	if !ok {
		return "", errors.New("no such file: " + name)
	}
	return f.text, nil
}

type mockLookup struct {
	result *domain.DistanceResult
	err    error
	calls  int
}

func (m *mockLookup) Lookup(_ context.Context, _ string) (*domain.DistanceResult, error) {
	m.calls++
	return m.result, m.err
}

type mockComposer struct {
	answer string
	err    error
	last   *domain.TurnContext
}

func (m *mockComposer) Compose(_ context.Context, turn *domain.TurnContext) (string, error) {
	m.last = turn
	return m.answer, m.err
}
