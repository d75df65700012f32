package batch

import (
	"context"
	"fmt"
	"sync"
)

// MockGroupClient is a configurable GroupClient for tests. Unset Fn
// fields fall back to a deterministic in-memory implementation that
// hands out sequential group and run ids and reports every group as
// finished with empty JSON outputs.
type MockGroupClient struct {
	CreateGroupFn func(ctx context.Context) (string, error)
	AddRunsFn     func(ctx context.Context, groupID string, inputs []RunInput) ([]string, error)
	GroupStatusFn func(ctx context.Context, groupID string) (GroupStatus, error)
	RunResultFn   func(ctx context.Context, runID string) (*RunOutput, error)

	mu sync.Mutex
	// CreateGroupCalls counts CreateGroup invocations, including ones
	// served by CreateGroupFn.
	CreateGroupCalls int
	// StatusCalls records the group ids queried, in order.
	StatusCalls []string

	groups int
	runs   int
}

// NewMockGroupClient returns a mock with default behavior.
func NewMockGroupClient() *MockGroupClient {
	return &MockGroupClient{}
}

// CreateGroup implements GroupClient.
func (m *MockGroupClient) CreateGroup(ctx context.Context) (string, error) {
	m.mu.Lock()
	m.CreateGroupCalls++
	m.mu.Unlock()
	if m.CreateGroupFn != nil {
		return m.CreateGroupFn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups++
	return fmt.Sprintf("tgrp_%03d", m.groups), nil
}

// AddRuns implements GroupClient.
func (m *MockGroupClient) AddRuns(ctx context.Context, groupID string, inputs []RunInput) ([]string, error) {
	if m.AddRunsFn != nil {
		return m.AddRunsFn(ctx, groupID, inputs)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, len(inputs))
	for i := range inputs {
		m.runs++
		ids[i] = fmt.Sprintf("run_%03d", m.runs)
	}
	return ids, nil
}

// GroupStatus implements GroupClient.
func (m *MockGroupClient) GroupStatus(ctx context.Context, groupID string) (GroupStatus, error) {
	m.mu.Lock()
	m.StatusCalls = append(m.StatusCalls, groupID)
	m.mu.Unlock()
	if m.GroupStatusFn != nil {
		return m.GroupStatusFn(ctx, groupID)
	}
	return GroupStatus{IsActive: false}, nil
}

// RunResult implements GroupClient.
func (m *MockGroupClient) RunResult(ctx context.Context, runID string) (*RunOutput, error) {
	if m.RunResultFn != nil {
		return m.RunResultFn(ctx, runID)
	}
	return &RunOutput{Type: "json", Content: map[string]any{}}, nil
}
