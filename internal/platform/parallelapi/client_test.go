package parallelapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bulkrun/bulkrun/internal/batch"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Config{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		MaxRetries: 2,
	}, testLogger())
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{}, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key")
}

func TestClient_CreateGroup(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/tasks/groups", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, betaHeader, r.Header.Get("parallel-beta"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		_, _ = w.Write([]byte(`{"taskgroup_id":"tgrp_abc"}`))
	}))

	id, err := client.CreateGroup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tgrp_abc", id)
}

func TestClient_AddRunsPreservesOrder(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/tasks/groups/tgrp_abc/runs", r.URL.Path)

		var body struct {
			Inputs []batch.RunInput `json:"inputs"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Inputs, 2)
		assert.Equal(t, "A", body.Inputs[0].Input["part"])
		assert.Equal(t, "B", body.Inputs[1].Input["part"])

		_, _ = w.Write([]byte(`{"run_ids":["r1","r2"]}`))
	}))

	ids, err := client.AddRuns(context.Background(), "tgrp_abc", []batch.RunInput{
		{Input: map[string]any{"part": "A"}, Processor: "core"},
		{Input: map[string]any{"part": "B"}, Processor: "core"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, ids)
}

func TestClient_GroupStatus(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1beta/tasks/groups/tgrp_abc", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":{"is_active":true}}`))
	}))

	status, err := client.GroupStatus(context.Background(), "tgrp_abc")
	require.NoError(t, err)
	assert.True(t, status.IsActive)
}

func TestClient_RunResult(t *testing.T) {
	t.Parallel()

	t.Run("json output", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/tasks/runs/r1/result", r.URL.Path)
			_, _ = w.Write([]byte(`{"output":{"type":"json","content":{"match_1":"x"}}}`))
		}))

		out, err := client.RunResult(context.Background(), "r1")
		require.NoError(t, err)
		assert.True(t, out.IsJSON())
		assert.Equal(t, "x", out.Content["match_1"])
	})

	t.Run("failed run surfaces as error", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"run failed"}`))
		}))

		_, err := client.RunResult(context.Background(), "r1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 404")
	})
}

func TestClient_RetriesTransientResponses(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"taskgroup_id":"tgrp_abc"}`))
	}))

	id, err := client.CreateGroup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tgrp_abc", id)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"bad input"}`))
	}))

	_, err := client.CreateGroup(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "4xx responses are permanent failures")
}
