package github

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateDecodesJSONBody(t *testing.T) {
	gate, hook := newTestGate(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/things", r.URL.Path)
		assert.Equal(t, "b", r.URL.Query().Get("a"))
		writeJSON(w, http.StatusOK, `{"value":42}`)
	}))

	var out struct {
		Value int `json:"value"`
	}
	resp, err := gate.Do(context.Background(), http.MethodGet, "things", url.Values{"a": {"b"}}, &out)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 42, out.Value)

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "github: received response", entries[1].Message)
	assert.Equal(t, http.StatusOK, entries[1].Data["status"])
}

func TestGateServerErrorIsRemoteRequestFailed(t *testing.T) {
	gate, _ := newTestGate(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{"message":"boom"}`)
	}))

	_, err := gate.Do(context.Background(), http.MethodGet, "repos/o/r/commits", nil, &[]any{})
	require.ErrorIs(t, err, ErrRemoteRequestFailed)

	var reqErr *RemoteRequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, "repos/o/r/commits", reqErr.Endpoint)
	assert.Equal(t, http.StatusInternalServerError, reqErr.StatusCode)
	assert.Equal(t, "failed to fetch data from repos/o/r/commits, status: 500", reqErr.Error())
}

// A bare 400 fails the call. Only statuses strictly above 400 used to fail,
// which let malformed-request responses through as empty data.
func TestGateStatus400IsFailure(t *testing.T) {
	gate, _ := newTestGate(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"message":"bad"}`)
	}))

	_, err := gate.Do(context.Background(), http.MethodGet, "search/repositories", nil, &struct{}{})
	var reqErr *RemoteRequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, http.StatusBadRequest, reqErr.StatusCode)
}

func TestGateStatusBelow400Succeeds(t *testing.T) {
	for _, status := range []int{http.StatusAccepted, http.StatusNotModified} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			gate, _ := newTestGate(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if status == http.StatusNotModified {
					w.WriteHeader(status)
					return
				}
				writeJSON(w, status, `{}`)
			}))

			var commits []map[string]any
			resp, err := gate.Do(context.Background(), http.MethodGet, "repos/o/r/commits", nil, &commits)
			require.NoError(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, status, resp.StatusCode)
			assert.Empty(t, commits)
		})
	}
}

func TestGateMalformedBodyIsError(t *testing.T) {
	gate, _ := newTestGate(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"broken":`)
	}))

	_, err := gate.Do(context.Background(), http.MethodGet, "search/repositories", nil, &struct{}{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRemoteRequestFailed)
}

func TestGateRequestTimeout(t *testing.T) {
	gate, _ := newTestGate(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}), WithRequestTimeout(20*time.Millisecond))

	_, err := gate.Do(context.Background(), http.MethodGet, "slow", nil, &struct{}{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrRemoteRequestFailed)
	assert.Equal(t, 0, gate.limiter.InFlight())
}

func TestGateCancelledContextSkipsCall(t *testing.T) {
	var called atomic.Bool
	gate, _ := newTestGate(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Store(true)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := gate.Do(ctx, http.MethodGet, "anything", nil, &struct{}{})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called.Load())
}
