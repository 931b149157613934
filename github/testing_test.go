package github

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/urizennnn/reposcraper/ratelimit"
)

func newTestGate(t *testing.T, handler http.Handler, opts ...GateOption) (*Gate, *logtest.Hook) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := newClient(srv.Client(), srv.URL)
	require.NoError(t, err)

	limiter, err := ratelimit.New(ratelimit.Config{
		RequestsPerPeriod: 1000,
		Period:            time.Second,
		ConcurrencyLimit:  10,
	})
	require.NoError(t, err)

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	return NewGate(client, limiter, append([]GateOption{WithGateLogger(logger)}, opts...)...), hook
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
