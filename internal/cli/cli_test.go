package cli

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/placefinder/internal/config"
	"github.com/roach88/placefinder/internal/intent"
	"github.com/roach88/placefinder/internal/journal"
	"github.com/roach88/placefinder/internal/state"
)

const parisBody = `{"results":[{"formatted_address":"Paris, France","geometry":{"location":{"lat":48.8566,"lng":2.3522}}}],"error_message":"","status":"OK"}`

// placesServer answers every query with body and status.
func placesServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// placesServerFunc serves with h.
func placesServerFunc(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

// writeConfig writes a config file pointing at srv and clears the
// environment overrides.
func writeConfig(t *testing.T, srv *httptest.Server, apiKey string, debounceMS int) string {
	t.Helper()
	t.Setenv(config.EnvAPIKey, "")
	t.Setenv(config.EnvBaseURL, "")

	path := filepath.Join(t.TempDir(), "placefinder.yaml")
	data := fmt.Sprintf("base_url: %q\napi_key: %q\ndebounce_ms: %d\n",
		srv.URL+"/search?query=", apiKey, debounceMS)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

// seedJournal creates a journal file with one session holding intents.
func seedJournal(t *testing.T, session string, intents ...intent.Intent) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := journal.Open(path)
	require.NoError(t, err)
	defer j.Close()

	ctx := context.Background()
	rec, err := j.Recorder(ctx, session)
	require.NoError(t, err)
	for _, in := range intents {
		require.NoError(t, rec.Record(ctx, in))
	}
	return path
}

// snapshotJournal saves s as the snapshot of session in the journal at path,
// covering records up to seq.
func snapshotJournal(t *testing.T, path, session string, seq int64, s state.SearchState) {
	t.Helper()
	j, err := journal.Open(path)
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.SaveSnapshot(context.Background(), session, seq, s, time.Now()))
}

// syncBuffer is a bytes.Buffer safe for a writer goroutine and a polling
// reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
