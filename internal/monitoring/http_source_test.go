package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func feedBody(runIDs ...string) string {
	out := `{"runs": [`
	for i, id := range runIDs {
		if i > 0 {
			out += ","
		}
		out += sampleRun(id, fmt.Sprintf("2026-0%d-01T00:00:00Z", i+1))
	}
	return out + `]}`
}

func TestHTTPSource_Load(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedBody("run-b", "run-a"))
	}))
	defer ts.Close()

	runs, err := NewHTTPSource(ts.URL, time.Second, zap.NewNop()).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-b", runs[0].RunID, "сортировка по началу окна")
	assert.Equal(t, "run-a", runs[1].RunID)
}

func TestHTTPSource_RetriesTransientFailures(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, feedBody("run-ok"))
	}))
	defer ts.Close()

	runs, err := NewHTTPSource(ts.URL, time.Second, zap.NewNop()).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-ok", runs[0].RunID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestHTTPSource_PersistentFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	_, err := NewHTTPSource(ts.URL, time.Second, zap.NewNop()).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed unavailable")
}

func TestHTTPSource_SkipsInvalidRuns(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"runs": [%s, {"status": "completed"}]}`, sampleRun("run-ok", "2026-05-01T00:00:00Z"))
	}))
	defer ts.Close()

	runs, err := NewHTTPSource(ts.URL, time.Second, zap.NewNop()).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-ok", runs[0].RunID)
}
