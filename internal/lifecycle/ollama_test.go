package lifecycle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tagsHandler(models ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		type m struct {
			Name string `json:"name"`
		}
		out := struct {
			Models []m `json:"models"`
		}{}
		for _, name := range models {
			out.Models = append(out.Models, m{Name: name})
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}

func TestIsRunning(t *testing.T) {
	srv := httptest.NewServer(tagsHandler())
	defer srv.Close()

	assert.True(t, NewOllama(srv.URL).IsRunning(context.Background()))
	assert.False(t, NewOllama("http://127.0.0.1:1").IsRunning(context.Background()))
}

func TestHasModel_MatchesBaseName(t *testing.T) {
	srv := httptest.NewServer(tagsHandler("all-minilm:latest", "llama3:8b"))
	defer srv.Close()

	o := NewOllama(srv.URL)

	has, err := o.HasModel(context.Background(), "all-minilm")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = o.HasModel(context.Background(), "all-minilm:latest")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = o.HasModel(context.Background(), "nomic-embed-text")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestPullModel_SkipsWhenPresent(t *testing.T) {
	pulled := false
	mux := http.NewServeMux()
	mux.Handle("/api/tags", tagsHandler("all-minilm:latest"))
	mux.HandleFunc("/api/pull", func(http.ResponseWriter, *http.Request) { pulled = true })
	srv := httptest.NewServer(mux)
	defer srv.Close()

	require.NoError(t, NewOllama(srv.URL).PullModel(context.Background(), "all-minilm", nil))
	assert.False(t, pulled)
}

func TestPullModel_StreamsProgress(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("/api/tags", tagsHandler())
	mux.HandleFunc("/api/pull", func(w http.ResponseWriter, _ *http.Request) {
		lines := []string{
			`{"status":"pulling","total":100,"completed":50}`,
			`{"status":"pulling","total":100,"completed":100}`,
			`{"status":"success"}`,
		}
		for _, line := range lines {
			_, _ = w.Write([]byte(line + "\n"))
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var updates []PullProgress
	err := NewOllama(srv.URL).PullModel(context.Background(), "all-minilm", func(p PullProgress) {
		updates = append(updates, p)
	})
	require.NoError(t, err)
	require.Len(t, updates, 3)
	assert.Equal(t, 50.0, updates[0].Percent)
	assert.Equal(t, 100.0, updates[1].Percent)
}

func TestEnsureModel_NotRunning(t *testing.T) {
	err := NewOllama("http://127.0.0.1:1").EnsureModel(context.Background(), "all-minilm", nil)
	var notRunning *NotRunningError
	assert.ErrorAs(t, err, &notRunning)
}

func TestWaitForReady_Timeout(t *testing.T) {
	o := NewOllama("http://127.0.0.1:1")
	err := o.WaitForReady(context.Background(), 300*time.Millisecond)
	assert.Error(t, err)
}

func TestWaitForReady_Succeeds(t *testing.T) {
	srv := httptest.NewServer(tagsHandler())
	defer srv.Close()

	assert.NoError(t, NewOllama(srv.URL).WaitForReady(context.Background(), time.Second))
}
