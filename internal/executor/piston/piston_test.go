package piston_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/codecraft/internal/executor"
	"github.com/sakif/codecraft/internal/executor/piston"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *piston.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return piston.New(srv.URL, srv.Client(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestExecute(t *testing.T) {
	tests := []struct {
		name       string
		response   string
		wantStdout string
		wantStderr string
		wantExit   int
	}{
		{
			name:       "successful run",
			response:   `{"language":"javascript","version":"18.15.0","run":{"stdout":"hi\n","stderr":"","output":"hi\n","code":0,"signal":null}}`,
			wantStdout: "hi\n",
		},
		{
			name:       "runtime error",
			response:   `{"run":{"stdout":"","stderr":"ReferenceError: x is not defined","output":"ReferenceError: x is not defined","code":1}}`,
			wantStderr: "ReferenceError: x is not defined",
			wantExit:   1,
		},
		{
			name:       "compile error skips run",
			response:   `{"compile":{"stdout":"","stderr":"main.go:1: syntax error","output":"main.go:1: syntax error","code":2},"run":{"stdout":"","stderr":"","code":null}}`,
			wantStderr: "main.go:1: syntax error",
			wantExit:   2,
		},
		{
			name:       "killed by signal",
			response:   `{"run":{"stdout":"","stderr":"","output":"","code":null,"signal":"SIGKILL"}}`,
			wantExit:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]any
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/execute", r.URL.Path)
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				io.WriteString(w, tt.response)
			})

			res, err := c.Execute(context.Background(), executor.ExecutionRequest{
				Language: "javascript",
				Version:  "18.15.0",
				Code:     "console.log('hi')",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantStdout, res.Stdout)
			assert.Equal(t, tt.wantStderr, res.Stderr)
			assert.Equal(t, tt.wantExit, res.ExitCode)

			assert.Equal(t, "javascript", got["language"])
			assert.Equal(t, "18.15.0", got["version"])
			files := got["files"].([]any)
			require.Len(t, files, 1)
			assert.Equal(t, "console.log('hi')", files[0].(map[string]any)["content"])
		})
	}
}

func TestExecute_UnknownRuntime(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"bad request", http.StatusBadRequest},
		{"ok with message", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				io.WriteString(w, `{"message":"cobol-1.0.0 runtime is unknown"}`)
			})

			_, err := c.Execute(context.Background(), executor.ExecutionRequest{Language: "cobol", Version: "1.0.0", Code: "x"})
			assert.ErrorIs(t, err, executor.ErrUnsupportedLanguage)
		})
	}
}

func TestExecute_BadRequestOtherMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"message":"files is required"}`)
	})

	_, err := c.Execute(context.Background(), executor.ExecutionRequest{Language: "python", Code: ""})
	require.Error(t, err)
	assert.NotErrorIs(t, err, executor.ErrUnsupportedLanguage)
	assert.Contains(t, err.Error(), "400")
}

func TestExecute_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.Execute(context.Background(), executor.ExecutionRequest{Language: "python", Code: "print(1)"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestRuntimes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/runtimes", r.URL.Path)
		io.WriteString(w, `[
			{"language":"python","version":"3.10.0","aliases":["py","py3"]},
			{"language":"python","version":"3.12.0","aliases":["py"]},
			{"language":"javascript","version":"18.15.0","aliases":["node-javascript","js"],"runtime":"node"}
		]`)
	})

	runtimes, err := c.Runtimes(context.Background())
	require.NoError(t, err)
	require.Len(t, runtimes, 3)
	assert.Equal(t, "python", runtimes[0].Language)
	assert.Equal(t, []string{"py", "py3"}, runtimes[0].Aliases)
	assert.Equal(t, "node", runtimes[2].Runtime)
}
