package docker_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/codecraft/internal/executor"
	"github.com/sakif/codecraft/internal/executor/docker"
)

// Needs a local Docker daemon; set DOCKER_TESTS=1 to run.
func TestDockerExecutor(t *testing.T) {
	if os.Getenv("DOCKER_TESTS") == "" {
		t.Skip("set DOCKER_TESTS=1 to run against a local Docker daemon")
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	cfg := docker.DefaultConfig()
	cfg.PoolSize = 1
	cfg.Timeout = 3 * time.Second
	cfg.Toolchains = map[string]docker.Toolchain{
		"javascript": cfg.Toolchains["javascript"],
		"python":     cfg.Toolchains["python"],
	}

	exec, err := docker.New(cfg, logger)
	require.NoError(t, err)
	defer exec.Close()

	assert.ElementsMatch(t, []string{"javascript", "python"}, exec.Languages())

	tests := []struct {
		name       string
		req        executor.ExecutionRequest
		wantExit   int
		wantStdout string
		wantStderr string
	}{
		{
			name:       "javascript hello",
			req:        executor.ExecutionRequest{Language: "javascript", Code: `console.log("hello from node")`},
			wantStdout: "hello from node",
		},
		{
			name:       "python hello",
			req:        executor.ExecutionRequest{Language: "python", Code: `print("hello from python")`},
			wantStdout: "hello from python",
		},
		{
			name:       "python syntax error",
			req:        executor.ExecutionRequest{Language: "python", Code: `print("Missing parenthesis"`},
			wantExit:   1,
			wantStderr: "SyntaxError",
		},
		{
			name:       "infinite loop times out",
			req:        executor.ExecutionRequest{Language: "javascript", Code: `while (true) {}`},
			wantExit:   executor.TimeoutExitCode,
			wantStderr: "timed out",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := exec.Execute(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantExit, res.ExitCode)
			assert.Contains(t, res.Stdout, tt.wantStdout)
			assert.Contains(t, res.Stderr, tt.wantStderr)
		})
	}

	t.Run("unsupported language", func(t *testing.T) {
		_, err := exec.Execute(context.Background(), executor.ExecutionRequest{Language: "cobol", Code: "x"})
		assert.ErrorIs(t, err, executor.ErrUnsupportedLanguage)
	})
}
