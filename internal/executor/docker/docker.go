// Package docker runs code in local Docker containers.
//
// Each configured language gets its own pool of idle, network-less containers
// running "sleep infinity". A request takes one container from the pool, runs
// the interpreter inside it with docker exec, and removes it afterwards; the
// pool manager keeps refilling in the background.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/sakif/codecraft/internal/executor"
)

var _ executor.Executor = (*Executor)(nil)

// Executor implements executor.Executor using Docker containers.
type Executor struct {
	cli    *client.Client
	config Config
	logger *slog.Logger
	pools  map[string]*Pool
}

// New connects to the Docker daemon (DOCKER_HOST etc. from the environment),
// pulls every toolchain image and starts one pool per language.
func New(cfg Config, logger *slog.Logger) (*Executor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker: creating client: %w", err)
	}

	e := &Executor{
		cli:    cli,
		config: cfg,
		logger: logger,
		pools:  make(map[string]*Pool, len(cfg.Toolchains)),
	}

	for lang, tc := range cfg.Toolchains {
		if err := e.pull(tc.Image); err != nil {
			e.Close()
			return nil, err
		}
		pool := NewPool(cli, tc.Image, cfg, logger.With(slog.String("language", lang)))
		pool.Start()
		e.pools[lang] = pool
	}

	return e, nil
}

func (e *Executor) pull(ref string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	e.logger.Info("ensuring docker image is available", slog.String("image", ref))
	reader, err := e.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("docker: pulling %s: %w", ref, err)
	}
	defer reader.Close()
	// The pull only completes once the progress stream is drained.
	io.Copy(io.Discard, reader)
	return nil
}

// Languages lists the languages this executor can run.
func (e *Executor) Languages() []string {
	langs := make([]string, 0, len(e.pools))
	for lang := range e.pools {
		langs = append(langs, lang)
	}
	return langs
}

// Close stops every pool and closes the Docker client.
func (e *Executor) Close() error {
	for _, p := range e.pools {
		p.Stop()
	}
	return e.cli.Close()
}

// Execute runs req.Code with the language's interpreter in a pooled container.
func (e *Executor) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	pool, ok := e.pools[req.Language]
	if !ok {
		return nil, fmt.Errorf("%w: %s", executor.ErrUnsupportedLanguage, req.Language)
	}
	tc := e.config.Toolchains[req.Language]

	start := time.Now()

	containerID, err := pool.GetContainer(ctx)
	if err != nil {
		return nil, fmt.Errorf("docker: getting container from pool: %w", err)
	}

	// Containers are single-use.
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := e.cli.ContainerRemove(cleanupCtx, containerID, container.RemoveOptions{Force: true})
		if err != nil {
			e.logger.Error("failed to remove container",
				slog.String("id", containerID),
				slog.String("error", err.Error()),
			)
		}
	}()

	executeCtx, executeCancel := context.WithTimeout(ctx, e.config.Timeout)
	defer executeCancel()

	cmd := append(append([]string{}, tc.Command...), req.Code)
	execResp, err := e.cli.ContainerExecCreate(executeCtx, containerID, container.ExecOptions{
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          cmd,
	})
	if err != nil {
		return nil, fmt.Errorf("docker: creating exec: %w", err)
	}

	attachResp, err := e.cli.ContainerExecAttach(executeCtx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("docker: attaching to exec: %w", err)
	}
	defer attachResp.Close()

	var stdout, stderr bytes.Buffer
	done := make(chan struct{})
	go func() {
		// Docker multiplexes both streams over one connection.
		_, _ = stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader)
		close(done)
	}()

	exitCode := 0
	select {
	case <-done:
		inspect, err := e.cli.ContainerExecInspect(ctx, execResp.ID)
		if err == nil {
			exitCode = inspect.ExitCode
		}
	case <-executeCtx.Done():
		// Closing the hijacked connection ends StdCopy; wait for it so the
		// buffers are no longer being written.
		attachResp.Close()
		<-done
		exitCode = executor.TimeoutExitCode
		stderr.WriteString("\nExecution timed out.\n")
	}

	return &executor.ExecutionResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
		Duration: time.Since(start),
	}, nil
}
