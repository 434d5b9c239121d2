// Package piston runs code through a Piston API instance
// (https://github.com/engineer-man/piston).
package piston

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sakif/codecraft/internal/executor"
)

// DefaultBaseURL is the public Piston instance.
const DefaultBaseURL = "https://emkc.org/api/v2/piston"

var _ executor.Executor = (*Client)(nil)

type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// New returns a client for the Piston API at baseURL. A nil httpClient gets a
// client with a 30 second timeout.
func New(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
		logger:  logger.With(slog.String("component", "piston")),
	}
}

type file struct {
	Content string `json:"content"`
}

type executeRequest struct {
	Language string `json:"language"`
	Version  string `json:"version"`
	Files    []file `json:"files"`
}

type stage struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Output string `json:"output"`
	Code   *int   `json:"code"`
	Signal string `json:"signal"`
}

type executeResponse struct {
	Run     stage  `json:"run"`
	Compile *stage `json:"compile"`
	Message string `json:"message"`
}

// Runtime is one entry of GET /runtimes.
type Runtime struct {
	Language string   `json:"language"`
	Version  string   `json:"version"`
	Aliases  []string `json:"aliases"`
	Runtime  string   `json:"runtime,omitempty"`
}

// Execute posts the code as a single file. A failed compile is reported as the
// result's stderr with the compiler's exit code; the program is not run.
func (c *Client) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	start := time.Now()

	body := executeRequest{
		Language: req.Language,
		Version:  req.Version,
		Files:    []file{{Content: req.Code}},
	}
	var resp executeResponse
	if err := c.do(ctx, http.MethodPost, "/execute", body, &resp); err != nil {
		return nil, err
	}
	if resp.Message != "" {
		if err := unknownRuntime(resp.Message); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("piston: %s", resp.Message)
	}

	if resp.Compile != nil && exitCode(*resp.Compile) != 0 {
		return &executor.ExecutionResult{
			Stdout:   resp.Compile.Stdout,
			Stderr:   firstNonEmpty(resp.Compile.Stderr, resp.Compile.Output),
			ExitCode: exitCode(*resp.Compile),
			Duration: time.Since(start),
		}, nil
	}

	code := exitCode(resp.Run)
	stderr := resp.Run.Stderr
	if code != 0 && stderr == "" {
		stderr = resp.Run.Output
	}
	return &executor.ExecutionResult{
		Stdout:   resp.Run.Stdout,
		Stderr:   stderr,
		ExitCode: code,
		Duration: time.Since(start),
	}, nil
}

// Runtimes lists every language version the Piston instance has installed.
func (c *Client) Runtimes(ctx context.Context) ([]Runtime, error) {
	var runtimes []Runtime
	if err := c.do(ctx, http.MethodGet, "/runtimes", nil, &runtimes); err != nil {
		return nil, err
	}
	return runtimes, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("piston: marshaling request body: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("piston: creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("piston: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusBadRequest {
			var body struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(msg, &body) == nil {
				if err := unknownRuntime(body.Message); err != nil {
					return err
				}
			}
		}
		c.logger.Error("piston returned error",
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(msg)),
		)
		return fmt.Errorf("piston: %s %s returned status %d", method, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("piston: decoding %s response: %w", path, err)
	}
	return nil
}

// unknownRuntime maps Piston's "runtime is unknown" message, sent with 400 by
// current versions and 200 by older ones, to ErrUnsupportedLanguage.
func unknownRuntime(message string) error {
	if strings.Contains(strings.ToLower(message), "unknown") {
		return fmt.Errorf("%w: %s", executor.ErrUnsupportedLanguage, message)
	}
	return nil
}

// exitCode treats a run killed by a signal (code null) as a failure.
func exitCode(s stage) int {
	if s.Code != nil {
		return *s.Code
	}
	if s.Signal != "" {
		return 1
	}
	return 0
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
