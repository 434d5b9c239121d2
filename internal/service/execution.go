package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/sakif/codecraft/internal/apperror"
	"github.com/sakif/codecraft/internal/executor"
	"github.com/sakif/codecraft/internal/model"
	"github.com/sakif/codecraft/internal/repository"
	"github.com/sakif/codecraft/internal/runtime"
)

// FreeLanguage is the only language anonymous and free users may run.
const FreeLanguage = "javascript"

// LanguageLookup resolves an editor language id to its runtime.
type LanguageLookup interface {
	Get(id string) (runtime.Language, bool)
}

// RunResult is what the editor's output panel shows.
type RunResult struct {
	Language string        `json:"language"`
	Version  string        `json:"version"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
}

type ExecutionService struct {
	executor   executor.Executor
	languages  LanguageLookup
	executions repository.ExecutionRepository
	users      repository.UserRepository
	snippets   repository.SnippetRepository
	marks      repository.SnippetMarkRepository
	logger     *slog.Logger
	now        func() time.Time
}

// NewExecutionService creates an ExecutionService running code on exec.
func NewExecutionService(
	exec executor.Executor,
	languages LanguageLookup,
	executions repository.ExecutionRepository,
	users repository.UserRepository,
	snippets repository.SnippetRepository,
	marks repository.SnippetMarkRepository,
	logger *slog.Logger,
) *ExecutionService {
	return &ExecutionService{
		executor:   exec,
		languages:  languages,
		executions: executions,
		users:      users,
		snippets:   snippets,
		marks:      marks,
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes code on the language's current runtime. Anything other than
// FreeLanguage needs a signed-in pro user. Signed-in callers get the run
// added to their history.
func (s *ExecutionService) Run(ctx context.Context, callerID, language, code string) (*RunResult, error) {
	language = strings.ToLower(strings.TrimSpace(language))
	lang, ok := s.languages.Get(language)
	if !ok {
		return nil, apperror.ValidationFailed("language", fmt.Sprintf("Unsupported language: %s", language))
	}
	if strings.TrimSpace(code) == "" {
		return nil, apperror.ValidationFailed("code", "Please enter some code")
	}
	if len(code) > MaxCodeLength {
		return nil, apperror.ValidationFailed("code", fmt.Sprintf("code must be %d characters or less", MaxCodeLength))
	}

	if language != FreeLanguage {
		if err := s.requirePro(ctx, callerID); err != nil {
			return nil, err
		}
	}

	res, err := s.executor.Execute(ctx, executor.ExecutionRequest{
		Language: lang.Piston.Language,
		Version:  lang.Piston.Version,
		Code:     code,
	})
	if err != nil {
		if errors.Is(err, executor.ErrUnsupportedLanguage) {
			return nil, apperror.ValidationFailed("language", fmt.Sprintf("Unsupported language: %s", language))
		}
		s.logger.Error("execution failed",
			slog.String("language", language),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("executing code: %w", err)
	}

	s.logger.Info("code executed",
		slog.String("language", language),
		slog.String("version", lang.Piston.Version),
		slog.Int("exitCode", res.ExitCode),
		slog.Duration("duration", res.Duration),
	)

	if callerID != "" {
		s.record(ctx, callerID, language, code, res)
	}

	return &RunResult{
		Language: language,
		Version:  lang.Piston.Version,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		ExitCode: res.ExitCode,
		Duration: res.Duration,
	}, nil
}

func (s *ExecutionService) requirePro(ctx context.Context, callerID string) error {
	if err := requireCaller(callerID); err != nil {
		return err
	}
	u, err := s.users.GetUserByID(ctx, callerID)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("loading caller: %w", err)
	}
	if u == nil || !u.IsPro {
		return apperror.Forbidden("Pro subscription required to use this language")
	}
	return nil
}

// record saves the run to the caller's history. The run already happened, so
// a failed write is only logged.
func (s *ExecutionService) record(ctx context.Context, userID, language, code string, res *executor.ExecutionResult) {
	e := &model.CodeExecution{
		UserID:   userID,
		Language: language,
		Code:     code,
		Output:   res.Stdout,
	}
	if res.ExitCode != 0 {
		e.Error = res.Stderr
	}
	if err := s.executions.CreateExecution(ctx, e); err != nil {
		s.logger.Error("failed to save execution",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
	}
}

// Executions pages through a user's run history, newest first.
func (s *ExecutionService) Executions(ctx context.Context, userID string, limit, offset int) ([]model.CodeExecution, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)
	offset = max(offset, 0)

	execs, err := s.executions.ListExecutions(ctx, userID, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("listing executions: %w", err)
	}
	return execs, nil
}

// Stats summarises a user's history for the profile header.
func (s *ExecutionService) Stats(ctx context.Context, userID string) (*model.UserStats, error) {
	execs, err := s.executions.AllExecutions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading executions: %w", err)
	}

	since := s.now().Add(-24 * time.Hour)
	stats := &model.UserStats{
		TotalExecutions: len(execs),
		LanguageStats:   make(map[string]int),
	}
	for _, e := range execs {
		stats.LanguageStats[e.Language]++
		if e.CreatedAt.After(since) {
			stats.Last24Hours++
		}
	}
	stats.Languages = sortedKeys(stats.LanguageStats)
	stats.LanguagesCount = len(stats.Languages)
	stats.FavoriteLanguage = mostCommon(stats.LanguageStats)

	marks, err := s.marks.ListMarksByUser(ctx, repository.MarkStar, userID)
	if err != nil {
		return nil, fmt.Errorf("loading stars: %w", err)
	}
	ids := make([]string, len(marks))
	for i, m := range marks {
		ids[i] = m.SnippetID
	}
	starred, err := resolveAll(ctx, ids, s.snippets.GetByID)
	if err != nil {
		return nil, fmt.Errorf("loading starred snippets: %w", err)
	}
	starredLangs := make(map[string]int)
	for _, sn := range starred {
		starredLangs[sn.Language]++
	}
	stats.MostStarredLanguage = mostCommon(starredLangs)

	return stats, nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// mostCommon returns the key with the highest count, the alphabetically first
// on a tie, or "N/A" for an empty map.
func mostCommon(counts map[string]int) string {
	if len(counts) == 0 {
		return "N/A"
	}
	best := ""
	for _, k := range sortedKeys(counts) {
		if best == "" || cmp.Compare(counts[k], counts[best]) > 0 {
			best = k
		}
	}
	return best
}
