package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/sakif/snippethub/internal/apperror"
	"github.com/sakif/snippethub/internal/executor"
	"github.com/sakif/snippethub/internal/repository"
)

// RunService executes stored snippets in the sandbox. It is optional: with a
// nil executor every run reports apperror.ErrUnavailable.
type RunService struct {
	snippets repository.SnippetRepository
	exec     executor.Executor
	logger   *slog.Logger
}

func NewRunService(snippets repository.SnippetRepository, exec executor.Executor, logger *slog.Logger) *RunService {
	return &RunService{
		snippets: snippets,
		exec:     exec,
		logger:   logger,
	}
}

// Enabled reports whether a sandbox is configured.
func (s *RunService) Enabled() bool {
	return s.exec != nil
}

// Languages lists the runnable languages, or nil when running is disabled.
func (s *RunService) Languages() []string {
	if s.exec == nil {
		return nil
	}
	return s.exec.Languages()
}

// Run executes the code of the snippet `slug`.
func (s *RunService) Run(ctx context.Context, slug string) (*executor.ExecutionResult, error) {
	if s.exec == nil {
		return nil, apperror.Unavailable("code execution is not enabled on this server")
	}

	snippet, err := s.snippets.GetSnippetBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("service/run: loading snippet %s: %w", slug, err)
	}

	return s.execute(ctx, slug, snippet.Language, snippet.Code)
}

// Execute runs unsaved code, the scratchpad behind the editor's run button.
func (s *RunService) Execute(ctx context.Context, language, code string) (*executor.ExecutionResult, error) {
	if s.exec == nil {
		return nil, apperror.Unavailable("code execution is not enabled on this server")
	}
	if strings.TrimSpace(code) == "" {
		return nil, apperror.ValidationFailed("code", "code cannot be empty")
	}
	if len(code) > MaxCodeLength {
		return nil, apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d characters or less", MaxCodeLength))
	}
	return s.execute(ctx, "", language, code)
}

func (s *RunService) execute(ctx context.Context, slug, language, code string) (*executor.ExecutionResult, error) {
	lang := executor.CanonicalLanguage(language)
	if !slices.Contains(s.exec.Languages(), lang) {
		return nil, apperror.ValidationFailed("language",
			fmt.Sprintf("%s code cannot be run; supported: %s", language, strings.Join(s.exec.Languages(), ", ")))
	}

	result, err := s.exec.Execute(ctx, executor.ExecutionRequest{Language: lang, Code: code})
	if err != nil {
		if errors.Is(err, executor.ErrUnsupportedLanguage) {
			return nil, apperror.ValidationFailed("language", err.Error())
		}
		s.logger.Error("execution failed",
			slog.String("slug", slug),
			slog.String("language", lang),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/run: executing %s code: %w", lang, err)
	}

	s.logger.Info("code executed",
		slog.String("slug", slug),
		slog.String("language", lang),
		slog.Int("exitCode", result.ExitCode),
		slog.Duration("duration", result.Duration),
	)
	return result, nil
}
