// Package policy provides the CEL-based buyback acceptance policy.
package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/gametrade/appraisal/internal/domain"
	"github.com/gametrade/appraisal/internal/repository"
)

// ConfigKey is the site_config key holding the policy expression.
const ConfigKey = "buyback_policy"

// DefaultExpression accepts every submission.
const DefaultExpression = "true"

// Service evaluates the acceptance policy against buyback submissions.
// The expression is a CEL boolean over the assessment outcome; admins
// update it at runtime and the compiled program is swapped under lock.
type Service struct {
	mu         sync.RWMutex
	env        *cel.Env
	program    cel.Program
	expression string
	repo       domain.Repository
}

// NewService creates a policy service, loading the stored expression or
// falling back to the default.
func NewService(ctx context.Context, repo domain.Repository) (*Service, error) {
	env, err := cel.NewEnv(
		cel.Variable("total", cel.IntType),
		cel.Variable("rank", cel.IntType),
		cel.Variable("luck_max", cel.IntType),
		cel.Variable("gacha_charas", cel.IntType),
		cel.Variable("fast_track", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	s := &Service{
		env:  env,
		repo: repo,
	}

	expr, err := repo.GetConfig(ctx, ConfigKey)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to load policy: %w", err)
		}
		expr = DefaultExpression
	}

	if err := s.compileAndSwap(expr); err != nil {
		// A bad stored expression must not keep the service down.
		slog.Warn("stored policy expression no longer compiles, using default",
			"expression", expr,
			"error", err,
		)
		if swapErr := s.compileAndSwap(DefaultExpression); swapErr != nil {
			return nil, swapErr
		}
	}

	return s, nil
}

// Expression returns the active policy expression.
func (s *Service) Expression() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expression
}

// SetExpression validates, persists, and activates a new policy.
// Invalid expressions are rejected without touching the active one.
func (s *Service) SetExpression(ctx context.Context, expr string) error {
	if expr == "" {
		return fmt.Errorf("expression is required")
	}

	program, err := s.compile(expr)
	if err != nil {
		return err
	}

	if err := s.repo.SetConfig(ctx, ConfigKey, expr); err != nil {
		return fmt.Errorf("failed to persist policy: %w", err)
	}

	s.mu.Lock()
	s.program = program
	s.expression = expr
	s.mu.Unlock()

	return nil
}

// Accept evaluates the policy against a buyback request.
func (s *Service) Accept(ctx context.Context, req *domain.BuybackRequest) (bool, error) {
	s.mu.RLock()
	program := s.program
	s.mu.RUnlock()

	if program == nil {
		return true, nil
	}

	activation := map[string]any{
		"total":        int64(req.Result.Total),
		"rank":         int64(req.Input.Rank),
		"luck_max":     int64(req.Input.LuckMax),
		"gacha_charas": int64(req.Input.GachaCharas),
		"fast_track":   req.FastTrack,
	}

	out, _, err := program.Eval(activation)
	if err != nil {
		return false, fmt.Errorf("policy evaluation failed: %w", err)
	}

	accepted, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("policy did not produce a boolean")
	}

	return accepted, nil
}

func (s *Service) compile(expr string) (cel.Program, error) {
	ast, issues := s.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile policy: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("policy must return bool, got %s", ast.OutputType())
	}

	program, err := s.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create policy program: %w", err)
	}

	return program, nil
}

func (s *Service) compileAndSwap(expr string) error {
	program, err := s.compile(expr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.program = program
	s.expression = expr
	s.mu.Unlock()

	return nil
}
