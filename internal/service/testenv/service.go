// Package testenv imports and manages target test environments.
package testenv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/stackcheck-labs/stackcheck-go/internal/domain"
	"github.com/stackcheck-labs/stackcheck-go/internal/platform/notify"
	"github.com/stackcheck-labs/stackcheck-go/internal/repo"
)

// ImportRequest describes the environment to import. The id is not
// caller-supplied: it derives from (accountId, region, stackName), so
// re-importing the same environment is an upsert.
type ImportRequest struct {
	EnvName    string
	StackName  string
	Region     string
	AccountID  string
	AlarmEmail string
	ProjectID  string
}

type Service struct {
	envs     repo.EnvironmentRepository
	notifier notify.Notifier
	log      *slog.Logger

	now func() time.Time
}

func NewService(envs repo.EnvironmentRepository, notifier notify.Notifier, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		envs:     envs,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// Import provisions the environment's notification topic and upserts
// the record. Importing the same physical identity twice yields the
// same environment id both times.
func (s *Service) Import(ctx context.Context, req ImportRequest) (domain.TestEnvironment, error) {
	if s == nil || s.envs == nil {
		return domain.TestEnvironment{}, errors.New("environment service not initialized")
	}

	env := domain.TestEnvironment{
		ID:         domain.EnvironmentID(req.AccountID, req.Region, req.StackName),
		Name:       strings.TrimSpace(req.EnvName),
		Region:     strings.TrimSpace(req.Region),
		AccountID:  strings.TrimSpace(req.AccountID),
		StackName:  strings.TrimSpace(req.StackName),
		AlarmEmail: strings.TrimSpace(req.AlarmEmail),
		ProjectID:  strings.TrimSpace(req.ProjectID),
		CreatedAt:  domain.FormatTime(s.now()),
	}
	if env.Name == "" {
		env.Name = env.StackName
	}
	if err := env.Validate(); err != nil {
		return domain.TestEnvironment{}, fmt.Errorf("validate environment: %w", err)
	}

	if s.notifier != nil {
		handle, err := s.notifier.EnsureTopic(ctx, "stackcheck-"+env.ID, env.AlarmEmail)
		if err != nil {
			return domain.TestEnvironment{}, fmt.Errorf("provision topic for %s: %w", env.ID, err)
		}
		env.TopicHandle = handle
	}

	if err := s.envs.UpsertEnvironment(ctx, env); err != nil {
		return domain.TestEnvironment{}, fmt.Errorf("upsert environment %s: %w", env.ID, err)
	}
	s.log.Info("environment imported", "test_env_id", env.ID, "stack", env.StackName, "region", env.Region)
	return env, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.TestEnvironment, error) {
	if s == nil || s.envs == nil {
		return domain.TestEnvironment{}, errors.New("environment service not initialized")
	}
	env, err := s.envs.GetEnvironment(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.TestEnvironment{}, fmt.Errorf("%w: %s", domain.ErrEnvironmentNotFound, id)
		}
		return domain.TestEnvironment{}, fmt.Errorf("get environment %s: %w", id, err)
	}
	return env, nil
}

func (s *Service) List(ctx context.Context) ([]domain.TestEnvironment, error) {
	if s == nil || s.envs == nil {
		return nil, errors.New("environment service not initialized")
	}
	return s.envs.ListEnvironments(ctx)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if s == nil || s.envs == nil {
		return errors.New("environment service not initialized")
	}
	if err := s.envs.DeleteEnvironment(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrEnvironmentNotFound, id)
		}
		return fmt.Errorf("delete environment %s: %w", id, err)
	}
	s.log.Info("environment deleted", "test_env_id", id)
	return nil
}
