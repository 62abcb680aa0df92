package testenv

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stackcheck-labs/stackcheck-go/internal/domain"
	"github.com/stackcheck-labs/stackcheck-go/internal/repo"
)

type fakeEnvs struct {
	envs map[string]domain.TestEnvironment
}

func (f *fakeEnvs) UpsertEnvironment(ctx context.Context, env domain.TestEnvironment) error {
	f.envs[env.ID] = env
	return nil
}

func (f *fakeEnvs) GetEnvironment(ctx context.Context, id string) (domain.TestEnvironment, error) {
	env, ok := f.envs[id]
	if !ok {
		return domain.TestEnvironment{}, repo.ErrNotFound
	}
	return env, nil
}

func (f *fakeEnvs) ListEnvironments(ctx context.Context) ([]domain.TestEnvironment, error) {
	out := make([]domain.TestEnvironment, 0, len(f.envs))
	for _, env := range f.envs {
		out = append(out, env)
	}
	return out, nil
}

func (f *fakeEnvs) DeleteEnvironment(ctx context.Context, id string) error {
	if _, ok := f.envs[id]; !ok {
		return repo.ErrNotFound
	}
	delete(f.envs, id)
	return nil
}

type fakeNotifier struct {
	subscribers map[string]string
	ensureErr   error
}

func (f *fakeNotifier) EnsureTopic(ctx context.Context, name, subscriber string) (string, error) {
	if f.ensureErr != nil {
		return "", f.ensureErr
	}
	if f.subscribers == nil {
		f.subscribers = map[string]string{}
	}
	f.subscribers[name] = subscriber
	return "topic:" + name, nil
}

func (f *fakeNotifier) Publish(ctx context.Context, topic, subject, message string) error {
	return nil
}

func newTestService(envs *fakeEnvs, notifier *fakeNotifier) *Service {
	s := NewService(envs, notifier, slog.New(slog.DiscardHandler))
	s.now = func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) }
	return s
}

func importReq() ImportRequest {
	return ImportRequest{
		EnvName:    "staging",
		StackName:  "demo-stack",
		Region:     "eu-west-1",
		AccountID:  "123456789012",
		AlarmEmail: "oncall@example.com",
	}
}

func TestImportIsIdempotent(t *testing.T) {
	envs := &fakeEnvs{envs: map[string]domain.TestEnvironment{}}
	svc := newTestService(envs, &fakeNotifier{})

	first, err := svc.Import(context.Background(), importReq())
	if err != nil {
		t.Fatalf("Import() err=%v", err)
	}
	second, err := svc.Import(context.Background(), importReq())
	if err != nil {
		t.Fatalf("second Import() err=%v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("ids diverged: %s vs %s", first.ID, second.ID)
	}
	if len(envs.envs) != 1 {
		t.Fatalf("stored %d environments, want 1", len(envs.envs))
	}
	if first.TopicHandle == "" {
		t.Fatalf("import must provision a topic")
	}
}

func TestImportIDIgnoresWhitespace(t *testing.T) {
	envs := &fakeEnvs{envs: map[string]domain.TestEnvironment{}}
	svc := newTestService(envs, &fakeNotifier{})

	req := importReq()
	first, err := svc.Import(context.Background(), req)
	if err != nil {
		t.Fatalf("Import() err=%v", err)
	}
	req.StackName = "  demo-stack "
	second, err := svc.Import(context.Background(), req)
	if err != nil {
		t.Fatalf("Import() err=%v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("whitespace changed the id: %s vs %s", first.ID, second.ID)
	}
}

func TestImportSubscribesAlarmEmail(t *testing.T) {
	envs := &fakeEnvs{envs: map[string]domain.TestEnvironment{}}
	notifier := &fakeNotifier{}
	svc := newTestService(envs, notifier)

	env, err := svc.Import(context.Background(), importReq())
	if err != nil {
		t.Fatalf("Import() err=%v", err)
	}
	if notifier.subscribers["stackcheck-"+env.ID] != "oncall@example.com" {
		t.Fatalf("alarm email not subscribed: %v", notifier.subscribers)
	}
}

func TestImportTopicFailureAborts(t *testing.T) {
	envs := &fakeEnvs{envs: map[string]domain.TestEnvironment{}}
	svc := newTestService(envs, &fakeNotifier{ensureErr: errors.New("redis down")})

	if _, err := svc.Import(context.Background(), importReq()); err == nil {
		t.Fatalf("expected error when topic provisioning fails")
	}
	if len(envs.envs) != 0 {
		t.Fatalf("failed imports must not write records")
	}
}

func TestImportRejectsIncompleteIdentity(t *testing.T) {
	svc := newTestService(&fakeEnvs{envs: map[string]domain.TestEnvironment{}}, &fakeNotifier{})

	req := importReq()
	req.AccountID = " "
	if _, err := svc.Import(context.Background(), req); err == nil {
		t.Fatalf("expected error for missing account id")
	}
}

func TestGetAndDelete(t *testing.T) {
	envs := &fakeEnvs{envs: map[string]domain.TestEnvironment{}}
	svc := newTestService(envs, &fakeNotifier{})

	env, err := svc.Import(context.Background(), importReq())
	if err != nil {
		t.Fatalf("Import() err=%v", err)
	}
	got, err := svc.Get(context.Background(), env.ID)
	if err != nil {
		t.Fatalf("Get() err=%v", err)
	}
	if got.StackName != "demo-stack" {
		t.Fatalf("got=%+v", got)
	}

	if err := svc.Delete(context.Background(), env.ID); err != nil {
		t.Fatalf("Delete() err=%v", err)
	}
	if _, err := svc.Get(context.Background(), env.ID); !errors.Is(err, domain.ErrEnvironmentNotFound) {
		t.Fatalf("err=%v, want ErrEnvironmentNotFound", err)
	}
	if err := svc.Delete(context.Background(), env.ID); !errors.Is(err, domain.ErrEnvironmentNotFound) {
		t.Fatalf("double delete err=%v, want ErrEnvironmentNotFound", err)
	}
}
