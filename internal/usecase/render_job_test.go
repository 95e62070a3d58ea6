package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/GitRadiation/template-filler/internal/domain"
	"github.com/GitRadiation/template-filler/internal/renderer"
	mockrepo "github.com/GitRadiation/template-filler/internal/repository/mock"
	mockstore "github.com/GitRadiation/template-filler/internal/storage/mock"
	"github.com/GitRadiation/template-filler/internal/task"
)

// flakyConverter fails the first `failures` conversions, then succeeds.
type flakyConverter struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyConverter) Convert(ctx context.Context, html string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("wkhtmltopdf: exit status 1")
	}
	return []byte("%PDF-1.7 " + html), nil
}

type renderFixture struct {
	repo  *mockrepo.JobRepository
	lock  *mockrepo.ProcessLock
	store *mockstore.Store
	conv  *flakyConverter
	uc    *RenderJobUsecase
}

func newRenderFixture(t *testing.T, convFailures, maxAttempts int) *renderFixture {
	t.Helper()
	f := &renderFixture{
		repo:  mockrepo.NewJobRepository(),
		lock:  mockrepo.NewProcessLock(),
		store: mockstore.NewStore(),
		conv:  &flakyConverter{failures: convFailures},
	}
	reg := testRegistry(t)
	rend := renderer.New(f.conv, false, zap.NewNop())
	policy := task.RetryPolicy{
		MaxAttempts: maxAttempts,
		Delay:       time.Millisecond,
		Classify:    task.DefaultClassify,
	}
	f.uc = NewRenderJobUsecase(f.repo, f.lock, reg, rend, f.store,
		policy, time.Minute, 2*time.Minute, zap.NewNop())
	return f
}

func (f *renderFixture) seedPending(t *testing.T, input map[string]any) *domain.Job {
	t.Helper()
	job := &domain.Job{
		ID:           mustUUID(t),
		TemplateName: domain.TemplateContract,
		OutputFormat: domain.FormatPDF,
		Status:       domain.StatusPending,
		InputData:    input,
	}
	f.repo.Put(job)
	return job
}

func TestRenderJob_Success(t *testing.T) {
	f := newRenderFixture(t, 0, 3)
	job := f.seedPending(t, map[string]any{"party_a": "ACME", "party_b": "Jane"})

	skipped, err := f.uc.Execute(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if skipped {
		t.Error("fresh job must not be skipped")
	}

	got, _ := f.repo.GetByID(context.Background(), job.ID)
	if got.Status != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.OutputRef == nil {
		t.Fatal("expected output_ref on completed job")
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Error("expected started_at and completed_at timestamps")
	}
	if got.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", got.Attempts)
	}
	if got.ErrorMessage != nil {
		t.Errorf("unexpected error message: %s", *got.ErrorMessage)
	}

	wantRef := "generated/" + job.ID.String() + ".pdf"
	if *got.OutputRef != wantRef {
		t.Errorf("expected output_ref %q, got %q", wantRef, *got.OutputRef)
	}
	if _, _, err := f.store.Get(context.Background(), wantRef); err != nil {
		t.Errorf("output bytes not stored: %v", err)
	}

	// pending→running, then running→completed.
	if len(f.repo.Transitions) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(f.repo.Transitions))
	}
	if f.repo.Transitions[0].To != domain.StatusRunning || f.repo.Transitions[1].To != domain.StatusCompleted {
		t.Errorf("unexpected transition order: %+v", f.repo.Transitions)
	}
}

func TestRenderJob_DuplicateDelivery(t *testing.T) {
	f := newRenderFixture(t, 0, 3)
	job := f.seedPending(t, map[string]any{"party_a": "ACME", "party_b": "Jane"})

	// First delivery completes the job and releases its lock; the redelivery
	// is stopped by the pending→running CAS instead.
	if _, err := f.uc.Execute(context.Background(), job.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	skipped, err := f.uc.Execute(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !skipped {
		t.Error("duplicate delivery must be skipped")
	}

	got, _ := f.repo.GetByID(context.Background(), job.ID)
	if got.Attempts != 1 {
		t.Errorf("duplicate delivery must not re-render: attempts=%d", got.Attempts)
	}
}

func TestRenderJob_AlreadyRunningConflict(t *testing.T) {
	f := newRenderFixture(t, 0, 3)
	job := &domain.Job{
		ID:           mustUUID(t),
		TemplateName: domain.TemplateContract,
		OutputFormat: domain.FormatPDF,
		Status:       domain.StatusRunning,
		InputData:    map[string]any{"party_a": "ACME", "party_b": "Jane"},
	}
	f.repo.Put(job)

	skipped, err := f.uc.Execute(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !skipped {
		t.Error("claimed job must be skipped, not re-rendered")
	}

	got, _ := f.repo.GetByID(context.Background(), job.ID)
	if got.Status != domain.StatusRunning {
		t.Errorf("conflicting delivery must not touch the job: %s", got.Status)
	}
}

func TestRenderJob_CompletedJobUntouched(t *testing.T) {
	f := newRenderFixture(t, 0, 3)
	ref := "generated/keep.pdf"
	job := &domain.Job{
		ID:           mustUUID(t),
		TemplateName: domain.TemplateContract,
		OutputFormat: domain.FormatPDF,
		Status:       domain.StatusCompleted,
		OutputRef:    &ref,
		InputData:    map[string]any{"party_a": "ACME", "party_b": "Jane"},
	}
	f.repo.Put(job)

	skipped, err := f.uc.Execute(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !skipped {
		t.Error("terminal job must be skipped")
	}

	got, _ := f.repo.GetByID(context.Background(), job.ID)
	if got.Status != domain.StatusCompleted || *got.OutputRef != ref {
		t.Errorf("terminal job was modified: %+v", got)
	}
	if f.conv.calls != 0 {
		t.Errorf("no render should happen for a terminal job, got %d calls", f.conv.calls)
	}
}

func TestRenderJob_TransientRetrySucceeds(t *testing.T) {
	f := newRenderFixture(t, 1, 3)
	job := f.seedPending(t, map[string]any{"party_a": "ACME", "party_b": "Jane"})

	skipped, err := f.uc.Execute(context.Background(), job.ID)
	if err != nil || skipped {
		t.Fatalf("unexpected result: skipped=%v err=%v", skipped, err)
	}

	got, _ := f.repo.GetByID(context.Background(), job.ID)
	if got.Status != domain.StatusCompleted {
		t.Fatalf("expected completed after retry, got %s", got.Status)
	}
	if got.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", got.Attempts)
	}
}

func TestRenderJob_TransientRetriesExhausted(t *testing.T) {
	f := newRenderFixture(t, 10, 2)
	job := f.seedPending(t, map[string]any{"party_a": "ACME", "party_b": "Jane"})

	skipped, err := f.uc.Execute(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("recorded failure must not surface an error: %v", err)
	}
	if skipped {
		t.Error("failed execution is not a skip")
	}

	got, _ := f.repo.GetByID(context.Background(), job.ID)
	if got.Status != domain.StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", got.Attempts)
	}
	if got.ErrorMessage == nil {
		t.Fatal("expected error message on failed job")
	}
	if got.CompletedAt == nil {
		t.Error("expected completed_at on failed job")
	}
	if f.conv.calls != 2 {
		t.Errorf("expected exactly 2 conversion attempts, got %d", f.conv.calls)
	}
}

func TestRenderJob_PermanentFailureNoRetry(t *testing.T) {
	// Strict renderer turns a missing required field into a permanent failure.
	f := newRenderFixture(t, 0, 3)
	rend := renderer.New(f.conv, true, zap.NewNop())
	f.uc = NewRenderJobUsecase(f.repo, f.lock, testRegistry(t), rend, f.store,
		task.RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond, Classify: task.DefaultClassify},
		time.Minute, 2*time.Minute, zap.NewNop())

	job := f.seedPending(t, map[string]any{"party_a": "ACME"})

	skipped, err := f.uc.Execute(context.Background(), job.ID)
	if err != nil || skipped {
		t.Fatalf("unexpected result: skipped=%v err=%v", skipped, err)
	}

	got, _ := f.repo.GetByID(context.Background(), job.ID)
	if got.Status != domain.StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.Attempts != 1 {
		t.Errorf("permanent failure must not be retried: attempts=%d", got.Attempts)
	}
	if f.conv.calls != 0 {
		t.Errorf("conversion must not run on a template failure, got %d calls", f.conv.calls)
	}
}

func TestRenderJob_HardBudgetExpiryFailsJob(t *testing.T) {
	// The converter keeps failing transiently; the retry delay outlives the
	// hard budget, so the second attempt never starts and the job fails with
	// the budget message.
	f := newRenderFixture(t, 10, 5)
	rend := renderer.New(f.conv, false, zap.NewNop())
	f.uc = NewRenderJobUsecase(f.repo, f.lock, testRegistry(t), rend, f.store,
		task.RetryPolicy{MaxAttempts: 5, Delay: 50 * time.Millisecond, Classify: task.DefaultClassify},
		5*time.Millisecond, 20*time.Millisecond, zap.NewNop())

	job := f.seedPending(t, map[string]any{"party_a": "ACME", "party_b": "Jane"})

	skipped, err := f.uc.Execute(context.Background(), job.ID)
	if err != nil || skipped {
		t.Fatalf("unexpected result: skipped=%v err=%v", skipped, err)
	}

	got, _ := f.repo.GetByID(context.Background(), job.ID)
	if got.Status != domain.StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.ErrorMessage == nil || !strings.Contains(*got.ErrorMessage, "hard time budget") {
		t.Errorf("expected hard budget error message, got %v", got.ErrorMessage)
	}
	if f.conv.calls != 1 {
		t.Errorf("no attempt may start after the budget expires, got %d calls", f.conv.calls)
	}
}

func TestRenderJob_JobMissing(t *testing.T) {
	f := newRenderFixture(t, 0, 3)

	_, err := f.uc.Execute(context.Background(), mustUUID(t))
	if !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestRenderJob_StoreFailureIsTransient(t *testing.T) {
	f := newRenderFixture(t, 0, 3)
	fails := 0
	f.store.PutFunc = func(ctx context.Context, key string, data []byte, contentType string) error {
		if fails == 0 {
			fails++
			return errors.New("minio: connection reset")
		}
		f.store.PutFunc = nil
		return f.store.Put(ctx, key, data, contentType)
	}
	job := f.seedPending(t, map[string]any{"party_a": "ACME", "party_b": "Jane"})

	skipped, err := f.uc.Execute(context.Background(), job.ID)
	if err != nil || skipped {
		t.Fatalf("unexpected result: skipped=%v err=%v", skipped, err)
	}

	got, _ := f.repo.GetByID(context.Background(), job.ID)
	if got.Status != domain.StatusCompleted {
		t.Fatalf("expected completed after storage retry, got %s", got.Status)
	}
	if got.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", got.Attempts)
	}
}
