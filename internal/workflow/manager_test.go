package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"revoice/internal/config"
	"revoice/internal/logging"
	"revoice/internal/queue"
	"revoice/internal/services"
	"revoice/internal/stage"
	"revoice/internal/testsupport"
	"revoice/internal/workflow"
	"revoice/internal/workspace"
)

type stubStage struct {
	name        string
	prepareHook func(*queue.Item)
	executeHook func(*queue.Item)
	prepareErr  error
	executeErr  error
	health      stage.Health
}

func newStubStage(name string) *stubStage {
	return &stubStage{name: name, health: stage.Healthy(name)}
}

func (s *stubStage) Prepare(_ context.Context, item *queue.Item) error {
	if s.prepareHook != nil {
		s.prepareHook(item)
	}
	return s.prepareErr
}

func (s *stubStage) Execute(_ context.Context, item *queue.Item) error {
	if s.executeHook != nil {
		s.executeHook(item)
	}
	return s.executeErr
}

func (s *stubStage) HealthCheck(context.Context) stage.Health {
	return s.health
}

type managerNotifier struct {
	mu             sync.Mutex
	queueStarts    []int
	queueCompletes []struct{ processed, failed int }
	completions    []string
	failures       []string
	reviews        []string
}

func (m *managerNotifier) NotifyItemQueued(context.Context, string) error { return nil }

func (m *managerNotifier) NotifyItemCompleted(_ context.Context, title, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completions = append(m.completions, title)
	return nil
}

func (m *managerNotifier) NotifyItemFailed(_ context.Context, title string, _ error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, title)
	return nil
}

func (m *managerNotifier) NotifyItemReview(_ context.Context, title, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reviews = append(m.reviews, title)
	return nil
}

func (m *managerNotifier) NotifyQueueStarted(_ context.Context, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueStarts = append(m.queueStarts, count)
	return nil
}

func (m *managerNotifier) NotifyQueueCompleted(_ context.Context, processed, failed int, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueCompletes = append(m.queueCompletes, struct{ processed, failed int }{processed, failed})
	return nil
}

func (m *managerNotifier) TestNotification(context.Context) error { return nil }

func (m *managerNotifier) queueStartCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queueStarts)
}

func (m *managerNotifier) queueCompleteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queueCompletes)
}

func (m *managerNotifier) reviewCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reviews)
}

func (m *managerNotifier) failureCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.failures)
}

func managerConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 0
	return cfg
}

func fullStageSet() workflow.StageSet {
	return workflow.StageSet{
		Extractor:   newStubStage("extractor"),
		Normalizer:  newStubStage("normalizer"),
		Transcriber: newStubStage("transcriber"),
		Corrector:   newStubStage("corrector"),
		Synthesizer: newStubStage("synthesizer"),
		Muxer:       newStubStage("muxer"),
	}
}

func waitForStatus(t *testing.T, store *queue.Store, id int64, want queue.Status) *queue.Item {
	t.Helper()
	deadline := time.After(30 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for status %s", want)
		default:
		}
		item, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if item.Status == want {
			return item
		}
		if item.Status.IsTerminal() && item.Status != want {
			t.Fatalf("item settled at %s, want %s (error %q)", item.Status, want, item.ErrorMessage)
		}
		time.Sleep(25 * time.Millisecond)
	}
}

func TestManagerProcessesItemToCompletion(t *testing.T) {
	cfg := managerConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	set := fullStageSet()
	var workspaceDir string
	set.Extractor.(*stubStage).executeHook = func(item *queue.Item) {
		dir, err := workspace.Ensure(item, cfg.Paths.StagingDir)
		if err != nil {
			t.Errorf("workspace.Ensure: %v", err)
			return
		}
		workspaceDir = dir
		item.AudioFile = filepath.Join(dir, "audio.wav")
	}
	set.Muxer.(*stubStage).executeHook = func(item *queue.Item) {
		item.FinalFile = filepath.Join(cfg.Paths.OutputDir, "clip.mp4")
		item.SetProgressComplete("Completed", "Voiceover replaced")
	}

	notifier := &managerNotifier{}
	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), notifier)
	mgr.ConfigureStages(set)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mgr.Stop)

	item := testsupport.NewFile(t, store, filepath.Join(cfg.Paths.StagingDir, "clip.mp4"))
	done := waitForStatus(t, store, item.ID, queue.StatusCompleted)

	if done.FinalFile == "" {
		t.Fatal("expected final file to be recorded")
	}
	if done.ProgressPercent != 100 {
		t.Fatalf("expected progress 100, got %v", done.ProgressPercent)
	}
	if done.WorkspaceDir != "" {
		t.Fatalf("expected workspace dir cleared, got %q", done.WorkspaceDir)
	}
	if workspaceDir == "" {
		t.Fatal("expected extractor hook to create a workspace")
	}
	if _, err := os.Stat(workspaceDir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected workspace removed, stat err %v", err)
	}

	if notifier.queueStartCount() != 1 {
		t.Fatalf("expected one queue start notification, got %d", notifier.queueStartCount())
	}
	deadline := time.After(10 * time.Second)
	for notifier.queueCompleteCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected queue completion notification")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestManagerValidationFailureRoutesToReview(t *testing.T) {
	cfg := managerConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	failing := newStubStage("transcriber")
	failing.executeErr = services.Wrap(services.ErrValidation, "transcriber", "execute", "recognition returned no speech", nil)

	notifier := &managerNotifier{}
	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), notifier)
	mgr.ConfigureStages(workflow.StageSet{Transcriber: failing})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mgr.Stop)

	item := testsupport.NewFile(t, store, filepath.Join(cfg.Paths.StagingDir, "clip.mp4"))
	item.Status = queue.StatusNormalized
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	updated := waitForStatus(t, store, item.ID, queue.StatusReview)
	if !updated.NeedsReview {
		t.Fatal("expected needs_review flag")
	}
	if updated.ReviewReason == "" {
		t.Fatal("expected review reason to be populated")
	}
	if updated.ProgressStage != "Review" {
		t.Fatalf("expected progress stage Review, got %q", updated.ProgressStage)
	}

	deadline := time.After(10 * time.Second)
	for notifier.reviewCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected review notification")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	if notifier.failureCount() != 0 {
		t.Fatalf("expected no failure notifications, got %d", notifier.failureCount())
	}
}

func TestManagerFailureDefaultsToFailed(t *testing.T) {
	cfg := managerConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	failing := newStubStage("extractor")
	failing.executeErr = fmt.Errorf("boom")

	notifier := &managerNotifier{}
	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), notifier)
	mgr.ConfigureStages(workflow.StageSet{Extractor: failing})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mgr.Stop)

	item := testsupport.NewFile(t, store, filepath.Join(cfg.Paths.StagingDir, "clip.mp4"))
	updated := waitForStatus(t, store, item.ID, queue.StatusFailed)
	if updated.ErrorMessage == "" {
		t.Fatal("expected error message to be populated")
	}
	if updated.ProgressStage != "Failed" {
		t.Fatalf("expected progress stage Failed, got %q", updated.ProgressStage)
	}

	deadline := time.After(10 * time.Second)
	for notifier.failureCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected failure notification")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestManagerFailureRemovesWorkspace(t *testing.T) {
	cfg := managerConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	failing := newStubStage("normalizer")
	var workspaceDir string
	failing.executeHook = func(item *queue.Item) {
		dir, err := workspace.Ensure(item, cfg.Paths.StagingDir)
		if err != nil {
			t.Errorf("workspace.Ensure: %v", err)
			return
		}
		workspaceDir = dir
	}
	failing.executeErr = services.Wrap(services.ErrTransient, "normalizer", "execute", "normalized audio write failed", fmt.Errorf("disk full"))

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), &managerNotifier{})
	mgr.ConfigureStages(workflow.StageSet{Normalizer: failing})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mgr.Stop)

	item := testsupport.NewFile(t, store, filepath.Join(cfg.Paths.StagingDir, "clip.mp4"))
	item.Status = queue.StatusExtracted
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	updated := waitForStatus(t, store, item.ID, queue.StatusFailed)
	if updated.WorkspaceDir != "" {
		t.Fatalf("expected workspace dir cleared, got %q", updated.WorkspaceDir)
	}
	if workspaceDir == "" {
		t.Fatal("expected stage hook to create a workspace")
	}
	if _, err := os.Stat(workspaceDir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected workspace removed, stat err %v", err)
	}
}

func TestManagerStatusIncludesStageHealth(t *testing.T) {
	cfg := managerConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	handler := newStubStage("extractor")
	handler.health = stage.Unhealthy(handler.name, "ffmpeg not found")

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), &managerNotifier{})
	mgr.ConfigureStages(workflow.StageSet{Extractor: handler})

	status := mgr.Status(context.Background())
	health, ok := status.StageHealth[handler.name]
	if !ok {
		t.Fatalf("expected stage health entry for %s", handler.name)
	}
	if health.Ready {
		t.Fatalf("expected not ready health, got %+v", health)
	}
	if health.Detail != handler.health.Detail {
		t.Fatalf("expected detail %q, got %q", handler.health.Detail, health.Detail)
	}
	if status.Running {
		t.Fatal("expected manager to report not running")
	}
}

func TestManagerStartRequiresStages(t *testing.T) {
	cfg := managerConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), &managerNotifier{})
	if err := mgr.Start(context.Background()); err == nil {
		mgr.Stop()
		t.Fatal("expected Start to fail without configured stages")
	}
}
