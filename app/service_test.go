package app_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/conftree/app"
	"github.com/artpar/conftree/core/tree"
)

// fakeSource serves a swappable snapshot and counts loads.
type fakeSource struct {
	mu    sync.Mutex
	data  *tree.Map
	err   error
	loads atomic.Int64
	block chan struct{} // when set, Load waits until closed
	watch chan struct{}
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Load(ctx context.Context) (*tree.Map, error) {
	if f.block != nil {
		<-f.block
	}
	f.loads.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data, f.err
}

func (f *fakeSource) Watch(ctx context.Context) (<-chan struct{}, error) {
	return f.watch, nil
}

func (f *fakeSource) set(data *tree.Map, err error) {
	f.mu.Lock()
	f.data, f.err = data, err
	f.mu.Unlock()
}

func mapOf(pairs ...any) *tree.Map {
	m := tree.NewMap()
	for i := 0; i+1 < len(pairs); i += 2 {
		m.Set(pairs[i].(string), pairs[i+1])
	}
	return m
}

func TestService_Load(t *testing.T) {
	src := &fakeSource{data: mapOf("app_name", "svc", "retries", 3)}
	svc := app.NewService(app.Options{Source: src, Logger: zerolog.Nop()})

	if svc.Snapshot() != nil {
		t.Fatal("snapshot should be nil before first load")
	}
	if err := svc.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	node := svc.Snapshot()
	if node == nil {
		t.Fatal("snapshot missing after load")
	}
	name, err := node.GetString("app_name")
	if err != nil || name != "svc" {
		t.Errorf("app_name = %q, err = %v", name, err)
	}
	if svc.LoadedAt().IsZero() {
		t.Error("LoadedAt() not recorded")
	}
}

func TestService_FailedLoadKeepsOldSnapshot(t *testing.T) {
	src := &fakeSource{data: mapOf("a", "1")}
	svc := app.NewService(app.Options{Source: src, Logger: zerolog.Nop()})

	if err := svc.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	good := svc.Snapshot()

	src.set(nil, errors.New("connection refused"))
	if err := svc.Load(context.Background()); err == nil {
		t.Fatal("expected load error")
	}
	if svc.Snapshot() != good {
		t.Error("failed load replaced the snapshot")
	}
}

func TestService_RejectedDataKeepsOldSnapshot(t *testing.T) {
	src := &fakeSource{data: mapOf("retries", 3)}
	svc := app.NewService(app.Options{
		Source:     src,
		Logger:     zerolog.Nop(),
		TypeSchema: map[string]any{"retries": "int"},
	})

	if err := svc.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	good := svc.Snapshot()

	// New data violates the type schema.
	src.set(mapOf("retries", "lots"), nil)
	if err := svc.Load(context.Background()); err == nil {
		t.Fatal("expected schema rejection")
	}
	if svc.Snapshot() != good {
		t.Error("rejected load replaced the snapshot")
	}
}

func TestService_OnChange(t *testing.T) {
	src := &fakeSource{data: mapOf("a", "1")}
	svc := app.NewService(app.Options{Source: src, Logger: zerolog.Nop()})

	var seen atomic.Int64
	svc.OnChange(func(*tree.Node) { seen.Add(1) })

	svc.Load(context.Background())
	svc.Load(context.Background())

	if seen.Load() != 2 {
		t.Errorf("listener fired %d times, want 2", seen.Load())
	}
}

func TestService_ConcurrentLoadsDeduplicated(t *testing.T) {
	src := &fakeSource{data: mapOf("a", "1"), block: make(chan struct{})}
	svc := app.NewService(app.Options{Source: src, Logger: zerolog.Nop()})

	const callers = 8
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.Load(context.Background())
		}()
	}

	// Let all callers pile up on the in-flight load, then release it.
	time.Sleep(50 * time.Millisecond)
	close(src.block)
	wg.Wait()

	if loads := src.loads.Load(); loads >= callers {
		t.Errorf("source loaded %d times for %d concurrent callers", loads, callers)
	}
	if svc.Snapshot() == nil {
		t.Error("snapshot missing after concurrent loads")
	}
}

func TestService_WatchTriggersReload(t *testing.T) {
	watch := make(chan struct{}, 1)
	src := &fakeSource{data: mapOf("a", "1"), watch: watch}
	svc := app.NewService(app.Options{
		Source:           src,
		Logger:           zerolog.Nop(),
		ReloadsPerMinute: 600,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer svc.Stop()

	reloaded := make(chan struct{}, 1)
	svc.OnChange(func(*tree.Node) {
		select {
		case reloaded <- struct{}{}:
		default:
		}
	})

	src.set(mapOf("a", "2"), nil)
	watch <- struct{}{}

	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatal("watch event did not trigger a reload")
	}

	v, err := svc.Snapshot().GetString("a")
	if err != nil || v != "2" {
		t.Errorf("a = %q, err = %v", v, err)
	}
}

// recordingMetrics captures instrumentation calls.
type recordingMetrics struct {
	mu        sync.Mutex
	loads     int
	loadErrs  int
	lastAge   float64
	ageCalled bool
}

func (m *recordingMetrics) ObserveLoad(source string, took time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
}

func (m *recordingMetrics) IncLoadError(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErrs++
}

func (m *recordingMetrics) SetSnapshotAge(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastAge = seconds
	m.ageCalled = true
}

func TestService_ReportsMetrics(t *testing.T) {
	src := &fakeSource{data: mapOf("a", "1")}
	rec := &recordingMetrics{}
	svc := app.NewService(app.Options{Source: src, Logger: zerolog.Nop(), Metrics: rec})

	if err := svc.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	src.set(nil, errors.New("connection refused"))
	if err := svc.Load(context.Background()); err == nil {
		t.Fatal("expected load error")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	// Failed attempts count as loads too.
	if rec.loads != 2 {
		t.Errorf("loads = %d, want 2", rec.loads)
	}
	if rec.loadErrs != 1 {
		t.Errorf("load errors = %d, want 1", rec.loadErrs)
	}
	if !rec.ageCalled || rec.lastAge != 0 {
		t.Errorf("snapshot age = %v (called=%v), want 0 after swap", rec.lastAge, rec.ageCalled)
	}
}

func TestService_StopIsIdempotent(t *testing.T) {
	src := &fakeSource{data: mapOf("a", "1")}
	svc := app.NewService(app.Options{Source: src, Logger: zerolog.Nop()})
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	svc.Stop()
	svc.Stop()
}
