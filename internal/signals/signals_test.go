package signals

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recordingController struct {
	mu      sync.Mutex
	pauses  int
	resumes int
	stops   int
}

func (c *recordingController) Pause()  { c.mu.Lock(); c.pauses++; c.mu.Unlock() }
func (c *recordingController) Resume() { c.mu.Lock(); c.resumes++; c.mu.Unlock() }
func (c *recordingController) Stop()   { c.mu.Lock(); c.stops++; c.mu.Unlock() }

func (c *recordingController) counts() (pauses, resumes, stops int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pauses, c.resumes, c.stops
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestWatch_KillStopsAndCallsBack(t *testing.T) {
	dir := t.TempDir()
	ctrl := &recordingController{}
	killed := make(chan struct{}, 1)

	w, err := Watch(dir, ctrl, func() { killed <- struct{}{} })
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer w.Close()

	if err := SendKill(dir); err != nil {
		t.Fatalf("SendKill failed: %v", err)
	}

	select {
	case <-killed:
	case <-time.After(3 * time.Second):
		t.Fatal("kill callback not called")
	}
	if !w.Killed() {
		t.Error("Killed() should be true")
	}
	if _, _, stops := ctrl.counts(); stops != 1 {
		t.Errorf("Stop called %d times, want 1", stops)
	}

	// Further writes do not kill twice.
	if err := SendKill(dir); err != nil {
		t.Fatalf("SendKill failed: %v", err)
	}
	w.Check()
	if _, _, stops := ctrl.counts(); stops != 1 {
		t.Errorf("Stop called %d times after second kill, want 1", stops)
	}
}

func TestWatch_PauseAndResume(t *testing.T) {
	dir := t.TempDir()
	ctrl := &recordingController{}

	w, err := Watch(dir, ctrl, nil)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer w.Close()

	if err := SendPause(dir); err != nil {
		t.Fatalf("SendPause failed: %v", err)
	}
	eventually(t, "pause", w.Paused)

	if err := SendResume(dir); err != nil {
		t.Fatalf("SendResume failed: %v", err)
	}
	eventually(t, "resume", func() bool { return !w.Paused() })

	pauses, resumes, stops := ctrl.counts()
	if pauses != 1 || resumes != 1 || stops != 0 {
		t.Errorf("pauses=%d resumes=%d stops=%d, want 1 1 0", pauses, resumes, stops)
	}
}

func TestWatch_AppliesExistingSignals(t *testing.T) {
	dir := t.TempDir()
	if err := SendPause(dir); err != nil {
		t.Fatalf("SendPause failed: %v", err)
	}

	ctrl := &recordingController{}
	w, err := Watch(dir, ctrl, nil)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer w.Close()

	if !w.Paused() {
		t.Error("existing pause file should apply on start")
	}
	if pauses, _, _ := ctrl.counts(); pauses != 1 {
		t.Errorf("Pause called %d times, want 1", pauses)
	}
}

func TestClear(t *testing.T) {
	dir := t.TempDir()
	if err := SendKill(dir); err != nil {
		t.Fatal(err)
	}
	if err := SendPause(dir); err != nil {
		t.Fatal(err)
	}

	Clear(dir)

	for _, name := range []string{KillFile, PauseFile} {
		if _, err := os.Stat(filepath.Join(Dir(dir), name)); !os.IsNotExist(err) {
			t.Errorf("%s should be removed", name)
		}
	}
	if err := SendResume(dir); err != nil {
		t.Errorf("SendResume without a pause file = %v, want nil", err)
	}
}

func TestWatcher_CloseTwice(t *testing.T) {
	w, err := Watch(t.TempDir(), nil, nil)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	w.Close()
	w.Close()
}
