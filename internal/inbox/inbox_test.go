package inbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/affirmgate/internal/model"
)

type batches struct {
	mu  sync.Mutex
	got [][]string
}

func (b *batches) handle(_ context.Context, batch []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.got = append(b.got, batch)
}

func (b *batches) snapshot() [][]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]string(nil), b.got...)
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("data"), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestWatcherBatchesFilesArrivingTogether(t *testing.T) {
	dir := t.TempDir()
	b := &batches{}
	w := NewWatcher(dir, b.handle, WithDebounce(100*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	writeFile(t, filepath.Join(dir, "b.csv"))
	writeFile(t, filepath.Join(dir, "a.csv"))
	writeFile(t, filepath.Join(dir, "c.csv.part"))

	time.Sleep(500 * time.Millisecond)
	got := b.snapshot()
	if len(got) != 1 {
		t.Fatalf("expected one batch, got %v", got)
	}
	want := []string{filepath.Join(dir, "a.csv"), filepath.Join(dir, "b.csv")}
	if len(got[0]) != 2 || got[0][0] != want[0] || got[0][1] != want[1] {
		t.Fatalf("got batch %v, want %v", got[0], want)
	}
}

func TestWatcherRenamedPartialFile(t *testing.T) {
	dir := t.TempDir()
	b := &batches{}
	w := NewWatcher(dir, b.handle, WithDebounce(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	final := filepath.Join(dir, "cohort.csv")
	writeFile(t, final+".tmp")
	if err := os.Rename(final+".tmp", final); err != nil {
		t.Fatal(err)
	}

	time.Sleep(400 * time.Millisecond)
	got := b.snapshot()
	if len(got) != 1 || len(got[0]) != 1 || got[0][0] != final {
		t.Fatalf("expected only the renamed file, got %v", got)
	}
}

func TestPollWatcherSeesEachFileOnce(t *testing.T) {
	dir := t.TempDir()
	b := &batches{}
	w := NewPollWatcher(dir, b.handle, time.Hour)

	writeFile(t, filepath.Join(dir, "a.csv"))
	w.scan(context.Background())
	w.scan(context.Background())
	writeFile(t, filepath.Join(dir, "b.csv"))
	w.scan(context.Background())

	got := b.snapshot()
	if len(got) != 2 || len(got[0]) != 1 || len(got[1]) != 1 {
		t.Fatalf("unexpected batches %v", got)
	}
}

func TestScanExisting(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.csv"))
	writeFile(t, filepath.Join(dir, ".hidden"))
	os.Mkdir(filepath.Join(dir, "sub"), 0700)

	b := &batches{}
	if err := ScanExisting(context.Background(), dir, b.handle); err != nil {
		t.Fatal(err)
	}
	got := b.snapshot()
	if len(got) != 1 || len(got[0]) != 1 {
		t.Fatalf("unexpected batches %v", got)
	}

	if err := ScanExisting(context.Background(), filepath.Join(dir, "missing"), b.handle); err != nil {
		t.Fatalf("missing dir should be ignored, got %v", err)
	}
}

func TestIsUploadFile(t *testing.T) {
	tests := map[string]bool{
		"data.csv":            true,
		"report.pdf":          true,
		"data.csv.tmp":        false,
		"data.csv.part":       false,
		"data.csv.crdownload": false,
		".DS_Store":           false,
	}
	for name, want := range tests {
		if got := isUploadFile(filepath.Join("/in", name)); got != want {
			t.Errorf("isUploadFile(%q) = %v, want %v", name, got, want)
		}
	}
}

type stubGate struct {
	ok    bool
	err   error
	calls int
	kind  model.ActionKind
}

func (s *stubGate) Request(_ context.Context, kind model.ActionKind) (bool, error) {
	s.calls++
	s.kind = kind
	return s.ok, s.err
}

func TestGatekeeperRemovesDeclinedBatch(t *testing.T) {
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.csv"), filepath.Join(dir, "b.csv")
	writeFile(t, a)
	writeFile(t, b)

	g := &stubGate{ok: false}
	accepted := false
	k := NewGatekeeper(g, func(context.Context, []string) error { accepted = true; return nil }, nil)
	k.Handle(context.Background(), []string{a, b})

	if g.calls != 1 || g.kind != model.KindUpload {
		t.Fatalf("expected one upload request, got %d %s", g.calls, g.kind)
	}
	for _, p := range []string{a, b} {
		if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected %s removed", p)
		}
	}
	if accepted {
		t.Fatal("declined batch must not be accepted")
	}
}

func TestGatekeeperAcceptsAffirmedBatch(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	writeFile(t, a)

	var got []string
	k := NewGatekeeper(&stubGate{ok: true}, func(_ context.Context, files []string) error {
		got = files
		return nil
	}, nil)
	k.Handle(context.Background(), []string{a})

	if _, err := os.Stat(a); err != nil {
		t.Fatalf("affirmed file should remain: %v", err)
	}
	if len(got) != 1 || got[0] != a {
		t.Fatalf("accept hook got %v", got)
	}
}

func TestGatekeeperFailsClosed(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	writeFile(t, a)

	k := NewGatekeeper(&stubGate{err: errors.New("renderer gone")}, nil, nil)
	k.Handle(context.Background(), []string{a})

	if _, err := os.Stat(a); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("expected file removed when affirmation fails")
	}
}

func TestGatekeeperLeavesFilesOnShutdown(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	writeFile(t, a)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	k := NewGatekeeper(&stubGate{err: context.Canceled}, nil, nil)
	k.Handle(ctx, []string{a})

	if _, err := os.Stat(a); err != nil {
		t.Fatal("files must stay for the next start")
	}
}
