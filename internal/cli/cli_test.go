package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/affirmgate/internal/approval"
	"github.com/ppiankov/affirmgate/internal/policy"
)

func TestWritePolicyCreates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "policy.yaml")

	wrote, err := writePolicy(path, false)
	if err != nil {
		t.Fatalf("writePolicy failed: %v", err)
	}
	if !wrote {
		t.Fatal("expected file to be written")
	}
	cfg, err := policy.LoadConfig(path)
	if err != nil {
		t.Fatalf("written policy does not load: %v", err)
	}
	if cfg.Download.Token != "affirm" {
		t.Errorf("download token = %q", cfg.Download.Token)
	}
}

func TestWritePolicyAsksBeforeOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("custom: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	orig := confirmOverwrite
	defer func() { confirmOverwrite = orig }()

	asked := 0
	confirmOverwrite = func(string) (bool, error) {
		asked++
		return false, nil
	}
	wrote, err := writePolicy(path, false)
	if err != nil || wrote {
		t.Fatalf("declined overwrite: wrote=%v err=%v", wrote, err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "custom: true\n" {
		t.Error("file changed without confirmation")
	}

	confirmOverwrite = func(string) (bool, error) {
		asked++
		return true, nil
	}
	if wrote, _ := writePolicy(path, false); !wrote {
		t.Error("confirmed overwrite not written")
	}
	if asked != 2 {
		t.Errorf("asked %d times, want 2", asked)
	}

	if wrote, _ := writePolicy(path, true); !wrote {
		t.Error("--force must overwrite")
	}
	if asked != 2 {
		t.Error("--force must not ask")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "info", "json")
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("hidden")
	logger.Info("shown", "k", "v")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug record emitted at info level")
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("expected JSON record, got %q", out)
	}

	if _, err := newLogger(&buf, "loud", "text"); err == nil {
		t.Error("expected error for bad level")
	}
	if _, err := newLogger(&buf, "info", "xml"); err == nil {
		t.Error("expected error for bad format")
	}
}

func TestNewAppPendingPresenter(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	policyPath = ""

	a, err := newApp(gateOptions{Surface: "test", Presenter: presenterPending, AuditPath: filepath.Join(home, "audit.jsonl")})
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	defer a.Close()

	if a.Pending == nil {
		t.Fatal("pending presenter must expose its store")
	}
	if a.Gate.Surface() != "test" {
		t.Errorf("surface = %q", a.Gate.Surface())
	}
	if _, err := os.Stat(filepath.Join(home, "audit.jsonl")); err != nil {
		t.Errorf("audit log not opened: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestNewAppUnknownPresenter(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	policyPath = ""
	if _, err := newApp(gateOptions{Presenter: "carrier-pigeon", NoAudit: true}); err == nil {
		t.Fatal("expected error")
	}
}

func TestMoveInto(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	f := filepath.Join(src, "a.csv")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := moveInto(dest)(context.Background(), []string{f}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dest, "a.csv")); err != nil {
		t.Error("file not moved")
	}
	if _, err := os.Stat(f); !os.IsNotExist(err) {
		t.Error("source still present")
	}
}

func TestAffirmAndCancelCommands(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	store, err := approval.NewStore(approval.DefaultDir())
	if err != nil {
		t.Fatal(err)
	}
	cfg := policy.DefaultConfig()
	if err := store.Request("k1", cfg.Download); err != nil {
		t.Fatal(err)
	}
	if err := store.Request("k2", cfg.Upload); err != nil {
		t.Fatal(err)
	}

	if err := runAffirm(nil, []string{"k1", "affirm"}); err != nil {
		t.Fatalf("affirm: %v", err)
	}
	if err := runCancel(nil, []string{"k2"}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	e1, _ := store.Get("k1")
	if e1.Status != approval.StatusSubmitted || e1.Input != "affirm" {
		t.Errorf("k1 = %+v", e1)
	}
	e2, _ := store.Get("k2")
	if e2.Status != approval.StatusCancelled {
		t.Errorf("k2 status = %s", e2.Status)
	}

	if err := runAffirm(nil, []string{"missing"}); err == nil {
		t.Error("expected error for unknown key")
	}
}
