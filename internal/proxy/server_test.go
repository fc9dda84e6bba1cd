package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/affirmgate/internal/dialog"
	"github.com/ppiankov/affirmgate/internal/gate"
	"github.com/ppiankov/affirmgate/internal/model"
	"github.com/ppiankov/affirmgate/internal/policy"
)

type upstreamLog struct {
	mu   sync.Mutex
	reqs []*http.Request
}

func (u *upstreamLog) last() *http.Request {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.reqs) == 0 {
		return nil
	}
	return u.reqs[len(u.reqs)-1]
}

func (u *upstreamLog) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.reqs)
}

func newUpstream(t *testing.T) (*httptest.Server, *upstreamLog) {
	t.Helper()
	log := &upstreamLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.mu.Lock()
		log.reqs = append(log.reqs, r)
		log.mu.Unlock()
		io.WriteString(w, "ok")
	}))
	t.Cleanup(srv.Close)
	return srv, log
}

// answer resolves every modal with the given input; "" cancels.
func answer(input string) dialog.Presenter {
	return dialog.PresenterFunc(func(_ context.Context, m *dialog.Modal) {
		if input == "" {
			m.Cancel()
			return
		}
		m.SetInput(input)
		m.Enter()
	})
}

func newTestProxy(t *testing.T, p dialog.Presenter) (*Server, *upstreamLog, *dialog.Surface) {
	t.Helper()
	up, log := newUpstream(t)
	surface := dialog.NewSurface(p)
	g := gate.New(policy.DefaultConfig(), surface, gate.WithSurface("proxy"))
	s, err := NewServer(Config{Upstream: up.URL}, g, nil)
	if err != nil {
		t.Fatal(err)
	}
	return s, log, surface
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestUngatedRequestPassesThrough(t *testing.T) {
	s, log, surface := newTestProxy(t, nil)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/lab/tree", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if log.count() != 1 || surface.OpenCount() != 0 {
		t.Fatal("expected forward without a dialog")
	}
}

func TestAffirmedDownloadIsMarked(t *testing.T) {
	s, log, _ := newTestProxy(t, answer("affirm"))

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/data.csv", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := log.last().URL.RawQuery; got != "affirm=true" {
		t.Fatalf("expected affirm=true, got %q", got)
	}
}

func TestAffirmedDownloadKeepsQuery(t *testing.T) {
	s, log, _ := newTestProxy(t, answer("AFFIRM"))

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nbconvert/html/a.ipynb?download=1", nil))

	if got := log.last().URL.RawQuery; got != "download=1&affirm=true" {
		t.Fatalf("unexpected query %q", got)
	}
}

func TestClientCannotPreAffirm(t *testing.T) {
	s, log, _ := newTestProxy(t, answer(""))

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/a.csv?affirm=true", nil))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if log.count() != 0 {
		t.Fatal("cancelled download must not reach upstream")
	}
}

func TestCancelledDownloadForbidden(t *testing.T) {
	s, log, _ := newTestProxy(t, answer(""))

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/a.csv", nil))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["affirmed"] != false || body["kind"] != "download" {
		t.Fatalf("unexpected body %v", body)
	}
	if body["message"] != policy.DefaultConfig().Download.CancelNotice.Body {
		t.Fatalf("unexpected message %v", body["message"])
	}
	if log.count() != 0 {
		t.Fatal("cancelled download must not reach upstream")
	}
}

func TestCancelledUploadCarriesRefusal(t *testing.T) {
	s, log, _ := newTestProxy(t, answer(""))

	req := httptest.NewRequest(http.MethodPost, "/notebooks/save", bytes.NewBufferString("--x--"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if decode(t, rec)["message"] != policy.DefaultConfig().Upload.Refusal {
		t.Fatal("expected upload refusal message")
	}
	if log.count() != 0 {
		t.Fatal("cancelled upload must not reach upstream")
	}
}

func TestAffirmedUploadForwarded(t *testing.T) {
	s, log, _ := newTestProxy(t, answer("yes"))

	req := httptest.NewRequest(http.MethodPut, "/api/contents/data.csv", bytes.NewBufferString(`{"content":"a,b"}`))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || log.count() != 1 {
		t.Fatalf("expected forwarded upload, got %d", rec.Code)
	}
	if log.last().Method != http.MethodPut {
		t.Fatalf("unexpected method %s", log.last().Method)
	}
}

func TestDuplicateDownloadConflicts(t *testing.T) {
	s, log, surface := newTestProxy(t, nil)

	first := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		s.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/files/a.csv", nil))
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for surface.Current() == nil {
		if time.Now().After(deadline) {
			t.Fatal("dialog never opened")
		}
		time.Sleep(time.Millisecond)
	}

	second := httptest.NewRecorder()
	s.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/files/a.csv", nil))
	if second.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", second.Code)
	}

	m := surface.Current()
	m.SetInput("affirm")
	m.Affirm()
	<-done

	if first.Code != http.StatusOK || log.count() != 1 {
		t.Fatalf("expected exactly one forwarded download, got code %d count %d", first.Code, log.count())
	}
}

func TestClassify(t *testing.T) {
	s, _, _ := newTestProxy(t, nil)
	tests := []struct {
		method, path string
		kind         model.ActionKind
		gated        bool
	}{
		{http.MethodGet, "/files/x.csv", model.KindDownload, true},
		{http.MethodHead, "/nbconvert/pdf/x.ipynb", model.KindDownload, true},
		{http.MethodGet, "/api/contents/x.csv", "", false},
		{http.MethodPut, "/api/contents/x.csv", model.KindUpload, true},
		{http.MethodPost, "/upload", model.KindUpload, true},
		{http.MethodPost, "/api/sessions", "", false},
		{http.MethodDelete, "/files/x.csv", "", false},
	}
	for _, tt := range tests {
		kind, gated := s.classify(httptest.NewRequest(tt.method, tt.path, nil))
		if kind != tt.kind || gated != tt.gated {
			t.Errorf("%s %s: got (%q, %v), want (%q, %v)", tt.method, tt.path, kind, gated, tt.kind, tt.gated)
		}
	}
}

func TestInvalidUpstream(t *testing.T) {
	g := gate.New(policy.DefaultConfig(), dialog.NewSurface(nil))
	if _, err := NewServer(Config{Upstream: "not a url"}, g, nil); err == nil {
		t.Fatal("expected error for invalid upstream")
	}
}

func TestProxyStartStop(t *testing.T) {
	up, _ := newUpstream(t)
	g := gate.New(policy.DefaultConfig(), dialog.NewSurface(nil))
	s, err := NewServer(Config{Port: 0, Upstream: up.URL}, g, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for s.Addr() == ":0" {
		if time.Now().After(deadline) {
			t.Fatal("server did not start")
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp, err := http.Get("http://" + s.Addr() + "/lab")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
