// Package proxy puts an affirmation gate in front of an embedded web
// application: file transfers through the proxy reach the application only
// after the user affirms them.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/affirmgate/internal/gate"
	"github.com/ppiankov/affirmgate/internal/intercept"
	"github.com/ppiankov/affirmgate/internal/model"
	"github.com/ppiankov/affirmgate/internal/policy"
)

// Default path prefixes for a Jupyter-style application.
var (
	DefaultDownloadPrefixes = []string{"/files/", "/nbconvert/"}
	DefaultUploadPrefixes   = []string{"/api/contents/", "/upload"}
)

// Config holds proxy server configuration.
type Config struct {
	Port             int
	Upstream         string
	DownloadPrefixes []string
	UploadPrefixes   []string
	AffirmParam      string
}

// Server is a reverse proxy that gates downloads and uploads.
type Server struct {
	cfg      Config
	upstream *url.URL
	rp       *httputil.ReverseProxy
	gate     *gate.Gate
	logger   *slog.Logger

	mu   sync.Mutex
	addr string
	srv  *http.Server
}

// NewServer creates a proxy for cfg.Upstream gated by g.
func NewServer(cfg Config, g *gate.Gate, logger *slog.Logger) (*Server, error) {
	upstream, err := url.Parse(cfg.Upstream)
	if err != nil || upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("invalid upstream URL %q", cfg.Upstream)
	}
	if cfg.DownloadPrefixes == nil {
		cfg.DownloadPrefixes = DefaultDownloadPrefixes
	}
	if cfg.UploadPrefixes == nil {
		cfg.UploadPrefixes = DefaultUploadPrefixes
	}
	if cfg.AffirmParam == "" {
		cfg.AffirmParam = policy.DefaultAffirmParam
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{cfg: cfg, upstream: upstream, gate: g, logger: logger}
	s.rp = httputil.NewSingleHostReverseProxy(upstream)
	s.rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		s.logger.Warn("upstream error", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": "upstream unavailable"})
	}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Start begins listening. Blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.srv.Addr, err)
	}
	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutdownCtx)
	}()

	err = s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Addr returns the listen address. After Start it is the bound address.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addr != "" {
		return s.addr
	}
	return s.srv.Addr
}

// ServeHTTP forwards r upstream, asking for affirmation first when r is a
// file transfer.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// A client cannot pre-affirm a request; only the gate marks it.
	out := r.Clone(r.Context())
	if q := out.URL.Query(); q.Has(s.cfg.AffirmParam) {
		q.Del(s.cfg.AffirmParam)
		out.URL.RawQuery = q.Encode()
	}

	kind, gated := s.classify(out)
	if !gated {
		s.rp.ServeHTTP(w, out)
		return
	}

	ctx := gate.WithTarget(r.Context(), out.URL.Path)
	t, err := s.gate.Start(ctx, kind)
	if err != nil {
		s.logger.Error("gate start failed", "path", out.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	if t.Folded() {
		writeJSON(w, http.StatusConflict, map[string]any{
			"affirmed": false,
			"kind":     kind,
			"reason":   "an affirmation for this action is already open",
		})
		return
	}

	ok, err := t.Wait(ctx)
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		s.logger.Error("gate wait failed", "path", out.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	if !ok {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"affirmed": false,
			"kind":     kind,
			"message":  refusalMessage(kind, s.gate.Config()),
		})
		return
	}

	marked, err := url.ParseRequestURI(intercept.AffirmURLParam(out.URL.RequestURI(), s.cfg.AffirmParam))
	if err == nil {
		out.URL.RawQuery = marked.RawQuery
	}
	s.rp.ServeHTTP(w, out)
}

func (s *Server) classify(r *http.Request) (model.ActionKind, bool) {
	path := r.URL.Path
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		if hasPrefix(path, s.cfg.DownloadPrefixes) {
			return model.KindDownload, true
		}
	case http.MethodPost, http.MethodPut:
		if hasPrefix(path, s.cfg.UploadPrefixes) || isMultipart(r) {
			return model.KindUpload, true
		}
	}
	return "", false
}

func hasPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

func refusalMessage(kind model.ActionKind, cfg *policy.Config) string {
	p, err := cfg.Prompt(kind)
	if err != nil {
		return ""
	}
	if p.Refusal != "" {
		return p.Refusal
	}
	return p.CancelNotice.Body
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
