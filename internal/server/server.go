package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/example/go-recog/internal/audio"
	"github.com/example/go-recog/internal/config"
	"github.com/example/go-recog/internal/engine"
	"github.com/example/go-recog/internal/feat"
	"golang.org/x/sync/errgroup"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}

	return "dev"
}

// ---------------------------------------------------------------------------
// Server — HTTP control surface + module-mode TCP audio listener
// ---------------------------------------------------------------------------

// Server wires a read-only engine.Model into two listeners: an HTTP control
// surface (health, grammar inspection/mutation) on cfg.Server.ListenAddr,
// and the module-mode TCP audio protocol of spec.md §6 on
// cfg.Server.ModuleAddr. Either address may be left empty to disable that
// listener.
type Server struct {
	cfg        config.Config
	model      *engine.Model
	decoderCfg engine.Config

	// newPipeline builds a fresh feature pipeline for one module
	// connection's lifetime; the caller owns the MFCC configuration since
	// it is a property of the acoustic model, not of this server.
	newPipeline func() *feat.Pipeline

	// sampleRate is the capture rate newPipeline's feature pipeline
	// expects; it is what the VAD head/tail margins (in milliseconds) are
	// converted against. Fixed at the conventional 16kHz capture rate.
	sampleRate int

	shutdownTimeout time.Duration
	log             *slog.Logger
}

func New(cfg config.Config, model *engine.Model, decoderCfg engine.Config, newPipeline func() *feat.Pipeline) *Server {
	return &Server{
		cfg:             cfg,
		model:           model,
		decoderCfg:      decoderCfg,
		newPipeline:     newPipeline,
		sampleRate:      16000,
		shutdownTimeout: 30 * time.Second,
		log:             slog.Default(),
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

// WithLogger overrides the default slog.Logger used for server-lifecycle
// and per-connection logging.
func (s *Server) WithLogger(l *slog.Logger) *Server {
	s.log = l
	return s
}

// Start runs both listeners until ctx is cancelled, then drains each one
// gracefully. It returns the first listener error that is not a clean
// shutdown.
func (s *Server) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if s.cfg.Server.ListenAddr != "" {
		g.Go(func() error { return s.startHTTP(gctx) })
	}
	if s.cfg.Server.ModuleAddr != "" {
		g.Go(func() error { return s.startModule(gctx) })
	}

	return g.Wait()
}

func (s *Server) startHTTP(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           s.newControlHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}

		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("http listen: %w", err)
	}
}

func (s *Server) startModule(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.ModuleAddr)
	if err != nil {
		return fmt.Errorf("module listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			wg.Wait()
			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("module accept: %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serveModuleConn(ctx, conn)
		}()
	}
}

// ProbeHTTP is used by the CLI's health check: a GET /health that does not
// return 200 is treated as a failed probe.
func ProbeHTTP(addr string) error {
	resp, err := http.Get("http://" + addr + "/health") //nolint:noctx
	if err != nil {
		return err
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected health status: %s", resp.Status)
	}

	return nil
}

// ---------------------------------------------------------------------------
// module-mode connection handling
// ---------------------------------------------------------------------------

// serveModuleConn drives one audio connection end to end: an
// audio.NetSource decodes the length-prefixed PCM framing of spec.md §6,
// feeding a fresh engine.Recog until the client signals end-of-stream.
func (s *Server) serveModuleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	sink := &moduleSink{conn: conn}
	r := engine.New(s.model, s.model.Tree, s.decoderCfg, s.newPipeline(), sink)
	r.Begin()

	closed := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			sink.control(controlTerminate)
			_ = conn.Close()
		case <-closed:
		}
	}()
	defer close(closed)

	src := audio.NewNetSource(conn)
	buf := make([]int16, 1600) // 100ms at 16kHz, the teacher's streaming chunk-size idiom
	gate := audio.NewVADGate(audio.VADParamsFromConfig(s.cfg.VAD, s.sampleRate))

	for {
		n, err := src.Read(buf)
		if n > 0 {
			if gated := gate.Push(buf[:n]); len(gated) > 0 {
				if ferr := r.Feed(ctx, gated); ferr != nil {
					s.log.ErrorContext(ctx, "module feed failed", slog.String("remote", remote), slog.String("error", ferr.Error()))
					return
				}
			}
		}

		if err == nil {
			continue
		}

		if errors.Is(err, audio.ErrSourceEnd) {
			if eerr := r.End(ctx); eerr != nil {
				s.log.ErrorContext(ctx, "module end failed", slog.String("remote", remote), slog.String("error", eerr.Error()))
			}

			return
		}

		s.log.WarnContext(ctx, "module read failed", slog.String("remote", remote), slog.String("error", err.Error()))

		return
	}
}

const (
	controlPause     byte = '0'
	controlResume    byte = '1'
	controlTerminate byte = '2'
)

// moduleSink writes tagged result blocks back over a module connection,
// matching output_module.c's <RECOGOUT>/<GRAMINFO> framing, and uses the
// pause/resume control bytes of spec.md §6 to hold the client's input
// while Pass 2 runs on a just-closed segment — the same backpressure the
// original engine applies in non-pipelined (-norealtime) operation.
type moduleSink struct {
	conn net.Conn
	mu   sync.Mutex
}

func (s *moduleSink) control(b byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.conn.Write([]byte{b})
}

func (s *moduleSink) Accept(e engine.Event) {
	switch e.Kind {
	case engine.EventSegmentBoundary:
		s.control(controlPause)
	case engine.EventResult, engine.EventRejected:
		s.control(controlResume)
		s.writeRecogOut(e)
	case engine.EventFailed:
		s.control(controlResume)
		s.writeLine(fmt.Sprintf("<RECOGFAIL SEGMENT=%d STATUS=%d/>", e.Segment, e.Status.Code()))
	}
}

func (s *moduleSink) writeRecogOut(e engine.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Fprintf(s.conn, "<RECOGOUT>\n")
	fmt.Fprintf(s.conn, "  <SHYPO SEGMENT=%d STATUS=%d REJECTED=%t CONF=%.4f WORDS=%q/>\n",
		e.Segment, e.Status.Code(), e.Kind == engine.EventRejected, e.Verdict.Confidence, strings.Join(e.Words, " "))
	fmt.Fprintf(s.conn, "</RECOGOUT>\n")
}

func (s *moduleSink) writeLine(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.conn, line)
}

// ---------------------------------------------------------------------------
// HTTP control surface
// ---------------------------------------------------------------------------

type controlHandler struct {
	model *engine.Model
}

func (s *Server) newControlHandler() http.Handler {
	h := &controlHandler{model: s.model}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/grammars", h.handleGrammars)
	mux.HandleFunc("/grammars/apply", h.handleApply)

	return mux
}

func (h *controlHandler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildVersion(),
	})
}

type grammarInfo struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// handleGrammars lists every loaded grammar (GET) or stages an
// activate/deactivate/delete hook on one (POST), the HTTP counterpart of
// module.c's line-command grammar control — staged, not applied
// immediately, per spec.md §5's between-utterances rule.
func (h *controlHandler) handleGrammars(w http.ResponseWriter, r *http.Request) {
	if h.model.Grammar == nil {
		writeJSON(w, http.StatusOK, []grammarInfo{})
		return
	}

	switch r.Method {
	case http.MethodGet:
		out := make([]grammarInfo, 0, len(h.model.Grammar.All()))
		for _, g := range h.model.Grammar.All() {
			out = append(out, grammarInfo{ID: g.ID, Name: g.Name, Active: g.Active})
		}

		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		h.handleGrammarAction(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *controlHandler) handleGrammarAction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     int    `json:"id"`
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	var err error

	switch req.Action {
	case "activate":
		err = h.model.Grammar.MarkActivate(req.ID)
	case "deactivate":
		err = h.model.Grammar.MarkDeactivate(req.ID)
	case "delete":
		err = h.model.Grammar.MarkDelete(req.ID)
	default:
		writeError(w, http.StatusBadRequest, "unknown action "+req.Action)
		return
	}

	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "pending"})
}

// handleApply folds every staged grammar hook into the global grammar,
// the HTTP counterpart of the original engine's rebuild-on-command flow.
func (h *controlHandler) handleApply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if h.model.Grammar == nil {
		writeError(w, http.StatusConflict, "no grammar manager configured")
		return
	}

	changed := h.model.Grammar.ApplyPending()
	writeJSON(w, http.StatusOK, map[string]bool{"changed": changed})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
