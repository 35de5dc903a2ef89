package server_test

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/example/go-recog/internal/acmodel"
	"github.com/example/go-recog/internal/config"
	"github.com/example/go-recog/internal/dict"
	"github.com/example/go-recog/internal/engine"
	"github.com/example/go-recog/internal/feat"
	"github.com/example/go-recog/internal/lm"
	"github.com/example/go-recog/internal/search"
	"github.com/example/go-recog/internal/server"
	"github.com/example/go-recog/internal/stack"
)

// testDecoderConfig is a small but workable Search/Decoder tuning, mirroring
// internal/engine's own test fixture so a real Pass 1/Pass 2 run completes
// rather than pruning everything at a zero-value beam width.
func testDecoderConfig() engine.Config {
	return engine.Config{
		Search:              search.Config{BeamWidth: 10, GaussMode: "none", GaussTopK: 1},
		Decoder:             stack.Config{MaxStackDepth: 32, MaxSentences: 1, MaxPops: 200, LookupRange: 4},
		ShortPauseMinFrames: 1000,
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	addr := ln.Addr().String()
	ln.Close()

	return addr
}

func onePhoneHMM(name string, mean float64) *acmodel.PhysicalHMM {
	d := &acmodel.Density{Mean: []float64{mean, mean, mean}, Var: &acmodel.Variance{Vec: []float64{1, 1, 1}}}
	st := &acmodel.State{Name: name, D: []*acmodel.Density{d}, Weight: []float64{0}}
	tr := &acmodel.Transition{NumStates: 2, A: [][]float64{{-0.1, -0.1}, {0, 0}}}
	return &acmodel.PhysicalHMM{Name: name, States: []*acmodel.State{st}, Trans: tr}
}

func testModel(t *testing.T) *engine.Model {
	t.Helper()

	hmm := acmodel.NewHMMSet()
	lo := onePhoneHMM("lo", 0.0)
	hmm.Physical = []*acmodel.PhysicalHMM{lo}
	hmm.ByName["lo"] = lo

	d := &dict.Dictionary{Entries: []*dict.Entry{{Name: "LO", Output: "lo", Phones: []string{"lo"}}}}

	model, err := engine.NewModel(hmm, d)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	if err := model.BuildTree(); err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	model.NGram = lm.NewNGram(1)
	model.NGram.SetUnigram(0, -1.0)
	model.Tree.ComputeFactoring(model.NGram)
	model.ShortPauseWordID = -1
	model.Grammar = lm.NewManager()
	model.Grammar.Add("default", d, nil)

	return model
}

func testPipeline() *feat.Pipeline {
	cfg := feat.Config{
		SampleRate: 8000, FrameSizeMS: 25, FrameShiftMS: 10,
		NumFilters: 8, NumCeps: 1, UseEnergy: false, UseC0: false,
		DeltaWindow: 1, AccelWindow: 1, CepLifter: 0,
	}
	return feat.NewPipeline(cfg, 0.97)
}

func waitHealthy(t *testing.T, addr string) {
	t.Helper()

	client := &http.Client{Timeout: 2 * time.Second}
	var err error
	for range 50 {
		var resp *http.Response
		resp, err = client.Get(fmt.Sprintf("http://%s/health", addr))
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("server never became healthy: %v", err)
}

func TestServer_HealthAndGracefulShutdown(t *testing.T) {
	addr := freeAddr(t)
	cfg := config.DefaultConfig()
	cfg.Server.ListenAddr = addr
	cfg.Server.ModuleAddr = ""

	model := testModel(t)
	s := server.New(cfg, model, testDecoderConfig(), testPipeline).WithShutdownTimeout(2 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()

	waitHealthy(t, addr)

	resp, err := http.Get(fmt.Sprintf("http://%s/health", addr))
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode /health: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q; want ok", body["status"])
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Start() returned error on shutdown: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return within 5s of context cancel")
	}
}

func TestServer_GrammarListAndApply(t *testing.T) {
	addr := freeAddr(t)
	cfg := config.DefaultConfig()
	cfg.Server.ListenAddr = addr
	cfg.Server.ModuleAddr = ""

	model := testModel(t)
	s := server.New(cfg, model, testDecoderConfig(), testPipeline)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = s.Start(ctx) }()
	waitHealthy(t, addr)

	resp, err := http.Get(fmt.Sprintf("http://%s/grammars", addr))
	if err != nil {
		t.Fatalf("GET /grammars: %v", err)
	}
	var list []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode /grammars: %v", err)
	}
	resp.Body.Close()

	if len(list) != 1 || list[0]["name"] != "default" {
		t.Fatalf("grammar list = %v; want one grammar named default", list)
	}

	body := fmt.Sprintf(`{"id":%d,"action":"deactivate"}`, int(list[0]["id"].(float64)))
	resp, err = http.Post(fmt.Sprintf("http://%s/grammars", addr), "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /grammars: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /grammars status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err = http.Post(fmt.Sprintf("http://%s/grammars/apply", addr), "application/json", nil)
	if err != nil {
		t.Fatalf("POST /grammars/apply: %v", err)
	}
	defer resp.Body.Close()

	var applyResult map[string]bool
	if err := json.NewDecoder(resp.Body).Decode(&applyResult); err != nil {
		t.Fatalf("decode /grammars/apply: %v", err)
	}
	if !applyResult["changed"] {
		t.Error("expected apply to report a change after deactivating the only grammar")
	}

	if model.Grammar.Active() != nil && len(model.Grammar.Active()) != 0 {
		t.Errorf("expected no active grammars after deactivate+apply, got %d", len(model.Grammar.Active()))
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"info":    slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"ERROR":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := server.ParseLogLevel(in)
		if err != nil {
			t.Errorf("ParseLogLevel(%q) unexpected error: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseLogLevel(%q) = %v; want %v", in, got, want)
		}
	}

	if _, err := server.ParseLogLevel("bogus"); err == nil {
		t.Error("expected error for unknown log level")
	}
}

// writeNetFrame writes one audio-net-source record: a 4-byte big-endian
// length followed by big-endian 16-bit PCM samples. A negative length
// (no payload) signals end-of-stream per spec.md §6.
func writeNetFrame(w io.Writer, samples []int16) error {
	if err := binary.Write(w, binary.BigEndian, int32(len(samples)*2)); err != nil {
		return err
	}
	for _, s := range samples {
		if err := binary.Write(w, binary.BigEndian, s); err != nil {
			return err
		}
	}
	return nil
}

func writeEndOfStream(w io.Writer) error {
	return binary.Write(w, binary.BigEndian, int32(-1))
}

func TestServer_ModuleConnection_EndOfStreamClosesCleanly(t *testing.T) {
	addr := freeAddr(t)
	cfg := config.DefaultConfig()
	cfg.Server.ListenAddr = ""
	cfg.Server.ModuleAddr = addr

	model := testModel(t)
	s := server.New(cfg, model, testDecoderConfig(), testPipeline)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = s.Start(ctx) }()

	var conn net.Conn
	var err error
	for range 50 {
		conn, err = net.Dial("tcp", addr)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial module listener: %v", err)
	}
	defer conn.Close()

	silence := make([]int16, 200) // one 25ms frame at 8kHz
	if err := writeNetFrame(conn, silence); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	if err := writeEndOfStream(conn); err != nil {
		t.Fatalf("write end-of-stream: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	buf := make([]byte, 4096)
	for {
		_, rerr := conn.Read(buf)
		if rerr != nil {
			break
		}
	}
}
