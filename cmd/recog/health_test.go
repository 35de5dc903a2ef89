package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/example/go-recog/internal/config"
)

func TestHealthCmd_SucceedsAgainstHealthyServer(t *testing.T) {
	orig := activeCfg
	t.Cleanup(func() { activeCfg = orig })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	activeCfg = config.Config{
		Paths:  config.PathsConfig{AcousticModel: "/some/model.bin"},
		Server: config.ServerConfig{ListenAddr: strings.TrimPrefix(srv.URL, "http://")},
	}

	cmd := newHealthCmd()
	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("health RunE: %v", err)
	}
}

func TestHealthCmd_FailsWhenServerUnreachable(t *testing.T) {
	orig := activeCfg
	t.Cleanup(func() { activeCfg = orig })

	activeCfg = config.Config{
		Paths:  config.PathsConfig{AcousticModel: "/some/model.bin"},
		Server: config.ServerConfig{ListenAddr: "127.0.0.1:1"},
	}

	cmd := newHealthCmd()
	if err := cmd.RunE(cmd, nil); err == nil {
		t.Fatal("expected error when no server is listening")
	}
}
