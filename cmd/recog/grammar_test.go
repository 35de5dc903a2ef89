package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGrammarListCmd_PrintsServerResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/grammars" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{{"id": 0, "name": "default", "active": true}})
	}))
	defer srv.Close()

	addr := strings.TrimPrefix(srv.URL, "http://")
	cmd := newGrammarListCmd(&addr)

	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("grammar list RunE: %v", err)
	}
}

func TestGrammarActionCmd_RejectsNonIntegerID(t *testing.T) {
	addr := "127.0.0.1:0"
	cmd := newGrammarActionCmd(&addr, "deactivate")

	if err := cmd.RunE(cmd, []string{"not-an-id"}); err == nil {
		t.Fatal("expected error for non-integer grammar id")
	}
}

func TestGrammarActionCmd_PostsExpectedPayload(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	addr := strings.TrimPrefix(srv.URL, "http://")
	cmd := newGrammarActionCmd(&addr, "activate")

	if err := cmd.RunE(cmd, []string{"3"}); err != nil {
		t.Fatalf("grammar activate RunE: %v", err)
	}
	if gotBody["action"] != "activate" {
		t.Errorf("unexpected action: %v", gotBody["action"])
	}
	if id, ok := gotBody["id"].(float64); !ok || id != 3 {
		t.Errorf("unexpected id: %v", gotBody["id"])
	}
}

func TestGrammarApplyCmd_PrintsAppliedResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"changed": true})
	}))
	defer srv.Close()

	addr := strings.TrimPrefix(srv.URL, "http://")
	cmd := newGrammarApplyCmd(&addr)

	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("grammar apply RunE: %v", err)
	}
}
