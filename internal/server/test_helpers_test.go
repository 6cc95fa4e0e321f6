package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"roast-roulette/internal/config"
)

func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test; listen unavailable: %v", err)
	}
	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: handler},
	}
	ts.Start()
	return ts
}

// fastConfig shrinks every timer so a full round fits in a few seconds.
func fastConfig() config.Config {
	cfg := config.Default()
	cfg.UploadSeconds = 2
	cfg.SelectTargetSeconds = 1
	cfg.VoteSeconds = 1
	cfg.GenerateTimeoutSeconds = 2
	cfg.PhotoPollMillis = 25
	cfg.IdeasPerRound = 3
	cfg.TopIdeas = 2
	return cfg
}

func stubGenerators(srv *Server) {
	srv.generateIdeas = func(_ context.Context, _ PhotoEntry, count int, _ string) ([]string, error) {
		ideas := make([]string, count)
		for i := range ideas {
			ideas[i] = "stub roast " + string(rune('a'+i))
		}
		return ideas, nil
	}
	srv.generatePoem = func(_ context.Context, _ PhotoEntry, _ []string, _ string) (string, error) {
		return "stub poem", nil
	}
}

func doRequest(t *testing.T, ts *httptest.Server, method, path string, body map[string]any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	return body
}

func createGame(t *testing.T, ts *httptest.Server, name string) (gameID, token string) {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/games", map[string]any{
		"name":   name,
		"avatar": 1,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create game: expected status %d, got %d", http.StatusCreated, resp.StatusCode)
	}
	body := decodeBody(t, resp)
	return assertString(t, body["game_id"]), assertString(t, body["player_token"])
}

func joinPlayer(t *testing.T, ts *httptest.Server, gameID, name string) string {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/games/"+gameID+"/join", map[string]any{
		"name":   name,
		"avatar": 2,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("join game: expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	body := decodeBody(t, resp)
	return assertString(t, body["player_token"])
}

func assertString(t *testing.T, value any) string {
	t.Helper()
	str, ok := value.(string)
	if !ok || str == "" {
		t.Fatalf("expected non-empty string, got %#v", value)
	}
	return str
}

// waitFor polls cond until it reports true or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
