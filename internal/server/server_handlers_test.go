package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"roast-roulette/internal/config"
)

func TestCreateGameHandler(t *testing.T) {
	srv := New(nil, config.Default())
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(ts.Close)

	resp := doRequest(t, ts, http.MethodPost, "/api/games", map[string]any{
		"name":   "Ada",
		"avatar": 3,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, resp.StatusCode)
	}
	body := decodeBody(t, resp)
	assertString(t, body["game_id"])
	assertString(t, body["join_code"])
	assertString(t, body["player_token"])
	if isHost, ok := body["is_host"].(bool); !ok || !isHost {
		t.Fatalf("expected the creator to be host, got %#v", body["is_host"])
	}
}

func TestCreateGameRejectsShortName(t *testing.T) {
	srv := New(nil, config.Default())
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(ts.Close)

	resp := doRequest(t, ts, http.MethodPost, "/api/games", map[string]any{"name": "Al"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestJoinByCodeAndDuplicateName(t *testing.T) {
	srv := New(nil, config.Default())
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(ts.Close)

	gameID, _ := createGame(t, ts, "Ada")

	joinCode := ""
	inspect(t, srv, gameID, func(g *Game) { joinCode = g.JoinCode })
	joinPlayer(t, ts, joinCode, "Bob")

	resp := doRequest(t, ts, http.MethodPost, "/api/games/"+gameID+"/join", map[string]any{
		"name": "bob",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected status %d for duplicate name, got %d", http.StatusConflict, resp.StatusCode)
	}

	resp = doRequest(t, ts, http.MethodPost, "/api/games/XXXX/join", map[string]any{
		"name": "Eve",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d for unknown game, got %d", http.StatusNotFound, resp.StatusCode)
	}
}

func TestSnapshotHandler(t *testing.T) {
	srv := New(nil, config.Default())
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(ts.Close)

	gameID, _ := createGame(t, ts, "Ada")
	joinPlayer(t, ts, gameID, "Bob")

	resp := doRequest(t, ts, http.MethodGet, "/api/games/"+gameID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["status"] != statusWaiting {
		t.Fatalf("expected waiting status, got %#v", body["status"])
	}
	players, ok := body["players"].([]any)
	if !ok || len(players) != 2 {
		t.Fatalf("expected 2 players in snapshot, got %#v", body["players"])
	}
	if _, present := body["round"]; present {
		t.Fatal("expected no round in a waiting game's snapshot")
	}
}

func TestStartRoundHandlerHostOnly(t *testing.T) {
	srv := New(nil, fastConfig())
	stubGenerators(srv)
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(ts.Close)

	gameID, hostToken := createGame(t, ts, "Ada")
	bobToken := joinPlayer(t, ts, gameID, "Bob")

	resp := doRequest(t, ts, http.MethodPost, "/api/games/"+gameID+"/start", map[string]any{
		"player_token": bobToken,
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected status %d for non-host start, got %d", http.StatusConflict, resp.StatusCode)
	}

	resp = doRequest(t, ts, http.MethodPost, "/api/games/"+gameID+"/start", map[string]any{
		"player_token": hostToken,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if round, ok := body["round"].(float64); !ok || round != 1 {
		t.Fatalf("expected round 1, got %#v", body["round"])
	}
}

func TestPhotoAndVoteHandlersOutOfPhase(t *testing.T) {
	srv := New(nil, config.Default())
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(ts.Close)

	gameID, hostToken := createGame(t, ts, "Ada")

	resp := doRequest(t, ts, http.MethodPost, "/api/games/"+gameID+"/photos", map[string]any{
		"player_token": hostToken,
		"photo_key":    "photos/a.jpg",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected status %d for photo outside a round, got %d", http.StatusConflict, resp.StatusCode)
	}

	resp = doRequest(t, ts, http.MethodPost, "/api/games/"+gameID+"/votes", map[string]any{
		"player_token": hostToken,
		"idea_id":      1,
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected status %d for vote outside a round, got %d", http.StatusConflict, resp.StatusCode)
	}
}

func TestHeartbeatHandler(t *testing.T) {
	srv := New(nil, config.Default())
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(ts.Close)

	gameID, hostToken := createGame(t, ts, "Ada")

	resp := doRequest(t, ts, http.MethodPost, "/api/games/"+gameID+"/heartbeat", map[string]any{
		"player_token": hostToken,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if reconnected, ok := body["reconnected"].(bool); !ok || reconnected {
		t.Fatalf("expected reconnected=false, got %#v", body["reconnected"])
	}

	resp = doRequest(t, ts, http.MethodPost, "/api/games/"+gameID+"/heartbeat", map[string]any{
		"player_token": "bogus",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d for unknown token, got %d", http.StatusNotFound, resp.StatusCode)
	}
}

func TestFinishHandler(t *testing.T) {
	srv := New(nil, config.Default())
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(ts.Close)

	gameID, hostToken := createGame(t, ts, "Ada")

	resp := doRequest(t, ts, http.MethodPost, "/api/games/"+gameID+"/finish", map[string]any{
		"player_token": hostToken,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["status"] != statusFinished {
		t.Fatalf("expected finished status, got %#v", body["status"])
	}

	// Ending twice is a conflict.
	resp = doRequest(t, ts, http.MethodPost, "/api/games/"+gameID+"/finish", map[string]any{
		"player_token": hostToken,
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected status %d, got %d", http.StatusConflict, resp.StatusCode)
	}
}

func TestEventsHandler(t *testing.T) {
	srv := New(nil, config.Default())
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(ts.Close)

	gameID, _ := createGame(t, ts, "Ada")
	joinPlayer(t, ts, gameID, "Bob")

	resp := doRequest(t, ts, http.MethodGet, "/api/games/"+gameID+"/events", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	body := decodeBody(t, resp)
	events, ok := body["events"].([]any)
	if !ok {
		t.Fatalf("expected events list, got %#v", body["events"])
	}
	joins := 0
	for _, raw := range events {
		event, ok := raw.(map[string]any)
		if !ok {
			t.Fatalf("expected event object, got %#v", raw)
		}
		if event["kind"] == eventPlayerJoined {
			joins++
		}
	}
	if joins != 2 {
		t.Fatalf("expected 2 join events, got %d", joins)
	}
}

func TestEventsHandlerReturnsOnlyTheTail(t *testing.T) {
	srv := New(nil, config.Default())
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(ts.Close)

	gameID, _ := createGame(t, ts, "Ada")
	if _, err := srv.store.UpdateGame(gameID, func(g *Game) error {
		for i := 0; i < maxEventsReturned+25; i++ {
			appendEvent(g, eventVoteToggled, 0)
		}
		appendEvent(g, eventGameFinished, 0)
		return nil
	}); err != nil {
		t.Fatalf("seed events: %v", err)
	}

	resp := doRequest(t, ts, http.MethodGet, "/api/games/"+gameID+"/events", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	body := decodeBody(t, resp)
	events, ok := body["events"].([]any)
	if !ok {
		t.Fatalf("expected events list, got %#v", body["events"])
	}
	if len(events) != maxEventsReturned {
		t.Fatalf("expected %d events, got %d", maxEventsReturned, len(events))
	}
	last, ok := events[len(events)-1].(map[string]any)
	if !ok {
		t.Fatalf("expected event object, got %#v", events[len(events)-1])
	}
	if last["kind"] != eventGameFinished {
		t.Fatalf("expected the newest event last, got %#v", last["kind"])
	}
}

// Hammers reads and writes against a game while its round task is mutating
// state, including the abandonment that truncates the round list. Run under
// the race detector this covers the handlers reading game state only while
// holding the store lock.
func TestConcurrentRequestsDuringRound(t *testing.T) {
	srv := New(nil, fastConfig())
	stubGenerators(srv)
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(ts.Close)

	gameID, hostToken := createGame(t, ts, "Ada")
	joinPlayer(t, ts, gameID, "Bob")

	resp := doRequest(t, ts, http.MethodPost, "/api/games/"+gameID+"/start", map[string]any{
		"player_token": hostToken,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start round: expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	stop := make(chan struct{})
	stopStart := make(chan struct{})
	var wg sync.WaitGroup
	hit := func(done <-chan struct{}, method, path string, body map[string]any) {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			var reader io.Reader
			if body != nil {
				payload, err := json.Marshal(body)
				if err != nil {
					return
				}
				reader = bytes.NewReader(payload)
			}
			req, err := http.NewRequest(method, ts.URL+path, reader)
			if err != nil {
				return
			}
			req.Header.Set("Content-Type", "application/json")
			res, err := ts.Client().Do(req)
			if err != nil {
				return
			}
			_, _ = io.Copy(io.Discard, res.Body)
			_ = res.Body.Close()
		}
	}
	wg.Add(4)
	go hit(stop, http.MethodGet, "/api/games/"+gameID, nil)
	go hit(stop, http.MethodGet, "/api/games/"+gameID+"/events", nil)
	go hit(stop, http.MethodPost, "/api/games/"+gameID+"/heartbeat", map[string]any{
		"player_token": hostToken,
	})
	go hit(stopStart, http.MethodPost, "/api/games/"+gameID+"/start", map[string]any{
		"player_token": hostToken,
	})
	defer func() {
		close(stop)
		wg.Wait()
	}()

	// Restart the round in a bounded burst, then stop the /start hammer so
	// the last round's upload window can lapse while the read and heartbeat
	// hammers stay in flight.
	time.Sleep(250 * time.Millisecond)
	close(stopStart)

	// Nobody uploads a photo, so the upload window lapses and the round is
	// abandoned while the requests above are in flight.
	waitFor(t, 10*time.Second, "round abandonment", func() bool {
		abandoned := false
		_ = srv.viewGame(gameID, func(g *Game) {
			abandoned = eventCount(g, eventRoundAbandoned) > 0
		})
		return abandoned
	})
}

func TestListGamesHandler(t *testing.T) {
	srv := New(nil, config.Default())
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(ts.Close)

	createGame(t, ts, "Ada")
	createGame(t, ts, "Bob")

	resp := doRequest(t, ts, http.MethodGet, "/api/games", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	body := decodeBody(t, resp)
	games, ok := body["games"].([]any)
	if !ok || len(games) != 2 {
		t.Fatalf("expected 2 games, got %#v", body["games"])
	}
}

func TestUnknownActionIs404(t *testing.T) {
	srv := New(nil, config.Default())
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(ts.Close)

	gameID, _ := createGame(t, ts, "Ada")
	resp := doRequest(t, ts, http.MethodPost, "/api/games/"+gameID+"/explode", map[string]any{})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}
}
