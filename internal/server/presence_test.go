package server

import (
	"errors"
	"testing"
	"time"

	"roast-roulette/internal/config"
)

func presenceFixture(t *testing.T) (*Server, *Game, *Player, *Player) {
	t.Helper()
	srv := New(nil, config.Default())
	game, host, err := srv.CreateGame("Ada", 1)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	_, second, err := srv.JoinGame(game.ID, "Bob", 2)
	if err != nil {
		t.Fatalf("join game: %v", err)
	}
	return srv, game, host, second
}

func eventCount(game *Game, kind string) int {
	count := 0
	for _, event := range game.Events {
		if event.Kind == kind {
			count++
		}
	}
	return count
}

func markStale(t *testing.T, srv *Server, game *Game, playerID int) {
	t.Helper()
	past := timeNowUTC().Add(-time.Hour)
	if _, err := srv.store.UpdateGame(game.ID, func(g *Game) error {
		conn, ok := findConnection(g, playerID)
		if !ok {
			return errPlayerNotFound
		}
		conn.LastHeartbeat = past
		return nil
	}); err != nil {
		t.Fatalf("mark stale: %v", err)
	}
}

func TestHeartbeatWhileActiveEmitsNoEvent(t *testing.T) {
	srv, game, host, _ := presenceFixture(t)

	_, reconnected, err := srv.Heartbeat(game.ID, host.Token)
	if err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if reconnected {
		t.Fatal("active player should not be reported as reconnected")
	}
	if got := eventCount(game, eventPlayerReconnected); got != 0 {
		t.Fatalf("expected no reconnect events, got %d", got)
	}
}

func TestHeartbeatSweepsStaleConnectionsOnce(t *testing.T) {
	srv, game, host, second := presenceFixture(t)
	markStale(t, srv, game, second.ID)

	if _, _, err := srv.Heartbeat(game.ID, host.Token); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	conn, _ := findConnection(game, second.ID)
	if conn.Active {
		t.Fatal("expected stale connection to flip inactive")
	}
	if got := eventCount(game, eventPlayerDisconnected); got != 1 {
		t.Fatalf("expected exactly one disconnect event, got %d", got)
	}

	// A second sweep finds nothing new.
	if _, _, err := srv.Heartbeat(game.ID, host.Token); err != nil {
		t.Fatalf("second heartbeat: %v", err)
	}
	if got := eventCount(game, eventPlayerDisconnected); got != 1 {
		t.Fatalf("expected the disconnect event to stay unique, got %d", got)
	}
}

func TestHeartbeatReconnectsExactlyOnce(t *testing.T) {
	srv, game, host, second := presenceFixture(t)
	markStale(t, srv, game, second.ID)
	if _, _, err := srv.Heartbeat(game.ID, host.Token); err != nil {
		t.Fatalf("sweep heartbeat: %v", err)
	}

	_, reconnected, err := srv.Heartbeat(game.ID, second.Token)
	if err != nil {
		t.Fatalf("reconnect heartbeat: %v", err)
	}
	if !reconnected {
		t.Fatal("expected the heartbeat to report a reconnect")
	}
	if got := eventCount(game, eventPlayerReconnected); got != 1 {
		t.Fatalf("expected exactly one reconnect event, got %d", got)
	}

	// Further heartbeats are the cheap path again.
	if _, reconnected, _ := srv.Heartbeat(game.ID, second.Token); reconnected {
		t.Fatal("expected no second reconnect")
	}
	if got := eventCount(game, eventPlayerReconnected); got != 1 {
		t.Fatalf("expected reconnect event count to stay at one, got %d", got)
	}
}

func TestHeartbeatUnknownToken(t *testing.T) {
	srv, game, _, _ := presenceFixture(t)
	if _, _, err := srv.Heartbeat(game.ID, "bogus"); !errors.Is(err, errNotInGame) {
		t.Fatalf("expected not-in-game error, got %v", err)
	}
}

func TestSweepSkipsTheCallingPlayer(t *testing.T) {
	srv, game, host, _ := presenceFixture(t)
	markStale(t, srv, game, host.ID)

	// The host's own heartbeat refreshes its timestamp before the sweep
	// runs, so the host is never swept by its own call.
	if _, reconnected, err := srv.Heartbeat(game.ID, host.Token); err != nil || reconnected {
		t.Fatalf("heartbeat: reconnected=%v err=%v", reconnected, err)
	}
	conn, _ := findConnection(game, host.ID)
	if !conn.Active {
		t.Fatal("expected the calling player to stay active")
	}
}
