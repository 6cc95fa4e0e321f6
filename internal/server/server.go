package server

import (
	"context"
	"net/http"
	"sync"

	"roast-roulette/internal/config"

	"gorm.io/gorm"
)

type Server struct {
	store *Store
	db    *gorm.DB
	ws    *wsHub
	cfg   config.Config

	// generation gateway entry points, swappable in tests
	generateIdeas ideaGenerator
	generatePoem  poemGenerator

	tasksMu sync.Mutex
	tasks   map[string]context.CancelFunc
}

func New(conn *gorm.DB, cfg config.Config) *Server {
	s := &Server{
		store: NewStore(),
		db:    conn,
		ws:    newWSHub(),
		cfg:   cfg,
		tasks: make(map[string]context.CancelFunc),
	}
	s.generateIdeas = s.generateIdeasFromOpenAI
	s.generatePoem = s.generatePoemFromOpenAI
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/games", s.handleCreateGame)
	mux.HandleFunc("GET /api/games", s.handleListGames)
	mux.HandleFunc("GET /api/games/", s.handleGameSubroutes)
	mux.HandleFunc("POST /api/games/", s.handleGameSubroutes)
	mux.HandleFunc("GET /ws/games/", s.handleWebsocket)
	return mux
}
