package basketstore

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"basketledger/internal/commitment"
	"basketledger/internal/logger"
)

const (
	// maxBodySize is the maximum request body in bytes.
	maxBodySize = 1 << 20 // 1 MB
)

// Server exposes the store over HTTP for holders and token operators.
type Server struct {
	addr   string       // addr is the HTTP listen address
	store  *Store       // store is the backing data store
	server *http.Server // server is the underlying HTTP server
}

// NewServer creates a store HTTP server.
func NewServer(addr string, store *Store) *Server {
	return &Server{
		addr:  addr,
		store: store,
	}
}

// Handler builds the store's route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /basket", s.handlePutBasket)
	mux.HandleFunc("GET /basket", s.handleGetBasket)
	mux.HandleFunc("POST /token", s.handleAppendMasterData)
	mux.HandleFunc("GET /token", s.handleHistory)
	mux.HandleFunc("GET /health", s.handleHealth)

	return mux
}

// Start starts the HTTP server in a goroutine.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("basket store started", "addr", s.addr)

		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("basket store error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// basketEntry is the wire shape of one stored basket.
type basketEntry struct {
	Basket commitment.Hash       `json:"basket"`
	Data   commitment.BasketData `json:"data"`
}

// handlePutBasket handles PUT /basket requests.
func (s *Server) handlePutBasket(w http.ResponseWriter, r *http.Request) {
	var entry basketEntry
	if !decodeBody(w, r, &entry) {
		return
	}

	if err := s.store.Put(entry.Basket, entry.Data); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"basket": entry.Basket.String()})
}

// handleGetBasket handles GET /basket?basket-hash=H requests.
func (s *Server) handleGetBasket(w http.ResponseWriter, r *http.Request) {
	basket, err := commitment.ParseHash(r.URL.Query().Get("basket-hash"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid basket-hash")
		return
	}

	data, found, err := s.store.Get(basket)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if !found {
		writeError(w, http.StatusNotFound, "basket not found")
		return
	}

	writeJSON(w, http.StatusOK, basketEntry{Basket: basket, Data: data})
}

// appendRequest is the wire shape of a master-data append.
type appendRequest struct {
	TokenID string          `json:"tokenId"`
	Data    json.RawMessage `json:"data"`
}

// handleAppendMasterData handles POST /token requests.
func (s *Server) handleAppendMasterData(w http.ResponseWriter, r *http.Request) {
	var req appendRequest
	if !decodeBody(w, r, &req) {
		return
	}

	entry, err := s.store.AppendMasterData(req.TokenID, req.Data)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// handleHistory handles GET /token?token-id=T requests.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	tokenID := r.URL.Query().Get("token-id")
	if tokenID == "" {
		writeError(w, http.StatusBadRequest, "missing token-id")
		return
	}

	entries, err := s.store.History(tokenID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if entries == nil {
		entries = []HistoryEntry{}
	}

	writeJSON(w, http.StatusOK, entries)
}

// handleHealth handles GET /health requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeBody reads and decodes a JSON request body, writing the error
// response itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return false
	}

	if err := json.Unmarshal(body, target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return false
	}

	return true
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
