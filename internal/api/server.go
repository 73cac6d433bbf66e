// Package api exposes the commitment ledger's mutating operations, read
// operations and audit trail over HTTP. Caller identities are accepted as
// request fields; authenticating them is a deferred, separately specified
// concern.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"basketledger/internal/audit"
	"basketledger/internal/ledger"
	"basketledger/internal/logger"
)

const (
	// maxBodySize is the maximum request body in bytes.
	maxBodySize = 1 << 20 // 1 MB
)

// Server is the ledger HTTP API server.
type Server struct {
	addr   string         // addr is the HTTP listen address
	ledger *ledger.Ledger // ledger executes state transitions
	events *audit.Log     // events serves the audit trail
	server *http.Server   // server is the underlying HTTP server
}

// New creates a ledger API server.
func New(addr string, l *ledger.Ledger, events *audit.Log) *Server {
	return &Server{
		addr:   addr,
		ledger: l,
		events: events,
	}
}

// Handler builds the API route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /token/create", s.handleCreateToken)
	mux.HandleFunc("POST /token/master-data", s.handleUpdateMasterData)
	mux.HandleFunc("POST /mint", s.handleMint)
	mux.HandleFunc("POST /transfer", s.handleTransfer)
	mux.HandleFunc("POST /reorg/holder", s.handleReorgHolder)
	mux.HandleFunc("POST /reorg/supply", s.handleReorgSupply)
	mux.HandleFunc("POST /burn", s.handleBurn)

	mux.HandleFunc("GET /oracle-config", s.handleOracleConfig)
	mux.HandleFunc("GET /owner", s.handleOwner)
	mux.HandleFunc("GET /token", s.handleToken)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /events/export", s.handleEventsExport)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /health", s.handleHealth)

	return mux
}

// Start starts the HTTP server in a goroutine.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("ledger api started", "addr", s.addr)

		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("ledger api error", "error", err)
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

// finishMutation maps a ledger result onto the HTTP response.
func finishMutation(w http.ResponseWriter, err error) {
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "committed"})
}

// statusFor maps the ledger error taxonomy onto status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrUnknownToken):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrDuplicateToken),
		errors.Is(err, ledger.ErrDuplicateBasket),
		errors.Is(err, ledger.ErrStaleRevision):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInvalidBasket),
		errors.Is(err, ledger.ErrQuorumNotMet):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
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
