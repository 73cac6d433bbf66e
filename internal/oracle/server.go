package oracle

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"basketledger/internal/logger"
)

const (
	// maxProposalSize is the maximum reorg request body in bytes.
	maxProposalSize = 1 << 20 // 1 MB
)

// Server exposes one oracle instance over HTTP. The endpoint is stateless
// and unauthenticated: any holder may submit proposals, and nothing about
// a request survives the response.
type Server struct {
	addr   string       // addr is the HTTP listen address
	signer *Signer      // signer verifies and attests proposals
	server *http.Server // server is the underlying HTTP server
}

// NewServer creates an oracle HTTP server around a signer.
func NewServer(addr string, signer *Signer) *Server {
	return &Server{
		addr:   addr,
		signer: signer,
	}
}

// Handler builds the endpoint's route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /reorg", s.handleReorg)
	mux.HandleFunc("GET /identity", s.handleIdentity)
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
		logger.Info("oracle endpoint started", "addr", s.addr)

		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("oracle server error", "error", err)
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

// AttestResponse is the body returned for an accepted proposal.
type AttestResponse struct {
	Signature string `json:"signature"` // Signature is the hex BLS attestation
	Signer    string `json:"signer"`    // Signer is the hex oracle public key
}

// handleReorg handles POST /reorg requests.
func (s *Server) handleReorg(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxProposalSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	var proposal Proposal
	if err := json.Unmarshal(body, &proposal); err != nil {
		writeError(w, http.StatusBadRequest, "invalid proposal: "+err.Error())
		return
	}

	signature, err := s.signer.Attest(&proposal)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrHashMismatch) || errors.Is(err, ErrConservationViolation) {
			status = http.StatusUnprocessableEntity
		}

		logger.Debug("proposal rejected", "error", err)
		writeError(w, status, err.Error())

		return
	}

	writeJSON(w, http.StatusOK, AttestResponse{
		Signature: hex.EncodeToString(signature),
		Signer:    hex.EncodeToString(s.signer.PublicKeyBytes()),
	})
}

// handleIdentity handles GET /identity requests.
func (s *Server) handleIdentity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"signer": hex.EncodeToString(s.signer.PublicKeyBytes()),
	})
}

// handleHealth handles GET /health requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
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
