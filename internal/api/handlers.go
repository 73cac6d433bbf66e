package api

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"

	"basketledger/internal/commitment"
	"basketledger/internal/ledger"
)

// createTokenRequest is the wire shape of POST /token/create.
type createTokenRequest struct {
	Caller       ledger.Address  `json:"caller"`
	TokenID      string          `json:"tokenId"`
	SupplyBasket commitment.Hash `json:"supplyBasket"`
	MasterDataFp commitment.Hash `json:"masterDataFp"`
	Ref          string          `json:"ref"`
}

// handleCreateToken handles POST /token/create requests.
func (s *Server) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	var req createTokenRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := s.ledger.CreateToken(req.Caller, req.TokenID, req.SupplyBasket, req.MasterDataFp, req.Ref)
	finishMutation(w, err)
}

// updateMasterDataRequest is the wire shape of POST /token/master-data.
type updateMasterDataRequest struct {
	Caller       ledger.Address  `json:"caller"`
	TokenID      string          `json:"tokenId"`
	FromRevision uint64          `json:"fromRevision"`
	FromFp       commitment.Hash `json:"fromFp"`
	ToFp         commitment.Hash `json:"toFp"`
	Ref          string          `json:"ref"`
}

// handleUpdateMasterData handles POST /token/master-data requests.
func (s *Server) handleUpdateMasterData(w http.ResponseWriter, r *http.Request) {
	var req updateMasterDataRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := s.ledger.UpdateMasterData(req.Caller, req.TokenID, req.FromRevision, req.FromFp, req.ToFp, req.Ref)
	finishMutation(w, err)
}

// basketBatchRequest is the shared wire shape of mint, transfer and burn.
type basketBatchRequest struct {
	Caller   ledger.Address    `json:"caller"`
	Baskets  []commitment.Hash `json:"baskets"`
	Receiver ledger.Address    `json:"receiver"`
	Ref      string            `json:"ref"`
}

// handleMint handles POST /mint requests.
func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req basketBatchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	finishMutation(w, s.ledger.Mint(req.Caller, req.Baskets, req.Receiver, req.Ref))
}

// handleTransfer handles POST /transfer requests.
func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req basketBatchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	finishMutation(w, s.ledger.Transfer(req.Caller, req.Baskets, req.Receiver, req.Ref))
}

// handleBurn handles POST /burn requests.
func (s *Server) handleBurn(w http.ResponseWriter, r *http.Request) {
	var req basketBatchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	finishMutation(w, s.ledger.Burn(req.Caller, req.Baskets, req.Ref))
}

// signatureWire is one oracle attestation on the wire, hex encoded.
type signatureWire struct {
	Signer string `json:"signer"`
	Sig    string `json:"sig"`
}

// decode parses the hex fields.
func (s signatureWire) decode() (ledger.Signature, error) {
	signer, err := hex.DecodeString(s.Signer)
	if err != nil {
		return ledger.Signature{}, fmt.Errorf("decode signer hex:\n%w", err)
	}

	sig, err := hex.DecodeString(s.Sig)
	if err != nil {
		return ledger.Signature{}, fmt.Errorf("decode signature hex:\n%w", err)
	}

	return ledger.Signature{Signer: signer, Sig: sig}, nil
}

// reorgRequest is the wire shape of both reorg routes.
type reorgRequest struct {
	Caller     ledger.Address    `json:"caller"`
	Signatures []signatureWire   `json:"signatures"`
	BasketsIn  []commitment.Hash `json:"basketsIn"`
	BasketsOut []commitment.Hash `json:"basketsOut"`
	Ref        string            `json:"ref"`
}

// decodeSignatures parses every attestation in the request.
func (r *reorgRequest) decodeSignatures() ([]ledger.Signature, error) {
	sigs := make([]ledger.Signature, len(r.Signatures))

	for i, wire := range r.Signatures {
		sig, err := wire.decode()
		if err != nil {
			return nil, fmt.Errorf("signature %d: %w", i, err)
		}

		sigs[i] = sig
	}

	return sigs, nil
}

// handleReorgHolder handles POST /reorg/holder requests.
func (s *Server) handleReorgHolder(w http.ResponseWriter, r *http.Request) {
	var req reorgRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sigs, err := req.decodeSignatures()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	finishMutation(w, s.ledger.ReorgHolderBaskets(req.Caller, sigs, req.BasketsIn, req.BasketsOut, req.Ref))
}

// handleReorgSupply handles POST /reorg/supply requests.
func (s *Server) handleReorgSupply(w http.ResponseWriter, r *http.Request) {
	var req reorgRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sigs, err := req.decodeSignatures()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	finishMutation(w, s.ledger.ReorgSupplyBaskets(req.Caller, sigs, req.BasketsIn, req.BasketsOut, req.Ref))
}

// handleOracleConfig handles GET /oracle-config requests.
func (s *Server) handleOracleConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.ledger.OracleConfig()

	oracles := make([]string, 0, len(cfg.Oracles()))
	for _, pk := range cfg.Oracles() {
		oracles = append(oracles, hex.EncodeToString(pk))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"minNumberOfOracles": cfg.MinOracles(),
		"oracles":            oracles,
	})
}

// handleOwner handles GET /owner?basket-hash=H requests.
func (s *Server) handleOwner(w http.ResponseWriter, r *http.Request) {
	basket, err := commitment.ParseHash(r.URL.Query().Get("basket-hash"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid basket-hash")
		return
	}

	owner, err := s.ledger.Owner(basket)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	state, err := s.ledger.BasketState(basket)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"basket": basket.String(),
		"owner":  owner.String(),
		"state":  state.String(),
	})
}

// handleToken handles GET /token?token-id=T requests.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	tokenID := r.URL.Query().Get("token-id")
	if tokenID == "" {
		writeError(w, http.StatusBadRequest, "missing token-id")
		return
	}

	revision, err := s.ledger.TokenMasterDataRevision(tokenID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	fp, err := s.ledger.TokenMasterDataFp(tokenID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	supply, err := s.ledger.TotalSupply(tokenID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tokenId":            tokenID,
		"masterDataRevision": revision,
		"masterDataFp":       fp.String(),
		"totalSupplyBasket":  supply.String(),
	})
}

// handleEvents handles GET /events?from=N&limit=M requests.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	from, err := queryUint(r, "from", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from")
		return
	}

	limit, err := queryUint(r, "limit", 100)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	events, err := s.events.Range(from, int(limit))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, events)
}

// handleEventsExport handles GET /events/export requests, streaming the
// compressed audit trail for indexers.
func (s *Server) handleEventsExport(w http.ResponseWriter, r *http.Request) {
	from, err := queryUint(r, "from", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from")
		return
	}

	w.Header().Set("Content-Type", "application/zstd")

	if err := s.events.Export(w, from); err != nil {
		// Headers are gone; the truncated stream is the signal.
		return
	}
}

// handleStatus handles GET /status requests, the summary clients poll at
// startup.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	cfg := s.ledger.OracleConfig()

	writeJSON(w, http.StatusOK, map[string]any{
		"minNumberOfOracles": cfg.MinOracles(),
		"oracles":            len(cfg.Oracles()),
		"events":             s.events.Len(),
	})
}

// handleHealth handles GET /health requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"events": s.events.Len(),
	})
}

// queryUint parses an optional unsigned integer query parameter.
func queryUint(r *http.Request, name string, fallback uint64) (uint64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}

	return strconv.ParseUint(raw, 10, 64)
}
