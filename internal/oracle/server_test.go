package oracle

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newTestServer creates an oracle server with a fresh key.
func newTestServer(t *testing.T) (*Server, *Signer) {
	t.Helper()

	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	signer := NewSigner(key)

	return NewServer(":0", signer), signer
}

// postReorg posts a proposal to the handler and returns the recorder.
func postReorg(t *testing.T, server *Server, proposal *Proposal) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(proposal)
	if err != nil {
		t.Fatalf("marshal proposal: %v", err)
	}

	req := httptest.NewRequest("POST", "/reorg", bytes.NewReader(body))
	w := httptest.NewRecorder()

	server.handleReorg(w, req)

	return w
}

// TestHandleReorgSignsValidProposal tests the attest endpoint happy path.
func TestHandleReorgSignsValidProposal(t *testing.T) {
	server, signer := newTestServer(t)

	proposal := &Proposal{
		In:  []Entry{entry(1, "gold", 100)},
		Out: []Entry{entry(2, "gold", 40), entry(3, "gold", 60)},
	}

	w := postReorg(t, server, proposal)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp AttestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}

	sig, err := hex.DecodeString(resp.Signature)
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}

	digest := proposal.Digest()
	if !Verify(sig, digest[:], signer.PublicKeyBytes()) {
		t.Error("returned signature should verify over the digest")
	}

	if resp.Signer != hex.EncodeToString(signer.PublicKeyBytes()) {
		t.Error("response should carry the signer's public key")
	}
}

// TestHandleReorgRejectsViolation tests the rejection status code.
func TestHandleReorgRejectsViolation(t *testing.T) {
	server, _ := newTestServer(t)

	proposal := &Proposal{
		In:  []Entry{entry(1, "gold", 100)},
		Out: []Entry{entry(2, "gold", 99)},
	}

	w := postReorg(t, server, proposal)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status: got %d, want 422", w.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}

	if resp["error"] == "" {
		t.Error("rejection should carry an error message")
	}
}

// TestHandleReorgRejectsMalformedBody tests malformed JSON handling.
func TestHandleReorgRejectsMalformedBody(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest("POST", "/reorg", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()

	server.handleReorg(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

// TestHandleIdentity tests the identity endpoint.
func TestHandleIdentity(t *testing.T) {
	server, signer := newTestServer(t)

	req := httptest.NewRequest("GET", "/identity", nil)
	w := httptest.NewRecorder()

	server.handleIdentity(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}

	if resp["signer"] != hex.EncodeToString(signer.PublicKeyBytes()) {
		t.Error("identity should return the signer's public key")
	}
}
