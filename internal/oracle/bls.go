// Package oracle implements the stateless reorg verification role: each
// oracle independently checks a proposal's plaintext against its claimed
// basket hashes, enforces per-token value conservation, and signs the
// proposal digest with its BLS key. Oracles keep no state between calls.
package oracle

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	blst "github.com/supranational/blst/bindings/go"
	"github.com/zeebo/blake3"
)

const (
	// PublicKeySize is the size of a compressed BLS public key in bytes.
	PublicKeySize = 48

	// SignatureSize is the size of a compressed BLS signature in bytes.
	SignatureSize = 96
)

// blsDST is the domain separation tag for oracle attestation signatures.
var blsDST = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_NUL_")

// KeyPair holds an oracle's BLS private/public key pair.
type KeyPair struct {
	secret *blst.SecretKey // secret is the private key
	public *blst.P1Affine  // public is the public key
}

// DeriveFromED25519 derives a deterministic BLS key pair from an Ed25519
// private key, binding the oracle's BLS identity to its node key via
// BLAKE3("basketledger-oracle-keygen" || seed).
func DeriveFromED25519(privKey ed25519.PrivateKey) (*KeyPair, error) {
	seed := privKey.Seed()
	h := blake3.New()
	h.Write([]byte("basketledger-oracle-keygen"))
	h.Write(seed)

	var derived [32]byte
	h.Sum(derived[:0])

	return GenerateKeyFromSeed(derived[:])
}

// GenerateKey creates a new BLS key pair from a random seed.
func GenerateKey() (*KeyPair, error) {
	var ikm [32]byte
	if _, err := rand.Read(ikm[:]); err != nil {
		return nil, fmt.Errorf("generate random seed:\n%w", err)
	}

	return GenerateKeyFromSeed(ikm[:])
}

// GenerateKeyFromSeed creates a BLS key pair from a deterministic seed.
// The seed must be at least 32 bytes.
func GenerateKeyFromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) < 32 {
		return nil, fmt.Errorf("seed must be at least 32 bytes")
	}

	secret := blst.KeyGen(seed)
	if secret == nil {
		return nil, fmt.Errorf("failed to generate BLS key")
	}

	public := new(blst.P1Affine).From(secret)

	return &KeyPair{
		secret: secret,
		public: public,
	}, nil
}

// Sign creates a BLS signature over the message.
func (k *KeyPair) Sign(message []byte) []byte {
	sig := new(blst.P2Affine).Sign(k.secret, message, blsDST)
	return sig.Compress()
}

// PublicKeyBytes returns the compressed public key bytes.
func (k *KeyPair) PublicKeyBytes() []byte {
	return k.public.Compress()
}

// Verify checks a BLS signature against a message and public key.
func Verify(signature, message, publicKey []byte) bool {
	if len(signature) != SignatureSize || len(publicKey) != PublicKeySize {
		return false
	}

	sig := new(blst.P2Affine).Uncompress(signature)
	if sig == nil {
		return false
	}

	pk := new(blst.P1Affine).Uncompress(publicKey)
	if pk == nil {
		return false
	}

	return sig.Verify(true, pk, true, message, blsDST)
}
