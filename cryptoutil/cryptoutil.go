// Package cryptoutil wraps the SHA-256 and ECDSA-P256 primitives used
// throughout the data plane: digesting canonical byte forms, and signing /
// verifying those digests with PEM-encoded PKCS8 private keys and
// SubjectPublicKeyInfo public keys, per spec §6.
package cryptoutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"

	"github.com/ezchain/ezchain-core/kind"
)

// Hash256 returns the SHA-256 digest of data.
func Hash256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// HashHex returns the lowercase hex-encoded SHA-256 digest of data.
func HashHex(data []byte) string {
	h := Hash256(data)
	return hexEncode(h[:])
}

const hexDigits = "0123456789abcdef"

func hexEncode(b []byte) string {
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexDigits[c>>4]
		out[i*2+1] = hexDigits[c&0x0f]
	}
	return string(out)
}

// PrivateKey wraps a loaded P-256 private key. Callers should call Wipe once
// done, per spec §5's scoped-acquisition resource lifecycle: key material is
// materialized immediately before use and best-effort zeroized afterward.
type PrivateKey struct {
	key *ecdsa.PrivateKey
	raw []byte // the PEM bytes, kept only to zero them on Wipe
}

// LoadPrivateKeyPEM parses a PEM-encoded PKCS8 ECDSA private key. Returns a
// kind.Crypto error on any parse failure.
func LoadPrivateKeyPEM(pemBytes []byte) (*PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, kind.New(kind.Crypto, "private key is not valid PEM")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, kind.Wrap(kind.Crypto, err, "failed to parse PKCS8 private key")
	}
	ecKey, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, kind.New(kind.Crypto, "private key is not an ECDSA key")
	}
	if ecKey.Curve != elliptic.P256() {
		return nil, kind.New(kind.Crypto, "private key is not on curve P-256")
	}
	raw := make([]byte, len(pemBytes))
	copy(raw, pemBytes)
	return &PrivateKey{key: ecKey, raw: raw}, nil
}

// Wipe best-effort zeroizes the key material this PrivateKey retains. It does
// not invalidate subsequent use of the key's arithmetic (Go's big.Int cannot
// be reliably wiped), but it does clear the copied PEM bytes, matching the
// "best-effort zeroization of the mutable buffer" language of spec §5.
func (p *PrivateKey) Wipe() {
	for i := range p.raw {
		p.raw[i] = 0
	}
}

// PublicKey wraps a loaded P-256 public key.
type PublicKey struct {
	key *ecdsa.PublicKey
}

// LoadPublicKeyPEM parses a PEM-encoded SubjectPublicKeyInfo ECDSA public
// key. Returns a kind.Crypto error on any parse failure.
func LoadPublicKeyPEM(pemBytes []byte) (*PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, kind.New(kind.Crypto, "public key is not valid PEM")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, kind.Wrap(kind.Crypto, err, "failed to parse SubjectPublicKeyInfo public key")
	}
	ecKey, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, kind.New(kind.Crypto, "public key is not an ECDSA key")
	}
	if ecKey.Curve != elliptic.P256() {
		return nil, kind.New(kind.Crypto, "public key is not on curve P-256")
	}
	return &PublicKey{key: ecKey}, nil
}

// PublicKey derives the public key for this private key.
func (p *PrivateKey) PublicKey() *PublicKey {
	return &PublicKey{key: &p.key.PublicKey}
}

// MarshalPublicKeyPEM encodes pub as a PEM-wrapped SubjectPublicKeyInfo
// block, the inverse of LoadPublicKeyPEM. Used to populate the
// `public_key` field of a block's signature envelope (spec §6).
func MarshalPublicKeyPEM(pub *PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub.key)
	if err != nil {
		return nil, kind.Wrap(kind.Crypto, err, "failed to marshal public key")
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// Sign signs digest (expected to already be a SHA-256 digest of a canonical
// payload) with ECDSA over P-256, returning the ASN.1 DER signature.
func Sign(priv *PrivateKey, digest [32]byte) ([]byte, error) {
	sig, err := ecdsa.SignASN1(rand.Reader, priv.key, digest[:])
	if err != nil {
		return nil, kind.Wrap(kind.Crypto, err, "ecdsa sign failed")
	}
	return sig, nil
}

// Verify reports whether sig is a valid ECDSA-P256 signature over digest
// under pub. It never returns an error: an invalid or malformed signature
// simply verifies false, per spec §4.4/§4.5's non-throwing verify contract.
func Verify(pub *PublicKey, digest [32]byte, sig []byte) bool {
	if pub == nil || len(sig) == 0 {
		return false
	}
	return ecdsa.VerifyASN1(pub.key, digest[:], sig)
}
