// Package keystore loads the asymmetric token-signing key pair and exposes
// sign/verify primitives over it.
package keystore

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAlgorithm is used when no algorithm is configured.
const DefaultAlgorithm = "RS256"

var (
	// ErrKeyMismatch is returned when the public key does not verify a
	// signature made with the private key.
	ErrKeyMismatch = errors.New("keystore: private and public keys do not match")

	// ErrNoPrivateKey is returned by Sign on a verify-only store.
	ErrNoPrivateKey = errors.New("keystore: private key not loaded")

	// ErrUnsupportedAlgorithm is returned for algorithms other than RSA, RSA-PSS, ECDSA and EdDSA.
	ErrUnsupportedAlgorithm = errors.New("keystore: unsupported algorithm")
)

var selfTestPayload = []byte("authsync keystore self-test")

// KeyStore holds an immutable key pair. Safe for concurrent use.
type KeyStore struct {
	method  jwt.SigningMethod
	private crypto.PrivateKey
	public  crypto.PublicKey
}

// Load reads a PEM private/public key pair for alg and runs the self-test.
func Load(alg, privatePath, publicPath string) (*KeyStore, error) {
	method, err := methodFor(alg)
	if err != nil {
		return nil, err
	}
	privPEM, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}
	pubPEM, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}
	priv, err := parsePrivate(method, privPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	pub, err := parsePublic(method, pubPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	return New(alg, priv, pub)
}

// LoadPublic reads only the public key. The result can verify but not sign.
func LoadPublic(alg, publicPath string) (*KeyStore, error) {
	pubPEM, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}
	return ParsePublicPEM(alg, pubPEM)
}

// ParsePublicPEM builds a verify-only KeyStore from PEM bytes, e.g. the
// ones served by the identity service's PublicKey call.
func ParsePublicPEM(alg string, pubPEM []byte) (*KeyStore, error) {
	method, err := methodFor(alg)
	if err != nil {
		return nil, err
	}
	pub, err := parsePublic(method, pubPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	return &KeyStore{method: method, public: pub}, nil
}

// New builds a KeyStore from parsed keys. If priv is non-nil, a signature made
// with it must verify against pub.
func New(alg string, priv crypto.PrivateKey, pub crypto.PublicKey) (*KeyStore, error) {
	method, err := methodFor(alg)
	if err != nil {
		return nil, err
	}
	if pub == nil {
		return nil, errors.New("keystore: public key is required")
	}
	ks := &KeyStore{method: method, private: priv, public: pub}
	if priv == nil {
		return ks, nil
	}
	sig, err := ks.Sign(selfTestPayload)
	if err != nil {
		return nil, fmt.Errorf("keystore self-test sign: %w", err)
	}
	if !ks.Verify(selfTestPayload, sig) {
		return nil, ErrKeyMismatch
	}
	return ks, nil
}

// Sign signs data with the private key.
func (k *KeyStore) Sign(data []byte) ([]byte, error) {
	if k.private == nil {
		return nil, ErrNoPrivateKey
	}
	return k.method.Sign(string(data), k.private)
}

// Verify reports whether sig is a valid signature of data.
func (k *KeyStore) Verify(data, sig []byte) bool {
	return k.method.Verify(string(data), sig, k.public) == nil
}

// Algorithm returns the JOSE algorithm identifier, e.g. "RS256".
func (k *KeyStore) Algorithm() string { return k.method.Alg() }

// CanSign reports whether a private key is loaded.
func (k *KeyStore) CanSign() bool { return k.private != nil }

// PublicKeyPEM encodes the public key as a PKIX "PUBLIC KEY" PEM block.
func (k *KeyStore) PublicKeyPEM() ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(k.public)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

func methodFor(alg string) (jwt.SigningMethod, error) {
	if alg == "" {
		alg = DefaultAlgorithm
	}
	m := jwt.GetSigningMethod(alg)
	switch m.(type) {
	case *jwt.SigningMethodRSA, *jwt.SigningMethodRSAPSS, *jwt.SigningMethodECDSA, *jwt.SigningMethodEd25519:
		return m, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
}

func parsePrivate(m jwt.SigningMethod, b []byte) (crypto.PrivateKey, error) {
	switch m.(type) {
	case *jwt.SigningMethodRSA, *jwt.SigningMethodRSAPSS:
		return jwt.ParseRSAPrivateKeyFromPEM(b)
	case *jwt.SigningMethodECDSA:
		return jwt.ParseECPrivateKeyFromPEM(b)
	default:
		return jwt.ParseEdPrivateKeyFromPEM(b)
	}
}

func parsePublic(m jwt.SigningMethod, b []byte) (crypto.PublicKey, error) {
	switch m.(type) {
	case *jwt.SigningMethodRSA, *jwt.SigningMethodRSAPSS:
		return jwt.ParseRSAPublicKeyFromPEM(b)
	case *jwt.SigningMethodECDSA:
		return jwt.ParseECPublicKeyFromPEM(b)
	default:
		return jwt.ParseEdPublicKeyFromPEM(b)
	}
}
