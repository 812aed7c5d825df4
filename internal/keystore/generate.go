package keystore

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// PrivateKeyFile and PublicKeyFile are the names written by SavePEM.
	PrivateKeyFile = "private.pem"
	PublicKeyFile  = "public.pem"

	rsaBits = 2048
)

// GenerateKeyPair creates a new key pair suitable for alg.
func GenerateKeyPair(alg string) (crypto.PrivateKey, crypto.PublicKey, error) {
	m, err := methodFor(alg)
	if err != nil {
		return nil, nil, err
	}
	switch m := m.(type) {
	case *jwt.SigningMethodRSA, *jwt.SigningMethodRSAPSS:
		k, err := rsa.GenerateKey(rand.Reader, rsaBits)
		if err != nil {
			return nil, nil, fmt.Errorf("generating RSA key: %w", err)
		}
		return k, &k.PublicKey, nil
	case *jwt.SigningMethodECDSA:
		k, err := ecdsa.GenerateKey(curveFor(m), rand.Reader)
		if err != nil {
			return nil, nil, fmt.Errorf("generating ECDSA key: %w", err)
		}
		return k, &k.PublicKey, nil
	default:
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, nil, fmt.Errorf("generating Ed25519 key: %w", err)
		}
		return priv, pub, nil
	}
}

// SavePEM writes the pair to dir as PKCS#8 / PKIX PEM files. The private key
// file has 0600 permissions; the public key file has 0644.
func SavePEM(dir string, priv crypto.PrivateKey, pub crypto.PublicKey) (privatePath, publicPath string, err error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", "", err
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", "", fmt.Errorf("encoding private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", "", fmt.Errorf("encoding public key: %w", err)
	}

	privatePath = filepath.Join(dir, PrivateKeyFile)
	if err := os.WriteFile(privatePath, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}), 0o600); err != nil {
		return "", "", fmt.Errorf("writing private key: %w", err)
	}
	publicPath = filepath.Join(dir, PublicKeyFile)
	if err := os.WriteFile(publicPath, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}), 0o644); err != nil {
		return "", "", fmt.Errorf("writing public key: %w", err)
	}
	return privatePath, publicPath, nil
}

func curveFor(m *jwt.SigningMethodECDSA) elliptic.Curve {
	switch m.CurveBits {
	case 384:
		return elliptic.P384()
	case 521:
		return elliptic.P521()
	default:
		return elliptic.P256()
	}
}
