package keystore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writePair(t *testing.T, alg string) (string, string) {
	t.Helper()
	priv, pub, err := GenerateKeyPair(alg)
	require.NoError(t, err)
	privPath, pubPath, err := SavePEM(t.TempDir(), priv, pub)
	require.NoError(t, err)
	return privPath, pubPath
}

func TestLoad_SignVerify(t *testing.T) {
	t.Parallel()

	for _, alg := range []string{"RS256", "ES256", "EdDSA"} {
		alg := alg
		t.Run(alg, func(t *testing.T) {
			t.Parallel()
			privPath, pubPath := writePair(t, alg)

			ks, err := Load(alg, privPath, pubPath)
			require.NoError(t, err)
			require.Equal(t, alg, ks.Algorithm())
			require.True(t, ks.CanSign())

			sig, err := ks.Sign([]byte("payload"))
			require.NoError(t, err)
			require.True(t, ks.Verify([]byte("payload"), sig))
			require.False(t, ks.Verify([]byte("tampered"), sig))
		})
	}
}

func TestLoad_MissingFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := Load("RS256", filepath.Join(dir, "nope.pem"), filepath.Join(dir, "nope.pub"))
	require.Error(t, err)

	privPath, _ := writePair(t, "EdDSA")
	_, err = Load("EdDSA", privPath, filepath.Join(dir, "nope.pub"))
	require.Error(t, err)
}

func TestLoad_Malformed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.pem")
	require.NoError(t, os.WriteFile(bad, []byte("not a pem"), 0o600))
	_, pubPath := writePair(t, "RS256")

	_, err := Load("RS256", bad, pubPath)
	require.Error(t, err)
}

func TestLoad_MismatchedPairFailsSelfTest(t *testing.T) {
	t.Parallel()

	privA, _ := writePair(t, "EdDSA")
	_, pubB := writePair(t, "EdDSA")

	_, err := Load("EdDSA", privA, pubB)
	require.True(t, errors.Is(err, ErrKeyMismatch), "want ErrKeyMismatch, got %v", err)
}

func TestLoad_AlgorithmFamilyMismatch(t *testing.T) {
	t.Parallel()

	privPath, pubPath := writePair(t, "EdDSA")
	_, err := Load("RS256", privPath, pubPath)
	require.Error(t, err)
}

func TestUnsupportedAlgorithm(t *testing.T) {
	t.Parallel()

	_, _, err := GenerateKeyPair("HS256")
	require.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	_, err = ParsePublicPEM("none", nil)
	require.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestLoadPublic_VerifyOnly(t *testing.T) {
	t.Parallel()

	privPath, pubPath := writePair(t, "ES256")
	signer, err := Load("ES256", privPath, pubPath)
	require.NoError(t, err)
	verifier, err := LoadPublic("ES256", pubPath)
	require.NoError(t, err)
	require.False(t, verifier.CanSign())

	sig, err := signer.Sign([]byte("x"))
	require.NoError(t, err)
	require.True(t, verifier.Verify([]byte("x"), sig))

	_, err = verifier.Sign([]byte("x"))
	require.ErrorIs(t, err, ErrNoPrivateKey)
}

func TestPublicKeyPEM_RoundTrip(t *testing.T) {
	t.Parallel()

	privPath, pubPath := writePair(t, "EdDSA")
	ks, err := Load("EdDSA", privPath, pubPath)
	require.NoError(t, err)

	pemBytes, err := ks.PublicKeyPEM()
	require.NoError(t, err)
	onDisk, err := os.ReadFile(pubPath)
	require.NoError(t, err)
	require.Equal(t, string(onDisk), string(pemBytes))

	verifier, err := ParsePublicPEM("EdDSA", pemBytes)
	require.NoError(t, err)
	sig, err := ks.Sign([]byte("payload"))
	require.NoError(t, err)
	require.True(t, verifier.Verify([]byte("payload"), sig))
}

func TestSavePEM_Permissions(t *testing.T) {
	t.Parallel()

	privPath, pubPath := writePair(t, "EdDSA")
	st, err := os.Stat(privPath)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), st.Mode().Perm())
	_, err = os.Stat(pubPath)
	require.NoError(t, err)
}
