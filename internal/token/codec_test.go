package token

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/authsync/internal/errs"
	"github.com/and161185/authsync/internal/keystore"
)

func newKeys(t *testing.T, alg string) *keystore.KeyStore {
	t.Helper()
	priv, pub, err := keystore.GenerateKeyPair(alg)
	require.NoError(t, err)
	ks, err := keystore.New(alg, priv, pub)
	require.NoError(t, err)
	return ks
}

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

var epoch = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func TestCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	clk := &fixedClock{t: epoch}
	c := NewCodec(newKeys(t, "EdDSA"), WithClock(clk.Now))

	raw, err := c.Encode(NewClaims(TypeAccess, "u1", "jti-1", epoch, time.Minute))
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(raw, "."))

	cl, err := c.Decode(raw, TypeAccess)
	require.NoError(t, err)
	require.Equal(t, "u1", cl.Subject)
	require.Equal(t, "jti-1", cl.ID)
	require.Equal(t, TypeAccess, cl.Type)
	require.Equal(t, epoch.Add(time.Minute), cl.ExpiresAt.Time.UTC())
}

func TestCodec_HeaderDeclaresAlgorithm(t *testing.T) {
	t.Parallel()

	c := NewCodec(newKeys(t, "ES256"))
	raw, err := c.Encode(NewClaims(TypeRefresh, "u1", "r1", time.Now(), time.Hour))
	require.NoError(t, err)

	tok, _, err := jwt.NewParser().ParseUnverified(raw, &Claims{})
	require.NoError(t, err)
	require.Equal(t, "ES256", tok.Header["alg"])
}

func TestCodec_Expired(t *testing.T) {
	t.Parallel()

	clk := &fixedClock{t: epoch}
	c := NewCodec(newKeys(t, "EdDSA"), WithClock(clk.Now))
	raw, err := c.Encode(NewClaims(TypeRefresh, "u1", "r1", epoch, time.Minute))
	require.NoError(t, err)

	clk.t = epoch.Add(2 * time.Minute)
	_, err = c.Decode(raw, TypeRefresh)
	require.ErrorIs(t, err, errs.ErrExpired)
}

func TestCodec_LeewayToleratesSkew(t *testing.T) {
	t.Parallel()

	keys := newKeys(t, "EdDSA")
	issuer := NewCodec(keys, WithClock(func() time.Time { return epoch }))
	raw, err := issuer.Encode(NewClaims(TypeAccess, "u1", "a1", epoch, time.Minute))
	require.NoError(t, err)

	late := func() time.Time { return epoch.Add(time.Minute + 20*time.Second) }
	strict := NewCodec(keys, WithClock(late))
	_, err = strict.Decode(raw, TypeAccess)
	require.ErrorIs(t, err, errs.ErrExpired)

	tolerant := NewCodec(keys, WithClock(late), WithLeeway(30*time.Second))
	_, err = tolerant.Decode(raw, TypeAccess)
	require.NoError(t, err)

	// verifier clock behind issuer: iat in the future
	early := func() time.Time { return epoch.Add(-10 * time.Second) }
	_, err = NewCodec(keys, WithClock(early)).Decode(raw, TypeAccess)
	require.ErrorIs(t, err, errs.ErrMalformed)
	_, err = NewCodec(keys, WithClock(early), WithLeeway(30*time.Second)).Decode(raw, TypeAccess)
	require.NoError(t, err)
}

func TestCodec_InvalidSignature(t *testing.T) {
	t.Parallel()

	a := NewCodec(newKeys(t, "EdDSA"))
	b := NewCodec(newKeys(t, "EdDSA"))
	raw, err := a.Encode(NewClaims(TypeAccess, "u1", "a1", time.Now(), time.Minute))
	require.NoError(t, err)

	_, err = b.Decode(raw, TypeAccess)
	require.ErrorIs(t, err, errs.ErrInvalidSignature)

	// tamper claims segment
	parts := strings.Split(raw, ".")
	forged := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"admin","type":"access","jti":"x","iat":1,"exp":9999999999}`))
	_, err = a.Decode(parts[0]+"."+forged+"."+parts[2], TypeAccess)
	require.ErrorIs(t, err, errs.ErrInvalidSignature)
}

func TestCodec_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	c := NewCodec(newKeys(t, "RS256"))
	pemKey, err := c.keys.PublicKeyPEM()
	require.NoError(t, err)

	// HS256 signed with the public key bytes must not verify.
	hs, err := jwt.NewWithClaims(jwt.SigningMethodHS256,
		NewClaims(TypeAccess, "u1", "a1", time.Now(), time.Minute)).SignedString(pemKey)
	require.NoError(t, err)
	_, err = c.Decode(hs, TypeAccess)
	require.ErrorIs(t, err, errs.ErrInvalidSignature)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone,
		NewClaims(TypeAccess, "u1", "a1", time.Now(), time.Minute)).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = c.Decode(none, TypeAccess)
	require.ErrorIs(t, err, errs.ErrInvalidSignature)
}

func TestCodec_Malformed(t *testing.T) {
	t.Parallel()

	c := NewCodec(newKeys(t, "EdDSA"))
	for _, raw := range []string{"", "abc", "a.b", "a.b.c.d", "!!!.???.###"} {
		_, err := c.Decode(raw, TypeAccess)
		require.ErrorIs(t, err, errs.ErrMalformed, "raw=%q", raw)
	}
}

func TestCodec_MissingJTI(t *testing.T) {
	t.Parallel()

	c := NewCodec(newKeys(t, "EdDSA"))
	raw, err := c.Encode(NewClaims(TypeAccess, "u1", "", time.Now(), time.Minute))
	require.NoError(t, err)
	_, err = c.Decode(raw, TypeAccess)
	require.ErrorIs(t, err, errs.ErrMalformed)
}

func TestCodec_ClaimTypeMismatch(t *testing.T) {
	t.Parallel()

	c := NewCodec(newKeys(t, "EdDSA"))
	access, err := c.Encode(NewClaims(TypeAccess, "u1", "a1", time.Now(), time.Minute))
	require.NoError(t, err)
	refresh, err := c.Encode(NewClaims(TypeRefresh, "u1", "r1", time.Now(), time.Hour))
	require.NoError(t, err)

	_, err = c.Decode(access, TypeRefresh)
	require.ErrorIs(t, err, errs.ErrClaimTypeMismatch)
	_, err = c.Decode(refresh, TypeAccess)
	require.ErrorIs(t, err, errs.ErrClaimTypeMismatch)
}

func TestCodec_VerifyOnlyKeyStore(t *testing.T) {
	t.Parallel()

	priv, pub, err := keystore.GenerateKeyPair("EdDSA")
	require.NoError(t, err)
	signer, err := keystore.New("EdDSA", priv, pub)
	require.NoError(t, err)
	verifier, err := keystore.New("EdDSA", nil, pub)
	require.NoError(t, err)

	raw, err := NewCodec(signer).Encode(NewClaims(TypeAccess, "u1", "a1", time.Now(), time.Minute))
	require.NoError(t, err)
	cl, err := NewCodec(verifier).Decode(raw, TypeAccess)
	require.NoError(t, err)
	require.Equal(t, "u1", cl.Subject)

	_, err = NewCodec(verifier).Encode(NewClaims(TypeAccess, "u1", "a1", time.Now(), time.Minute))
	require.ErrorIs(t, err, keystore.ErrNoPrivateKey)
}
