package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	api "github.com/and161185/authsync/internal/api/identityv1"
	"github.com/and161185/authsync/internal/keystore"
	"github.com/and161185/authsync/internal/token"
)

func toSession(userID string, p api.TokenPair) session {
	return session{
		UserID:           userID,
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshExpiresAt: p.RefreshExpiresAt,
	}
}

// cmdKeygen writes a fresh signing key pair for the identity service.
func cmdKeygen(args []string) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	alg := fs.String("alg", keystore.DefaultAlgorithm, "signing algorithm")
	dir := fs.String("dir", "keys", "output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	priv, pub, err := keystore.GenerateKeyPair(*alg)
	if err != nil {
		return err
	}
	privPath, pubPath, err := keystore.SavePEM(*dir, priv, pub)
	if err != nil {
		return err
	}
	// sanity: the pair must load back under the same algorithm
	if _, err := keystore.Load(*alg, privPath, pubPath); err != nil {
		return fmt.Errorf("generated keys do not load: %w", err)
	}
	printJSON(map[string]string{"algorithm": *alg, "private": privPath, "public": pubPath})
	return nil
}

func cmdRegister(ctx context.Context, g globals, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	u := fs.String("u", "", "username")
	p := fs.String("p", "", "password")
	e := fs.String("e", "", "email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *u == "" || *p == "" {
		return errors.New("need -u and -p")
	}

	cc, cli, err := dial(g, "")
	if err != nil {
		return err
	}
	defer cc.Close()

	resp, err := cli.Register(ctx, &api.RegisterRequest{Username: *u, Email: *e, Password: *p})
	if err != nil {
		return err
	}
	fmt.Println(resp.UserID)
	return nil
}

// cmdLogin authenticates and stores the token pair in the session file.
func cmdLogin(ctx context.Context, g globals, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	u := fs.String("u", "", "username")
	p := fs.String("p", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *u == "" || *p == "" {
		return errors.New("need -u and -p")
	}

	cc, cli, err := dial(g, "")
	if err != nil {
		return err
	}
	defer cc.Close()

	resp, err := cli.Login(ctx, &api.LoginRequest{Username: *u, Password: *p})
	if err != nil {
		return err
	}
	if err := saveSession(toSession(resp.UserID, resp.Tokens)); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

// cmdRefresh rotates the saved refresh token. The old one is consumed by
// the server even if saving the new pair fails.
func cmdRefresh(ctx context.Context, g globals) error {
	s, err := loadSession()
	if err != nil {
		return err
	}
	if s.RefreshToken == "" {
		return errNoSession
	}

	cc, cli, err := dial(g, "")
	if err != nil {
		return err
	}
	defer cc.Close()

	resp, err := cli.Refresh(ctx, &api.RefreshRequest{RefreshToken: s.RefreshToken})
	if err != nil {
		return err
	}
	if err := saveSession(toSession(s.UserID, resp.Tokens)); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

// cmdVerify checks an access token, remotely or against a local public key.
func cmdVerify(ctx context.Context, g globals, args []string) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	raw := fs.String("token", "", "access token (default: saved session)")
	pub := fs.String("pub", "", "verify locally with this public key (PEM)")
	alg := fs.String("alg", keystore.DefaultAlgorithm, "algorithm for -pub")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *raw == "" {
		s, err := loadSession()
		if err != nil {
			return err
		}
		*raw = s.AccessToken
	}

	if *pub != "" {
		keys, err := keystore.LoadPublic(*alg, *pub)
		if err != nil {
			return err
		}
		cl, err := token.NewCodec(keys).Decode(*raw, token.TypeAccess)
		if err != nil {
			return err
		}
		printJSON(api.VerifyResponse{Subject: cl.Subject, TokenID: cl.ID, ExpiresAt: cl.ExpiresAt.Time})
		return nil
	}

	cc, cli, err := dial(g, "")
	if err != nil {
		return err
	}
	defer cc.Close()

	resp, err := cli.Verify(ctx, &api.VerifyRequest{AccessToken: *raw})
	if err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

// cmdLogout revokes the saved tokens and forgets the session.
func cmdLogout(ctx context.Context, g globals) error {
	s, err := loadSession()
	if err != nil {
		return err
	}

	cc, cli, err := dial(g, "")
	if err != nil {
		return err
	}
	defer cc.Close()

	if _, err := cli.Logout(ctx, &api.LogoutRequest{AccessToken: s.AccessToken, RefreshToken: s.RefreshToken}); err != nil {
		return err
	}
	if err := clearSession(); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func cmdSetEmail(ctx context.Context, g globals, args []string) error {
	fs := flag.NewFlagSet("set-email", flag.ContinueOnError)
	e := fs.String("e", "", "new email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *e == "" {
		return errors.New("need -e")
	}
	s, err := loadSession()
	if err != nil {
		return err
	}

	cc, cli, err := dial(g, s.AccessToken)
	if err != nil {
		return err
	}
	defer cc.Close()

	resp, err := cli.UpdateEmail(ctx, &api.UpdateEmailRequest{Email: *e})
	if err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

// cmdPubkey fetches the verification key and checks that it parses.
func cmdPubkey(ctx context.Context, g globals, args []string) error {
	fs := flag.NewFlagSet("pubkey", flag.ContinueOnError)
	out := fs.String("out", "", "write PEM to file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cc, cli, err := dial(g, "")
	if err != nil {
		return err
	}
	defer cc.Close()

	resp, err := cli.PublicKey(ctx, &api.PublicKeyRequest{})
	if err != nil {
		return err
	}
	if _, err := keystore.ParsePublicPEM(resp.Algorithm, []byte(resp.PEM)); err != nil {
		return fmt.Errorf("server returned unusable key: %w", err)
	}
	if *out == "" {
		fmt.Print(resp.PEM)
		return nil
	}
	if err := os.WriteFile(*out, []byte(resp.PEM), 0o644); err != nil {
		return err
	}
	fmt.Println(resp.Algorithm)
	return nil
}
