package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// LoginFunc obtains a fresh token, usually by running StartAuthFlow.
type LoginFunc func(ctx context.Context) (string, error)

// Session holds the token used for API calls. It is an oauth2.TokenSource so
// an API client can attach it through oauth2.Transport.
type Session struct {
	Store *TokenManager
	Login LoginFunc
	// Now defaults to time.Now.
	Now func() time.Time

	mu    sync.Mutex
	token string
}

var ErrNoToken = errors.New("not authenticated")

func (s *Session) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Current loads the stored token and adopts it when it has not expired.
func (s *Session) Current() (string, bool, error) {
	if s.Store == nil {
		return "", false, errors.New("token store is not configured")
	}
	token, found, err := s.Store.GetToken()
	if err != nil {
		return "", false, err
	}
	if !found || IsTokenExpired(token, s.now()) {
		return "", false, nil
	}
	s.set(token)
	return token, true, nil
}

// Ensure returns the stored token, logging in when it is missing or
// expired. The boolean reports whether a login was needed.
func (s *Session) Ensure(ctx context.Context) (string, bool, error) {
	token, ok, err := s.Current()
	if err != nil {
		return "", false, err
	}
	if ok {
		return token, false, nil
	}
	token, err = s.Reauthenticate(ctx)
	if err != nil {
		return "", true, err
	}
	return token, true, nil
}

// Reauthenticate runs the login flow unconditionally and persists the
// resulting token.
func (s *Session) Reauthenticate(ctx context.Context) (string, error) {
	if s.Login == nil {
		return "", errors.New("login flow is not configured")
	}
	token, err := s.Login(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", errors.New("login returned an empty token")
	}
	if s.Store != nil {
		if err := s.Store.SaveToken(token); err != nil {
			return "", fmt.Errorf("failed to save token: %w", err)
		}
	}
	s.set(token)
	return token, nil
}

func (s *Session) set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Token implements oauth2.TokenSource.
func (s *Session) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()
	if token == "" {
		return nil, ErrNoToken
	}
	result := &oauth2.Token{AccessToken: token, TokenType: "Bearer"}
	if claims, err := ParseClaims(token); err == nil {
		result.Expiry = claims.Expiry()
	}
	return result, nil
}
