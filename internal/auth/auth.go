// Package auth holds the identity gate in front of the receipts API.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Caller is the identity resolved for an inbound request.
type Caller struct {
	ID string
}

// Authenticator resolves the caller behind a credential or rejects it.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (*Caller, error)
}

// TokenAuthenticator accepts a fixed set of bearer tokens.
type TokenAuthenticator struct {
	tokens map[string]string
}

// NewTokenAuthenticator maps each token to the caller id it authenticates.
func NewTokenAuthenticator(tokens map[string]string) *TokenAuthenticator {
	cp := make(map[string]string, len(tokens))
	for k, v := range tokens {
		cp[k] = v
	}
	return &TokenAuthenticator{tokens: cp}
}

func (a *TokenAuthenticator) Authenticate(_ context.Context, credential string) (*Caller, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, ErrUnauthenticated
	}
	for token, caller := range a.tokens {
		if subtle.ConstantTimeCompare([]byte(token), []byte(credential)) == 1 {
			return &Caller{ID: caller}, nil
		}
	}
	return nil, ErrUnauthenticated
}

// Anonymous authenticates every request as the same caller. Used when the
// gate is disabled for local development.
type Anonymous struct{}

func (Anonymous) Authenticate(context.Context, string) (*Caller, error) {
	return &Caller{ID: "anonymous"}, nil
}

type callerKey struct{}

// WithCaller stores the resolved caller.
func WithCaller(ctx context.Context, caller *Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFromContext returns the caller stored by WithCaller.
func CallerFromContext(ctx context.Context) (*Caller, bool) {
	caller, ok := ctx.Value(callerKey{}).(*Caller)
	return caller, ok && caller != nil
}
