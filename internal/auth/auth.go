// Package auth supplies the bearer credential used to open a transport
// session. Obtaining the credential (login flows, token refresh) happens
// outside parley; a [Source] only hands out what is already available.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoCredential is returned when a source has nothing to hand out.
var ErrNoCredential = errors.New("auth: no credential available")

// Source returns the current credential.
type Source interface {
	Credential(ctx context.Context) (string, error)
}

// Env reads the credential from an environment variable on every call, so a
// rotated token is picked up by the next session without a restart.
type Env struct {
	Var string
}

var _ Source = Env{}

// Credential implements [Source].
func (e Env) Credential(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v := strings.TrimSpace(os.Getenv(e.Var))
	if v == "" {
		return "", fmt.Errorf("%w: $%s is empty", ErrNoCredential, e.Var)
	}
	return v, nil
}

// Static always returns the same credential. An empty Static fails with
// [ErrNoCredential].
type Static string

var _ Source = Static("")

// Credential implements [Source].
func (s Static) Credential(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoCredential
	}
	return string(s), nil
}

// Func adapts a function to [Source].
type Func func(ctx context.Context) (string, error)

// Credential implements [Source].
func (f Func) Credential(ctx context.Context) (string, error) { return f(ctx) }
