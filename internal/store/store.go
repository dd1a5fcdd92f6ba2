// Package store defines the tabular query interface the fetch layer reads
// from, plus the identity lookup port. Backends live in subpackages.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNoRows is returned by single-row queries when nothing matches.
	ErrNoRows = errors.New("no rows")
	// ErrMultipleRows is returned by single-row queries when more than one
	// row matches.
	ErrMultipleRows = errors.New("multiple rows")
	// ErrUnavailable wraps transport failures of a remote store.
	ErrUnavailable = errors.New("store unavailable")
	// ErrUnknownTable and ErrUnknownColumn reject queries outside the schema.
	ErrUnknownTable  = errors.New("unknown table")
	ErrUnknownColumn = errors.New("unknown column")
	// ErrIdentityNotFound is returned when the identity store has no user.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrInvalidToken is returned when a session token cannot be verified.
	ErrInvalidToken = errors.New("invalid token")
)

// Ports for outbound adapters.
type (
	TableReader interface {
		Select(ctx context.Context, q Query) ([]Row, error)
	}

	// IdentityProvider resolves users in the hosted identity store.
	IdentityProvider interface {
		UserByID(ctx context.Context, id string) (Identity, error)
		// UserByToken resolves the user behind a session token.
		UserByToken(ctx context.Context, token string) (Identity, error)
	}
)

// Identity is the subset of an identity record the reports need.
type Identity struct {
	ID       string
	Email    string
	Username string
}
