// Package storage is the key-value accessor behind the purchase ledger.
//
// Every backend exposes the same flat namespace: string values under plain
// keys and unordered string sets. Backend failures are reported wrapped in
// ErrUnavailable so callers can tell "not there" from "could not ask".
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable wraps every failure of the underlying store.
var ErrUnavailable = errors.New("storage unavailable")

// OpKind selects what an Op does.
type OpKind int

const (
	OpSet OpKind = iota
	OpAddToSet
)

// Op is one write of a batch passed to Store.Apply.
type Op struct {
	Kind  OpKind
	Key   string
	Value string // value for OpSet, member for OpAddToSet
}

// SetOp writes value under key.
func SetOp(key, value string) Op { return Op{Kind: OpSet, Key: key, Value: value} }

// AddToSetOp adds member to the set under key.
func AddToSetOp(key, member string) Op { return Op{Kind: OpAddToSet, Key: key, Value: member} }

// Store is the key-value namespace the ledger is kept in.
type Store interface {
	// Get returns the value under key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// AddToSet is idempotent: adding an existing member is a no-op.
	AddToSet(ctx context.Context, key, member string) error
	// ListSet returns the members of a set, or an empty slice if there is none.
	ListSet(ctx context.Context, key string) ([]string, error)
	// Apply executes all ops as one unit: either every op is visible or none is.
	Apply(ctx context.Context, ops ...Op) error
	// ScanKeys lists value keys starting with prefix.
	ScanKeys(ctx context.Context, prefix string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
