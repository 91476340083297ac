package database

import (
	"strings"

	"github.com/roach88/chaindb/internal/ir"
)

// Policy decides which callers may use a database.
type Policy string

const (
	// PolicyOpen lets any caller read and write.
	PolicyOpen Policy = "open"
	// PolicyOwner restricts every operation to the database owner.
	PolicyOwner Policy = "owner"
)

// ParsePolicy resolves a policy name. The empty string means PolicyOpen.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyOpen:
		return PolicyOpen, nil
	case PolicyOwner:
		return PolicyOwner, nil
	}
	return "", ir.Errorf(ir.ErrInvalidArgument, "unknown access policy %q (want open or owner)", s)
}

// Allows reports whether caller may operate on a database owned by owner.
func (p Policy) Allows(owner, caller ir.Address) bool {
	if p == PolicyOwner {
		return caller == owner
	}
	return true
}
