package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainInvocation = "chaindb/invocation/v1"
	DomainCompletion = "chaindb/completion/v1"
	DomainDatabase   = "chaindb/database/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// InvocationID computes the content-addressed ID of a journaled call.
//
// The session token is excluded: the ID names what happened, not which CLI
// process submitted it, so replays under a new session keep their IDs.
func InvocationID(database string, action ActionRef, caller Address, args IRObject, seq int64) (string, error) {
	obj := IRObject{
		"database": IRString(database),
		"action":   IRString(action),
		"caller":   IRString(caller.Hex()),
		"args":     args,
		"seq":      IRInt(seq),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("InvocationID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainInvocation, canonical), nil
}

// CompletionID computes the content-addressed ID of a call outcome,
// covering the events it emitted.
func CompletionID(invocationID, outputCase string, result IRObject, events []Event, seq int64) (string, error) {
	evs := make(IRArray, len(events))
	for i, ev := range events {
		evs[i] = ev.Canonical()
	}
	obj := IRObject{
		"invocation_id": IRString(invocationID),
		"output_case":   IRString(outputCase),
		"result":        result,
		"events":        evs,
		"seq":           IRInt(seq),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("CompletionID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainCompletion, canonical), nil
}

// DatabaseID derives the identifier of a newly provisioned database.
// Deterministic in (owner, name, nonce) so replay mints the same IDs.
func DatabaseID(owner Address, name Word, nonce int64) string {
	canonical, err := MarshalCanonical(IRObject{
		"owner": IRString(owner.Hex()),
		"name":  IRString(name.Hex()),
		"nonce": IRInt(nonce),
	})
	if err != nil {
		// Only strings and ints above; marshaling cannot fail.
		panic(err)
	}
	return hashWithDomain(DomainDatabase, canonical)[:32]
}

// MustInvocationID is like InvocationID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustInvocationID(database string, action ActionRef, caller Address, args IRObject, seq int64) string {
	id, err := InvocationID(database, action, caller, args, seq)
	if err != nil {
		panic(err)
	}
	return id
}
