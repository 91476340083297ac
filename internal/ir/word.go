package ir

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// WordSize is the width in bytes of one storage word.
const WordSize = 32

// Word is the fixed-width storage cell. Every column value, table name and
// column name is stored as exactly one Word.
type Word [WordSize]byte

// NameWord packs a name into a word: left-aligned, zero padded on the right,
// truncated beyond WordSize bytes.
//
// Names are truncated rather than rejected; column VALUES never are (see codec).
func NameWord(s string) Word {
	var w Word
	copy(w[:], s)
	return w
}

// IsZero reports whether every byte of the word is zero.
func (w Word) IsZero() bool {
	return w == Word{}
}

// Text returns the word as a left-aligned string with right padding removed.
func (w Word) Text() string {
	return string(bytes.TrimRight(w[:], "\x00"))
}

// Hex returns the 0x-prefixed lowercase hex form (66 characters).
func (w Word) Hex() string {
	return "0x" + hex.EncodeToString(w[:])
}

// String implements fmt.Stringer.
func (w Word) String() string {
	return w.Hex()
}

// ParseWord parses the 0x-prefixed hex form produced by Hex.
func ParseWord(s string) (Word, error) {
	var w Word
	raw, err := decodeHex(s, WordSize)
	if err != nil {
		return w, fmt.Errorf("parse word: %w", err)
	}
	copy(w[:], raw)
	return w, nil
}

// MarshalJSON encodes the word as its hex string.
func (w Word) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.Hex())
}

// UnmarshalJSON decodes the hex string form.
func (w *Word) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseWord(s)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// AddressSize is the width in bytes of a caller identity.
const AddressSize = 20

// Address identifies a caller, an owner or a token holder.
type Address [AddressSize]byte

// ParseAddress parses a 0x-prefixed 40 hex character address.
func ParseAddress(s string) (Address, error) {
	var a Address
	raw, err := decodeHex(s, AddressSize)
	if err != nil {
		return a, fmt.Errorf("parse address: %w", err)
	}
	copy(a[:], raw)
	return a, nil
}

// MustAddress is like ParseAddress but panics on error.
// Use only in tests or for constants.
func MustAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// IsZero reports whether this is the zero address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Hex returns the 0x-prefixed lowercase hex form (42 characters).
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// String implements fmt.Stringer.
func (a Address) String() string {
	return a.Hex()
}

// MarshalJSON encodes the address as its hex string.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Hex())
}

// UnmarshalJSON decodes the hex string form.
func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// decodeHex requires the 0x prefix and exactly size bytes of payload.
func decodeHex(s string, size int) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return nil, fmt.Errorf("missing 0x prefix in %q", s)
	}
	body := s[2:]
	if len(body) != size*2 {
		return nil, fmt.Errorf("want %d hex characters, got %d", size*2, len(body))
	}
	raw, err := hex.DecodeString(body)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
