// Package codec encodes typed column values into fixed-width storage words.
//
// The codec is pure and stateless. Each column type tag has one layout:
//
//	integer   int64, two's complement, sign-extended big-endian across the word
//	unsigned  uint64, big-endian, right-aligned
//	string    up to 32 bytes, left-aligned, zero padded on the right
//	address   20 bytes, right-aligned (12 leading zero bytes)
//	boolean   0 or 1 in the last byte; any non-zero word decodes to true
//
// Values that do not fit fail with an ir.ErrEncoding error; nothing is ever
// truncated. Unknown tags fail with ir.ErrUnsupportedType.
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/roach88/chaindb/internal/ir"
)

// Supported reports whether the tag names a known column type.
func Supported(tag ir.ColumnType) bool {
	switch tag {
	case ir.ColumnInteger, ir.ColumnUnsigned, ir.ColumnString, ir.ColumnAddress, ir.ColumnBoolean:
		return true
	}
	return false
}

// CheckType returns an ir.ErrUnsupportedType error for unknown tags.
func CheckType(tag ir.ColumnType) error {
	if !Supported(tag) {
		return ir.Errorf(ir.ErrUnsupportedType, "unsupported column type tag %d", uint8(tag))
	}
	return nil
}

// ParseType resolves a type name ("integer") or a numeric tag ("0").
func ParseType(s string) (ir.ColumnType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "integer", "int":
		return ir.ColumnInteger, nil
	case "unsigned", "uint":
		return ir.ColumnUnsigned, nil
	case "string":
		return ir.ColumnString, nil
	case "address":
		return ir.ColumnAddress, nil
	case "boolean", "bool":
		return ir.ColumnBoolean, nil
	}
	n, err := strconv.ParseUint(name, 10, 8)
	if err != nil {
		return 0, ir.Errorf(ir.ErrUnsupportedType, "unknown column type %q", s)
	}
	tag := ir.ColumnType(n)
	if err := CheckType(tag); err != nil {
		return 0, err
	}
	return tag, nil
}

// Encode packs v into a word according to tag.
func Encode(tag ir.ColumnType, v ir.IRValue) (ir.Word, error) {
	switch tag {
	case ir.ColumnInteger:
		return encodeInteger(v)
	case ir.ColumnUnsigned:
		return encodeUnsigned(v)
	case ir.ColumnString:
		return encodeString(v)
	case ir.ColumnAddress:
		return encodeAddress(v)
	case ir.ColumnBoolean:
		return encodeBoolean(v)
	}
	return ir.Word{}, CheckType(tag)
}

// Decode unpacks a word according to tag. Decode(tag, Encode(tag, v)) == v
// for every value in the type's canonical domain.
func Decode(tag ir.ColumnType, w ir.Word) (ir.IRValue, error) {
	switch tag {
	case ir.ColumnInteger:
		return decodeInteger(w)
	case ir.ColumnUnsigned:
		return decodeUnsigned(w), nil
	case ir.ColumnString:
		return ir.IRString(w.Text()), nil
	case ir.ColumnAddress:
		return decodeAddress(w)
	case ir.ColumnBoolean:
		return ir.IRBool(!w.IsZero()), nil
	}
	return nil, CheckType(tag)
}

func encodingError(tag ir.ColumnType, v ir.IRValue, reason string) error {
	return ir.Errorf(ir.ErrEncoding, "cannot encode %v as %s: %s", ir.ToGo(v), tag, reason)
}

func encodeInteger(v ir.IRValue) (ir.Word, error) {
	var n int64
	switch val := v.(type) {
	case ir.IRInt:
		n = int64(val)
	case ir.IRString:
		parsed, err := strconv.ParseInt(strings.TrimSpace(string(val)), 10, 64)
		if err != nil {
			return ir.Word{}, encodingError(ir.ColumnInteger, v, numError(err))
		}
		n = parsed
	default:
		return ir.Word{}, encodingError(ir.ColumnInteger, v, "not an integer")
	}

	var w ir.Word
	if n < 0 {
		for i := range w {
			w[i] = 0xff
		}
	}
	binary.BigEndian.PutUint64(w[ir.WordSize-8:], uint64(n))
	return w, nil
}

func decodeInteger(w ir.Word) (ir.IRValue, error) {
	n := int64(binary.BigEndian.Uint64(w[ir.WordSize-8:]))
	var fill byte
	if n < 0 {
		fill = 0xff
	}
	for _, b := range w[:ir.WordSize-8] {
		if b != fill {
			return nil, ir.Errorf(ir.ErrEncoding, "word %s overflows a 64-bit integer", w.Hex())
		}
	}
	return ir.IRInt(n), nil
}

func encodeUnsigned(v ir.IRValue) (ir.Word, error) {
	var n uint64
	switch val := v.(type) {
	case ir.IRInt:
		if val < 0 {
			return ir.Word{}, encodingError(ir.ColumnUnsigned, v, "negative value")
		}
		n = uint64(val)
	case ir.IRString:
		parsed, err := strconv.ParseUint(strings.TrimSpace(string(val)), 10, 64)
		if err != nil {
			return ir.Word{}, encodingError(ir.ColumnUnsigned, v, numError(err))
		}
		n = parsed
	default:
		return ir.Word{}, encodingError(ir.ColumnUnsigned, v, "not an integer")
	}

	var w ir.Word
	binary.BigEndian.PutUint64(w[ir.WordSize-8:], n)
	return w, nil
}

// decodeUnsigned returns an IRInt, or the decimal IRString for values above
// MaxInt64. A word with non-zero high bytes was not written by this codec and
// is returned as its hex form.
func decodeUnsigned(w ir.Word) ir.IRValue {
	for _, b := range w[:ir.WordSize-8] {
		if b != 0 {
			return ir.IRString(w.Hex())
		}
	}
	n := binary.BigEndian.Uint64(w[ir.WordSize-8:])
	if n > 1<<63-1 {
		return ir.IRString(strconv.FormatUint(n, 10))
	}
	return ir.IRInt(n)
}

func encodeString(v ir.IRValue) (ir.Word, error) {
	s, ok := v.(ir.IRString)
	if !ok {
		return ir.Word{}, encodingError(ir.ColumnString, v, "not a string")
	}
	if len(s) > ir.WordSize {
		return ir.Word{}, encodingError(ir.ColumnString, v, "longer than 32 bytes")
	}
	if strings.IndexByte(string(s), 0) >= 0 {
		return ir.Word{}, encodingError(ir.ColumnString, v, "contains a NUL byte")
	}
	if !utf8.ValidString(string(s)) {
		return ir.Word{}, encodingError(ir.ColumnString, v, "not valid UTF-8")
	}
	var w ir.Word
	copy(w[:], s)
	return w, nil
}

func encodeAddress(v ir.IRValue) (ir.Word, error) {
	s, ok := v.(ir.IRString)
	if !ok {
		return ir.Word{}, encodingError(ir.ColumnAddress, v, "not a string")
	}
	addr, err := ir.ParseAddress(string(s))
	if err != nil {
		return ir.Word{}, encodingError(ir.ColumnAddress, v, err.Error())
	}
	var w ir.Word
	copy(w[ir.WordSize-ir.AddressSize:], addr[:])
	return w, nil
}

func decodeAddress(w ir.Word) (ir.IRValue, error) {
	if !bytes.Equal(w[:ir.WordSize-ir.AddressSize], make([]byte, ir.WordSize-ir.AddressSize)) {
		return nil, ir.Errorf(ir.ErrEncoding, "word %s is not an address", w.Hex())
	}
	var addr ir.Address
	copy(addr[:], w[ir.WordSize-ir.AddressSize:])
	return ir.IRString(addr.Hex()), nil
}

func encodeBoolean(v ir.IRValue) (ir.Word, error) {
	var b bool
	switch val := v.(type) {
	case ir.IRBool:
		b = bool(val)
	case ir.IRInt:
		if val != 0 && val != 1 {
			return ir.Word{}, encodingError(ir.ColumnBoolean, v, "want 0 or 1")
		}
		b = val == 1
	case ir.IRString:
		switch strings.ToLower(strings.TrimSpace(string(val))) {
		case "1", "true":
			b = true
		case "0", "false":
			b = false
		default:
			return ir.Word{}, encodingError(ir.ColumnBoolean, v, "want true, false, 1 or 0")
		}
	default:
		return ir.Word{}, encodingError(ir.ColumnBoolean, v, "not a boolean")
	}

	var w ir.Word
	if b {
		w[ir.WordSize-1] = 1
	}
	return w, nil
}

func numError(err error) string {
	var ne *strconv.NumError
	if errors.As(err, &ne) {
		return ne.Err.Error()
	}
	return err.Error()
}
