package engine

import (
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/roach88/chaindb/internal/codec"
	"github.com/roach88/chaindb/internal/ir"
)

// Argument decoding for actions. Every helper fails with
// ir.ErrInvalidArgument naming the offending key.

func invalidArg(key, format string, args ...any) *ir.Error {
	e := ir.Errorf(ir.ErrInvalidArgument, format, args...)
	return e.With("argument", key)
}

func argValue(args ir.IRObject, key string) (ir.IRValue, error) {
	v, ok := args[key]
	if !ok {
		return nil, invalidArg(key, "missing argument %q", key)
	}
	return v, nil
}

func argAddress(args ir.IRObject, key string) (ir.Address, error) {
	v, err := argValue(args, key)
	if err != nil {
		return ir.Address{}, err
	}
	s, ok := v.(ir.IRString)
	if !ok {
		return ir.Address{}, invalidArg(key, "argument %q must be an address string", key)
	}
	addr, err := ir.ParseAddress(string(s))
	if err != nil {
		return ir.Address{}, invalidArg(key, "argument %q: %v", key, err)
	}
	return addr, nil
}

// argUint accepts a non-negative IRInt or a decimal IRString, so amounts
// above MaxInt64 survive canonical JSON.
func argUint(args ir.IRObject, key string) (uint64, error) {
	v, err := argValue(args, key)
	if err != nil {
		return 0, err
	}
	return uintOf(key, v)
}

// argUintOr is argUint with a default for a missing key.
func argUintOr(args ir.IRObject, key string, def uint64) (uint64, error) {
	if _, ok := args[key]; !ok {
		return def, nil
	}
	return argUint(args, key)
}

func uintOf(key string, v ir.IRValue) (uint64, error) {
	switch n := v.(type) {
	case ir.IRInt:
		if n < 0 {
			return 0, invalidArg(key, "argument %q must not be negative", key)
		}
		return uint64(n), nil
	case ir.IRString:
		u, err := strconv.ParseUint(string(n), 10, 64)
		if err != nil {
			return 0, invalidArg(key, "argument %q: %q is not an unsigned integer", key, string(n))
		}
		return u, nil
	}
	return 0, invalidArg(key, "argument %q must be an integer", key)
}

// argName reads a byte-string name. Names longer than a word are truncated.
func argName(args ir.IRObject, key string) (ir.Word, error) {
	v, err := argValue(args, key)
	if err != nil {
		return ir.Word{}, err
	}
	s, ok := v.(ir.IRString)
	if !ok {
		return ir.Word{}, invalidArg(key, "argument %q must be a string", key)
	}
	return ir.NameWord(string(s)), nil
}

func argArray(args ir.IRObject, key string) (ir.IRArray, error) {
	v, err := argValue(args, key)
	if err != nil {
		return nil, err
	}
	arr, ok := v.(ir.IRArray)
	if !ok {
		return nil, invalidArg(key, "argument %q must be an array", key)
	}
	return arr, nil
}

// argValues reads the column values of a row.
func argValues(args ir.IRObject, key string) ([]ir.IRValue, error) {
	arr, err := argArray(args, key)
	if err != nil {
		return nil, err
	}
	return []ir.IRValue(arr), nil
}

// argInts reads a list of column positions. Range is not checked here: a
// position outside the table is a schema mismatch, reported by the row store.
func argInts(args ir.IRObject, key string) ([]int, error) {
	arr, err := argArray(args, key)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(arr))
	for i, v := range arr {
		n, ok := v.(ir.IRInt)
		if !ok {
			return nil, invalidArg(key, "argument %q[%d] must be a column position", key, i)
		}
		out[i] = int(max(min(int64(n), math.MaxInt), math.MinInt))
	}
	return out, nil
}

// checkText rejects strings that are not valid UTF-8 anywhere in v. The
// journal stores arguments as JSON text, which cannot carry such strings.
func checkText(v ir.IRValue) error {
	switch val := v.(type) {
	case ir.IRString:
		if !utf8.ValidString(string(val)) {
			return ir.Errorf(ir.ErrInvalidArgument, "string %q is not valid UTF-8", string(val))
		}
	case ir.IRArray:
		for _, elem := range val {
			if err := checkText(elem); err != nil {
				return err
			}
		}
	case ir.IRObject:
		for k, elem := range val {
			if !utf8.ValidString(k) {
				return ir.Errorf(ir.ErrInvalidArgument, "key %q is not valid UTF-8", k)
			}
			if err := checkText(elem); err != nil {
				return err
			}
		}
	}
	return nil
}

// argColumns reads column definitions: objects with a "name" and a "type"
// given either as a type name or as a numeric tag. Unknown tags are passed
// through so the registry reports them as unsupported.
func argColumns(args ir.IRObject, key string) ([]ir.ColumnDefinition, error) {
	arr, err := argArray(args, key)
	if err != nil {
		return nil, err
	}
	cols := make([]ir.ColumnDefinition, len(arr))
	for i, v := range arr {
		obj, ok := v.(ir.IRObject)
		if !ok {
			return nil, invalidArg(key, "argument %q[%d] must be an object", key, i)
		}
		name, ok := obj.String("name")
		if !ok {
			return nil, invalidArg(key, "argument %q[%d] needs a string name", key, i)
		}
		var tag ir.ColumnType
		switch t := obj["type"].(type) {
		case ir.IRString:
			tag, err = codec.ParseType(string(t))
			if err != nil {
				return nil, err
			}
		case ir.IRInt:
			if t < 0 || t > math.MaxUint8 {
				return nil, ir.Errorf(ir.ErrUnsupportedType, "unsupported column type tag %d", int64(t))
			}
			tag = ir.ColumnType(t)
		default:
			return nil, invalidArg(key, "argument %q[%d] needs a type", key, i)
		}
		cols[i] = ir.ColumnDefinition{Type: tag, Name: ir.NameWord(name)}
	}
	return cols, nil
}

// columnsValue renders column definitions for arguments and results.
func columnsValue(cols []ir.ColumnDefinition) ir.IRArray {
	out := make(ir.IRArray, len(cols))
	for i, c := range cols {
		out[i] = ir.IRObject{
			"name": ir.IRString(c.Name.Text()),
			"type": ir.IRString(c.Type.String()),
			"tag":  ir.IRInt(c.Type),
		}
	}
	return out
}
