package journal

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/chaindb/internal/ir"
)

// marshalObject converts an IRObject to JSON TEXT for storage.
// A nil object is stored as "{}".
//
// Strings are stored byte for byte. Canonical JSON normalizes them to NFC,
// which is right for hashing but would hand replay different bytes than
// the call actually wrote.
func marshalObject(obj ir.IRObject) (string, error) {
	if obj == nil {
		obj = ir.IRObject{}
	}
	data, err := obj.MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// unmarshalObject parses stored JSON TEXT to IRObject.
// Uses ir.IRObject.UnmarshalJSON which keeps large integers exact via
// json.Number.
func unmarshalObject(data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal object: %w", err)
	}
	return obj, nil
}

// unmarshalFields is unmarshalObject for event fields, where an empty object
// means no fields (nil) to match freshly emitted events.
func unmarshalFields(data string) (ir.IRObject, error) {
	obj, err := unmarshalObject(data)
	if err != nil {
		return nil, err
	}
	if len(obj) == 0 {
		return nil, nil
	}
	return obj, nil
}
