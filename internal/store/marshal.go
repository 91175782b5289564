package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/pledge/internal/model"
)

// marshalPayload converts an event payload to canonical JSON TEXT for storage.
func marshalPayload(payload model.Object) (string, error) {
	if payload == nil {
		payload = model.Object{}
	}
	data, err := model.MarshalCanonical(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

// unmarshalPayload parses canonical JSON TEXT back to an Object.
// Large integers survive because Object.UnmarshalJSON decodes with UseNumber.
func unmarshalPayload(data string) (model.Object, error) {
	if data == "" || data == "{}" {
		return model.Object{}, nil
	}
	var obj model.Object
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return obj, nil
}

// toInt64 converts a uint64 for an INTEGER column.
func toInt64(field string, v uint64) (int64, error) {
	if v > model.MaxStoredValue {
		return 0, fmt.Errorf("%s %d: %w", field, v, ErrOutOfRange)
	}
	return int64(v), nil
}

// fromInt64 converts an INTEGER column back to uint64.
func fromInt64(field string, v int64) (uint64, error) {
	if v < 0 {
		return 0, fmt.Errorf("%s is negative in storage: %d", field, v)
	}
	return uint64(v), nil
}
