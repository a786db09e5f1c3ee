package docstore

import (
	"encoding/base64"
	"encoding/json"

	"github.com/pkg/errors"
)

// cursor marks the last item of a page: its order value and id.
type cursor struct {
	Value json.RawMessage `json:"v"`
	ID    string          `json:"id"`
}

func encodeCursor(value any, id string) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", errors.Wrap(err, "encode cursor")
	}
	b, err := json.Marshal(cursor{Value: raw, ID: id})
	if err != nil {
		return "", errors.Wrap(err, "encode cursor")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func decodeCursor(s string) (cursor, error) {
	var c cursor
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return c, ErrInvalidCursor
	}
	if err := json.Unmarshal(b, &c); err != nil || c.ID == "" {
		return c, ErrInvalidCursor
	}
	if len(c.Value) == 0 {
		c.Value = json.RawMessage("null")
	}
	return c, nil
}

// value returns the decoded order value.
func (c cursor) value() any {
	var v any
	_ = json.Unmarshal(c.Value, &v)
	return v
}
