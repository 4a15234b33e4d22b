package model

import (
	"bytes"
	"encoding/json"
	"strconv"
)

var jsonNull = []byte("null")

// NullInt is an integer that may be absent. The zero value is null.
type NullInt struct {
	Int   int
	Valid bool
}

// IntOf returns a present NullInt holding n.
func IntOf(n int) NullInt {
	return NullInt{Int: n, Valid: true}
}

// Or returns the held value, or def when null.
func (n NullInt) Or(def int) int {
	if !n.Valid {
		return def
	}
	return n.Int
}

func (n NullInt) String() string {
	if !n.Valid {
		return "null"
	}
	return strconv.Itoa(n.Int)
}

// MarshalJSON encodes null for an absent value.
func (n NullInt) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return jsonNull, nil
	}
	return []byte(strconv.Itoa(n.Int)), nil
}

// UnmarshalJSON accepts a number or null.
func (n *NullInt) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		*n = NullInt{}
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = IntOf(v)
	return nil
}
