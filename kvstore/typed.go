package kvstore

import (
	"fmt"
	"strconv"
)

// FormatError is returned by typed getters when a stored string does not parse
// as the requested type. Err is the underlying strconv error.
type FormatError struct {
	Key   string
	Value string
	Err   error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("value %q for key %q: %s", e.Value, e.Key, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// StringLooker finds the string stored against a key.
type StringLooker interface {
	LookupString(key string) (string, bool, error)
}

// GetInt reads key from r and parses it as an int.
func GetInt(r StringLooker, key string, defValue int) (int, error) {
	s, ok, err := r.LookupString(key)
	if err != nil || !ok {
		return defValue, err
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return defValue, &FormatError{Key: key, Value: s, Err: err}
	}
	return i, nil
}

// GetInt64 reads key from r and parses it as an int64.
func GetInt64(r StringLooker, key string, defValue int64) (int64, error) {
	s, ok, err := r.LookupString(key)
	if err != nil || !ok {
		return defValue, err
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return defValue, &FormatError{Key: key, Value: s, Err: err}
	}
	return i, nil
}

// GetFloat32 reads key from r and parses it as a float32.
func GetFloat32(r StringLooker, key string, defValue float32) (float32, error) {
	s, ok, err := r.LookupString(key)
	if err != nil || !ok {
		return defValue, err
	}
	f, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return defValue, &FormatError{Key: key, Value: s, Err: err}
	}
	return float32(f), nil
}

// GetBool reads key from r and parses it as a bool.
func GetBool(r StringLooker, key string, defValue bool) (bool, error) {
	s, ok, err := r.LookupString(key)
	if err != nil || !ok {
		return defValue, err
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return defValue, &FormatError{Key: key, Value: s, Err: err}
	}
	return b, nil
}

// FormatInt returns the canonical text form of an int.
func FormatInt(v int) string { return strconv.Itoa(v) }

// FormatInt64 returns the canonical text form of an int64.
func FormatInt64(v int64) string { return strconv.FormatInt(v, 10) }

// FormatFloat32 returns the shortest text form that parses back to v.
func FormatFloat32(v float32) string { return strconv.FormatFloat(float64(v), 'g', -1, 32) }

// FormatBool returns "true" or "false".
func FormatBool(v bool) string { return strconv.FormatBool(v) }
