// Package settings is the typed key/value persistence layer backing each
// device controller's configuration, implemented on
// github.com/tidwall/buntdb (an embedded, ordered key/value store also
// used elsewhere in the retrieved example pack).
package settings

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/buntdb"
)

// Store is a typed key/value store. Every value is JSON-encoded with a
// small type tag so a reader with no schema can still make sense of a
// raw key: {"type":"string|bool|int|u32","value":...}. Write accepts
// string, bool, int, int64 and uint32 values and rejects any other type;
// the datetime and naivetime tags are defined but never written.
type Store struct {
	db *buntdb.DB
}

// Open opens (creating if necessary) a buntdb file at path. Pass ":memory:"
// for an ephemeral in-process store, used by tests and the emulator.
func Open(path string) (*Store, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("settings: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type envelope struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

const (
	typeString   = "string"
	typeBool     = "bool"
	typeInt      = "int"
	typeU32      = "u32"
	typeDatetime = "datetime"
	typeNaive    = "naivetime"
)

func typeTagFor(v any) (string, error) {
	switch v.(type) {
	case string:
		return typeString, nil
	case bool:
		return typeBool, nil
	case int, int64:
		return typeInt, nil
	case uint32:
		return typeU32, nil
	default:
		return "", fmt.Errorf("settings: unsupported value type %T", v)
	}
}

// Write stores v under key, JSON-encoded with its type tag.
func Write[T any](s *Store, key string, v T) error {
	tag, err := typeTagFor(any(v))
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("settings: marshal %s: %w", key, err)
	}
	env, err := json.Marshal(envelope{Type: tag, Value: raw})
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, string(env), nil)
		return err
	})
}

// Read loads key into a T, returning buntdb.ErrNotFound if absent.
func Read[T any](s *Store, key string) (T, error) {
	var zero T
	var raw string
	err := s.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key)
		if err != nil {
			return err
		}
		raw = v
		return nil
	})
	if err != nil {
		return zero, err
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return zero, fmt.Errorf("settings: decode envelope %s: %w", key, err)
	}
	var out T
	if err := json.Unmarshal(env.Value, &out); err != nil {
		return zero, fmt.Errorf("settings: decode value %s: %w", key, err)
	}
	return out, nil
}

// ReadOr loads key into a T, returning def if the key is absent.
func ReadOr[T any](s *Store, key string, def T) T {
	v, err := Read[T](s, key)
	if err != nil {
		return def
	}
	return v
}

// Delete removes key, treating an absent key as success.
func (s *Store) Delete(key string) error {
	err := s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(key)
		return err
	})
	if err == buntdb.ErrNotFound {
		return nil
	}
	return err
}
