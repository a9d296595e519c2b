// Package store reads and writes the realtime tree the functions react to.
//
// Paths are slash separated ("users/abc/nearby"). Writes are full value
// replaces: a nil, empty list or empty object removes the node, the same way
// the Realtime Database drops empty children.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidPath = errors.New("invalid store path")

type Store interface {
	// Get decodes the node at path into v. A missing node leaves v untouched.
	Get(ctx context.Context, path string, v interface{}) error
	Set(ctx context.Context, path string, v interface{}) error
	// Update writes every relative path of values under path in one operation.
	Update(ctx context.Context, path string, values map[string]interface{}) error
	// Delete removes the node at path. Deleting a missing node is not an error.
	Delete(ctx context.Context, path string) error
}

func Join(segs ...string) string {
	parts := make([]string, 0, len(segs))
	for _, s := range segs {
		if s = strings.Trim(s, "/"); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}

func split(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// normalize turns v into its JSON tree and strips nulls and empty containers.
// A nil result means the node should not exist.
func normalize(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding value: %w", err)
	}
	var n interface{}
	if err := json.Unmarshal(b, &n); err != nil {
		return nil, fmt.Errorf("decoding value: %w", err)
	}
	return prune(n), nil
}

func prune(n interface{}) interface{} {
	switch x := n.(type) {
	case map[string]interface{}:
		for k, v := range x {
			if p := prune(v); p == nil {
				delete(x, k)
			} else {
				x[k] = p
			}
		}
		if len(x) == 0 {
			return nil
		}
		return x
	case []interface{}:
		out := make([]interface{}, 0, len(x))
		for _, v := range x {
			if p := prune(v); p != nil {
				out = append(out, p)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return n
	}
}

func convert(src, dst interface{}) error {
	b, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("encoding node: %w", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decoding node: %w", err)
	}
	return nil
}
