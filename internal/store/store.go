package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// ErrAbsent is returned by Get when no node exists at the given path.
var ErrAbsent = errors.New("path absent")

// Entry is one child node of a collection. Key is the last path segment.
type Entry struct {
	Key   string
	Value json.RawMessage
}

func (e Entry) Decode(dest any) error { return json.Unmarshal(e.Value, dest) }

// Scalar reads the entry value as a JSON string, or "" if it is not one.
func (e Entry) Scalar() string {
	var s string
	_ = json.Unmarshal(e.Value, &s)
	return s
}

// Patch merges the given fields into an existing document instead of
// replacing it. A nil field value removes the field.
type Patch map[string]any

// Store is a tree-structured key-value store. Nodes are addressed by
// slash-separated paths; a collection is simply a path whose direct
// children are the collection entries.
type Store interface {
	// Get decodes the node at path into dest, or returns ErrAbsent.
	Get(ctx context.Context, path string, dest any) error

	// Children returns the direct children of collection in key order.
	Children(ctx context.Context, collection string) ([]Entry, error)

	// Query returns the children of collection whose document field equals
	// the given value. An empty field matches against the node's scalar
	// value instead.
	Query(ctx context.Context, collection, field, equals string) ([]Entry, error)

	// AtomicUpdate applies all writes as one indivisible unit. A nil value
	// deletes the node and its subtree, a Patch merges fields, any other
	// value replaces the node document.
	AtomicUpdate(ctx context.Context, writes map[string]any) error

	// Append inserts value into collection under a store-assigned key that
	// is monotonically increasing per collection.
	Append(ctx context.Context, collection string, value any) (string, error)
}

// Join builds a normalized absolute path from segments.
func Join(parts ...string) string {
	return normalize(strings.Join(parts, "/"))
}

// Key returns the last segment of a path.
func Key(path string) string {
	path = normalize(path)
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

func normalize(path string) string {
	path = strings.Trim(path, "/")
	return "/" + path
}
