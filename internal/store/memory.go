package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/herd-1807-capstone/api-routes/internal/shared/apperr"
)

// Memory is an in-process Store with the same semantics as the Postgres
// implementation. It backs the server when no database is configured and
// stands in for the real store in service tests.
type Memory struct {
	mu    sync.RWMutex
	nodes map[string]json.RawMessage
	seqs  map[string]int64
}

func NewMemory() *Memory {
	return &Memory{
		nodes: map[string]json.RawMessage{},
		seqs:  map[string]int64{},
	}
}

func (m *Memory) Get(ctx context.Context, path string, dest any) error {
	m.mu.RLock()
	raw, ok := m.nodes[normalize(path)]
	m.mu.RUnlock()
	if !ok {
		return ErrAbsent
	}
	return json.Unmarshal(raw, dest)
}

func (m *Memory) Children(ctx context.Context, collection string) ([]Entry, error) {
	prefix := normalize(collection) + "/"

	m.mu.RLock()
	var entries []Entry
	for path, raw := range m.nodes {
		if !strings.HasPrefix(path, prefix) || strings.Contains(path[len(prefix):], "/") {
			continue
		}
		entries = append(entries, Entry{Key: path[len(prefix):], Value: raw})
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

func (m *Memory) Query(ctx context.Context, collection, field, equals string) ([]Entry, error) {
	children, err := m.Children(ctx, collection)
	if err != nil {
		return nil, err
	}

	var matched []Entry
	for _, e := range children {
		if field == "" {
			if e.Scalar() == equals {
				matched = append(matched, e)
			}
			continue
		}
		var doc map[string]json.RawMessage
		if json.Unmarshal(e.Value, &doc) != nil {
			continue
		}
		var val string
		if json.Unmarshal(doc[field], &val) == nil && val == equals {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

func (m *Memory) AtomicUpdate(ctx context.Context, writes map[string]any) error {
	// marshal everything up front so a bad value cannot leave a partial
	// update behind
	type op struct {
		path  string
		raw   json.RawMessage
		patch map[string]json.RawMessage // nil raw = remove field
		del   bool
	}
	ops := make([]op, 0, len(writes))
	for path, value := range writes {
		o := op{path: normalize(path)}
		switch v := value.(type) {
		case nil:
			o.del = true
		case Patch:
			fields := make(map[string]json.RawMessage, len(v))
			for field, fv := range v {
				if fv == nil {
					fields[field] = nil
					continue
				}
				raw, err := json.Marshal(fv)
				if err != nil {
					return apperr.Invalid(fmt.Sprintf("encode %s.%s: %v", path, field, err))
				}
				fields[field] = raw
			}
			o.patch = fields
		default:
			raw, err := json.Marshal(v)
			if err != nil {
				return apperr.Invalid(fmt.Sprintf("encode %s: %v", path, err))
			}
			o.raw = raw
		}
		ops = append(ops, o)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range ops {
		switch {
		case o.del:
			delete(m.nodes, o.path)
			for path := range m.nodes {
				if strings.HasPrefix(path, o.path+"/") {
					delete(m.nodes, path)
				}
			}
		case o.patch != nil:
			doc := map[string]json.RawMessage{}
			if raw, ok := m.nodes[o.path]; ok {
				_ = json.Unmarshal(raw, &doc)
			}
			for field, raw := range o.patch {
				if raw == nil {
					delete(doc, field)
					continue
				}
				doc[field] = raw
			}
			merged, _ := json.Marshal(doc)
			m.nodes[o.path] = merged
		default:
			m.nodes[o.path] = o.raw
		}
	}
	return nil
}

func (m *Memory) Append(ctx context.Context, collection string, value any) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", apperr.Invalid(fmt.Sprintf("encode %s: %v", collection, err))
	}

	coll := normalize(collection)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seqs[coll]++
	key := appendKey(m.seqs[coll])
	m.nodes[coll+"/"+key] = raw
	return key, nil
}

// appendKey formats a sequence number so lexicographic key order matches
// append order.
func appendKey(seq int64) string {
	return fmt.Sprintf("%012d", seq)
}
