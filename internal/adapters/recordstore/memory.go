package recordstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps tables in process. It backs tests and local runs and
// assigns sequential int64 ids to rows inserted without one.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string][]Record
	nextID map[string]int64
	unique map[string][][]string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		tables: make(map[string][]Record),
		nextID: make(map[string]int64),
		unique: make(map[string][][]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Select runs q against the in-memory rows.
func (m *MemoryStore) Select(_ context.Context, q Query) ([]Record, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []Record
	for _, rec := range m.tables[q.Table] {
		if matchesAll(rec, q.Filters) {
			matched = append(matched, rec)
		}
	}
	if len(q.Order) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			for _, o := range q.Order {
				c, _ := compareValues(matched[i][o.Column], matched[j][o.Column])
				if c == 0 {
					continue
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}
	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[q.Offset:]
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	out := make([]Record, len(matched))
	for i, rec := range matched {
		out[i] = project(rec, q.Columns)
	}
	return out, nil
}

// Insert stores a copy of rec.
func (m *MemoryStore) Insert(_ context.Context, table string, rec Record) (Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if err := checkRecord(rec); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	row := copyRecord(rec)
	if _, ok := row["id"]; !ok {
		m.nextID[table]++
		row["id"] = m.nextID[table]
	}
	if _, ok := row["created_at"]; !ok {
		row["created_at"] = time.Now().UTC()
	}
	for _, cols := range m.unique[table] {
		for _, existing := range m.tables[table] {
			if sameOn(existing, row, cols) {
				return nil, &BackendError{
					Status:  409,
					Code:    "23505",
					Message: fmt.Sprintf("%s on (%s)", ErrDuplicate.Error(), strings.Join(cols, ", ")),
				}
			}
		}
	}
	m.tables[table] = append(m.tables[table], row)
	return copyRecord(row), nil
}

// Update patches every row matching key.
func (m *MemoryStore) Update(_ context.Context, table string, key Filter, patch Record) error {
	if err := checkTable(table); err != nil {
		return err
	}
	if err := key.validate(); err != nil {
		return err
	}
	if err := checkRecord(patch); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, rec := range m.tables[table] {
		if matches(rec, key) {
			for k, v := range patch {
				rec[k] = v
			}
			n++
		}
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Len returns the number of rows in table.
func (m *MemoryStore) Len(table string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables[table])
}

func copyRecord(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

func project(rec Record, cols []string) Record {
	if len(cols) == 0 {
		return copyRecord(rec)
	}
	out := make(Record, len(cols))
	for _, c := range cols {
		if v, ok := rec[c]; ok {
			out[c] = v
		}
	}
	return out
}

func sameOn(a, b Record, cols []string) bool {
	for _, c := range cols {
		cmp, ok := compareValues(a[c], b[c])
		if !ok || cmp != 0 {
			return false
		}
	}
	return true
}

func matchesAll(rec Record, filters []Filter) bool {
	for _, f := range filters {
		if !matches(rec, f) {
			return false
		}
	}
	return true
}

func matches(rec Record, f Filter) bool {
	v := rec[f.Column]
	if f.Value == nil || v == nil {
		switch f.Op {
		case OpEq:
			return f.Value == nil && v == nil
		case OpNeq:
			return (f.Value == nil) != (v == nil)
		default:
			return false
		}
	}
	c, ok := compareValues(v, f.Value)
	if !ok {
		return f.Op == OpNeq
	}
	switch f.Op {
	case OpEq:
		return c == 0
	case OpNeq:
		return c != 0
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	}
	return false
}

// compareValues orders two column values. Numbers compare numerically
// whatever their Go type, times chronologically, everything else as text.
// Nil sorts first. The bool is false when the values are not comparable.
func compareValues(a, b any) (int, bool) {
	switch {
	case a == nil && b == nil:
		return 0, true
	case a == nil:
		return -1, true
	case b == nil:
		return 1, true
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			}
			return 0, true
		}
	}
	if ta, ok := toTime(a); ok {
		if tb, ok := toTime(b); ok {
			return ta.Compare(tb), true
		}
	}
	if ba, ok := a.(bool); ok {
		bb, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case ba == bb:
			return 0, true
		case !ba:
			return -1, true
		}
		return 1, true
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b)), true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		return parsed, err == nil
	}
	return time.Time{}, false
}
