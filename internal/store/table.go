package store

import (
	"encoding/base64"

	"github.com/google/uuid"
)

// table keeps records by id in insertion order. Callers hold Store.mu.
type table[T any] struct {
	byID  map[string]T
	order []string
}

func newTable[T any]() *table[T] {
	return &table[T]{byID: make(map[string]T)}
}

func (t *table[T]) get(id string) (T, bool) {
	v, ok := t.byID[id]
	return v, ok
}

func (t *table[T]) put(id string, v T) {
	if _, ok := t.byID[id]; !ok {
		t.order = append(t.order, id)
	}
	t.byID[id] = v
}

func (t *table[T]) remove(id string) bool {
	if _, ok := t.byID[id]; !ok {
		return false
	}
	delete(t.byID, id)
	for i, existing := range t.order {
		if existing == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// filter returns matching records oldest first.
func (t *table[T]) filter(keep func(T) bool) []T {
	result := make([]T, 0)
	for _, id := range t.order {
		v := t.byID[id]
		if keep == nil || keep(v) {
			result = append(result, v)
		}
	}
	return result
}

// newID mints ids shaped like the real service's: base64 of a
// ciscospark:// URI naming the resource.
func newID(resource string) string {
	return base64.RawURLEncoding.EncodeToString([]byte("ciscospark://us/" + resource + "/" + uuid.NewString()))
}
