package fetchkit

// Normalized is a list of entities flattened into a lookup table plus the
// original order.
type Normalized[K comparable, T any] struct {
	Entities map[K]T
	IDs      []K
}

// Normalize indexes items by id. A repeated id keeps the last item and its
// first position.
func Normalize[T any, K comparable](items []T, id func(T) K) Normalized[K, T] {
	out := Normalized[K, T]{
		Entities: make(map[K]T, len(items)),
		IDs:      make([]K, 0, len(items)),
	}
	for _, item := range items {
		key := id(item)
		if _, seen := out.Entities[key]; !seen {
			out.IDs = append(out.IDs, key)
		}
		out.Entities[key] = item
	}
	return out
}

// Denormalize returns the entities in ID order.
func (n Normalized[K, T]) Denormalize() []T {
	out := make([]T, 0, len(n.IDs))
	for _, id := range n.IDs {
		if item, ok := n.Entities[id]; ok {
			out = append(out, item)
		}
	}
	return out
}
