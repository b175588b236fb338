package cmap

// Range iterates over all key-value pairs.
//
// The callback returns false to stop iteration.
// Note: locks are acquired shard by shard, so the view is point-in-time
// per shard, not across the whole map.
func (m *Map[V]) Range(fn func(key string, value V) bool) {
	for _, shard := range m.shards {
		shard.mu.RLock()
		for k, v := range shard.items {
			if !fn(k, v) {
				shard.mu.RUnlock()
				return
			}
		}
		shard.mu.RUnlock()
	}
}

// Item is one key-value pair returned by Items.
type Item[V any] struct {
	Key   string
	Value V
}

// Items returns all key-value pairs as a slice snapshot.
func (m *Map[V]) Items() []Item[V] {
	items := make([]Item[V], 0, m.Count())
	m.Range(func(key string, value V) bool {
		items = append(items, Item[V]{Key: key, Value: value})
		return true
	})
	return items
}

// Keys returns all keys.
func (m *Map[V]) Keys() []string {
	keys := make([]string, 0, m.Count())
	m.Range(func(key string, _ V) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}
