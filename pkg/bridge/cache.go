package bridge

// PropertyCache holds the last known value of each property per identifier.
// It is only valid as of the last flush and has no eviction other than
// Forget and Clear.
type PropertyCache struct {
	entries map[string]map[string]any
}

// NewPropertyCache returns an empty cache.
func NewPropertyCache() *PropertyCache {
	return &PropertyCache{entries: make(map[string]map[string]any)}
}

// Lookup returns the cached value for (id, name). A cached nil is reported
// as present.
func (c *PropertyCache) Lookup(id, name string) (any, bool) {
	props, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	v, ok := props[name]
	return v, ok
}

// Store caches value for (id, name).
func (c *PropertyCache) Store(id, name string, value any) {
	if c.entries == nil {
		c.entries = make(map[string]map[string]any)
	}
	props := c.entries[id]
	if props == nil {
		props = make(map[string]any)
		c.entries[id] = props
	}
	props[name] = value
}

// Delete drops the entry for (id, name).
func (c *PropertyCache) Delete(id, name string) {
	delete(c.entries[id], name)
}

// Forget drops every entry for id.
func (c *PropertyCache) Forget(id string) {
	delete(c.entries, id)
}

// Clear drops the whole cache.
func (c *PropertyCache) Clear() {
	clear(c.entries)
}

// Len returns the number of identifiers with cached values.
func (c *PropertyCache) Len() int {
	return len(c.entries)
}
