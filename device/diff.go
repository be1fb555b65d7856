package device

// Diff compares two snapshots by identifier. removed holds the records of
// previous whose identifier is gone from current; added holds the records of
// current whose identifier is new. Identifiers present in both are ignored:
// identity is tracked by id only, so an attribute change on a still-present
// device is not reported as a removal or an addition.
func Diff(current, previous Map) (removed, added Map) {
	removed = make(Map)
	added = make(Map)
	for id, info := range previous {
		if _, ok := current[id]; !ok {
			removed[id] = info
		}
	}
	for id, info := range current {
		if _, ok := previous[id]; !ok {
			added[id] = info
		}
	}
	return removed, added
}
