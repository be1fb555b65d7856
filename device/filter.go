package device

// Template is one attribute-match pattern. A record matches a template when
// every key/value pair in it equals the record's attribute of the same name.
// The empty template matches every record.
type Template map[string]string

// Filter is an OR of Templates: a record is kept when it matches at least one
// of them. A nil or empty Filter keeps everything.
type Filter []Template

// Matches reports whether the record satisfies at least one template.
func (f Filter) Matches(info Info) bool {
	if len(f) == 0 {
		return true
	}
	for _, tpl := range f {
		if tpl.matches(info) {
			return true
		}
	}
	return false
}

func (t Template) matches(info Info) bool {
	for key, want := range t {
		got, ok := info.Attr(key)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// Apply returns a new snapshot holding only the records that match the
// filter. The input map is never mutated.
func (f Filter) Apply(devices Map) Map {
	if len(f) == 0 {
		return devices
	}
	out := make(Map, len(devices))
	for id, info := range devices {
		if f.Matches(info) {
			out[id] = info
		}
	}
	return out
}
