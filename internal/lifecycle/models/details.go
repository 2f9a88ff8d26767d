package models

// Details is the structured payload attached to events and recipients.
// It is serialized only at the storage boundary.
type Details map[string]any

// Clone returns a shallow copy; nil stays nil.
func (d Details) Clone() Details {
	if d == nil {
		return nil
	}
	out := make(Details, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
