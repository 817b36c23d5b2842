package httputil

import (
	"bytes"
	"encoding/json"
)

// OptionalString distinguishes an absent PATCH field from an explicit null
// (RFC 7396):
//   - Present=false: leave the field alone
//   - Present=true, Value=nil: clear it
//   - Present=true, Value=&s: set it to s
type OptionalString struct {
	Present bool
	Value   *string
}

// UnmarshalJSON is only called for keys present in the document.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Present = true
	if string(bytes.TrimSpace(data)) == "null" {
		o.Value = nil
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// Patch returns nil when the field was absent, a pointer to "" when it was
// null, and the value otherwise. Services treat "" as "clear".
func (o OptionalString) Patch() *string {
	if !o.Present {
		return nil
	}
	if o.Value == nil {
		empty := ""
		return &empty
	}
	return o.Value
}
