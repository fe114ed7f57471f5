package service

import (
	"encoding/base64"
	"encoding/json"
)

// NotePatch is a decoded set of field replacements. A nil field means
// "unchanged". The wire format is a base64-wrapped flat JSON object; only
// title and content are patchable paths.
type NotePatch struct {
	Title   *string
	Content *string
}

// DecodePatch decodes the base64 JSON patch payload. Unknown keys and
// non-string values are rejected rather than silently dropped, so a client
// bug surfaces as invalid_patch instead of a lost edit.
func DecodePatch(encoded string) (*NotePatch, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &InvalidPatchError{Reason: "patch is not valid base64"}
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, &InvalidPatchError{Reason: "patch is not a JSON object"}
	}

	patch := &NotePatch{}
	for key, value := range fields {
		str, ok := value.(string)
		if !ok {
			return nil, &InvalidPatchError{Reason: "field " + key + " must be a string"}
		}
		switch key {
		case "title":
			s := str
			patch.Title = &s
		case "content":
			s := str
			patch.Content = &s
		default:
			return nil, &InvalidPatchError{Reason: "unknown field " + key}
		}
	}

	return patch, nil
}

// IsEmpty reports whether the patch changes nothing.
func (p *NotePatch) IsEmpty() bool {
	return p.Title == nil && p.Content == nil
}
