package client

import (
	"bytes"
	"encoding/json"
	"regexp"
)

var (
	scriptBlock   = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	jsProtocol    = regexp.MustCompile(`(?i)javascript\s*:`)
	inlineHandler = regexp.MustCompile(`(?i)\bon[a-z]+\s*=`)
)

// SanitizeString removes script blocks, javascript: URLs and inline event
// handlers from s.
func SanitizeString(s string) string {
	s = scriptBlock.ReplaceAllString(s, "")
	s = jsProtocol.ReplaceAllString(s, "")
	return inlineHandler.ReplaceAllString(s, "")
}

// SanitizeJSON sanitizes every string value and object key in a JSON
// document. A body that is not JSON is returned unchanged.
func SanitizeJSON(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return body
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil || dec.More() {
		return body
	}

	clean, changed := sanitizeValue(doc)
	if !changed {
		return body
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(clean); err != nil {
		return body
	}
	return bytes.TrimRight(buf.Bytes(), "\n")
}

func sanitizeValue(v any) (any, bool) {
	switch val := v.(type) {
	case string:
		clean := SanitizeString(val)
		return clean, clean != val
	case []any:
		changed := false
		for i, item := range val {
			var c bool
			val[i], c = sanitizeValue(item)
			changed = changed || c
		}
		return val, changed
	case map[string]any:
		changed := false
		out := make(map[string]any, len(val))
		for k, item := range val {
			cleanKey := SanitizeString(k)
			cleanItem, c := sanitizeValue(item)
			out[cleanKey] = cleanItem
			changed = changed || c || cleanKey != k
		}
		return out, changed
	default:
		return v, false
	}
}
