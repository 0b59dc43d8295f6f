// Package llmjson decodes JSON documents out of raw LLM output. Models
// frequently wrap their JSON in markdown fences or surround it with prose,
// so a strict decode is tried first and a single extraction pass second.
package llmjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON indicates no decodable JSON document was found in the text.
var ErrNoJSON = errors.New("no JSON document in model output")

// Decode unmarshals the first JSON document found in raw into v.
// Order of attempts: the whole text as-is, the text with markdown code
// fences stripped, then the outermost balanced {...} or [...] fragment.
// There is no repair beyond extraction.
func Decode(raw string, v any) error {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ErrNoJSON
	}

	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}

	if stripped := stripFences(s); stripped != s {
		if err := json.Unmarshal([]byte(stripped), v); err == nil {
			return nil
		}
		s = stripped
	}

	frag, err := Extract(s)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(frag), v); err != nil {
		return fmt.Errorf("%w: extracted fragment is not valid JSON: %v", ErrNoJSON, err)
	}
	return nil
}

// Extract returns the outermost balanced JSON object or array in s,
// whichever opens first. Braces inside string literals are ignored.
func Extract(s string) (string, error) {
	objStart := strings.IndexByte(s, '{')
	arrStart := strings.IndexByte(s, '[')

	start := objStart
	open, clos := byte('{'), byte('}')
	if start == -1 || (arrStart != -1 && arrStart < start) {
		start = arrStart
		open, clos = '[', ']'
	}
	if start == -1 {
		return "", ErrNoJSON
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case clos:
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("%w: unbalanced %q", ErrNoJSON, string(open))
}

// stripFences removes a single wrapping markdown code fence, with or
// without a language tag.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	rest := s[3:]
	if idx := strings.IndexByte(rest, '\n'); idx != -1 {
		rest = rest[idx+1:]
	}
	if idx := strings.LastIndex(rest, "```"); idx != -1 {
		rest = rest[:idx]
	}
	return strings.TrimSpace(rest)
}
