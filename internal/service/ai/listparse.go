package ai

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ParseList salvages a JSON array from model output and coerces every element to text.
// Models sometimes wrap the array in prose or a code fence, and the prose itself may contain brackets
// such as "[4]". Every top-level array that decodes is a candidate: the first non-empty array of
// strings wins, otherwise the first candidate.
func ParseList(raw string) ([]string, error) {
	text := strings.TrimSpace(raw)

	var (
		fallback []any
		found    bool
		lastErr  error
	)
	for offset := 0; offset < len(text); {
		i := strings.IndexByte(text[offset:], '[')
		if i < 0 {
			break
		}
		pos := offset + i

		dec := json.NewDecoder(strings.NewReader(text[pos:]))
		dec.UseNumber()

		var values []any
		if err := dec.Decode(&values); err != nil {
			lastErr = err
			offset = pos + 1
			continue
		}
		if len(values) > 0 && allStrings(values) {
			return coerceAll(values), nil
		}
		if !found {
			fallback, found = values, true
		}
		// nested arrays belong to the value just decoded
		offset = pos + int(dec.InputOffset())
	}

	if found {
		return coerceAll(fallback), nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, lastErr)
	}
	return nil, fmt.Errorf("%w: no JSON array in %q", ErrMalformedResponse, truncate(text, 80))
}

func allStrings(values []any) bool {
	for _, v := range values {
		if _, ok := v.(string); !ok {
			return false
		}
	}
	return true
}

func coerceAll(values []any) []string {
	items := make([]string, 0, len(values))
	for _, v := range values {
		items = append(items, coerceText(v))
	}
	return items
}

func coerceText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
