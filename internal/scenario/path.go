package scenario

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// lookup evaluates a dotted path such as $.data[0].id against decoded
// JSON. ok is false when any segment is missing.
func lookup(doc any, path string) (v any, ok bool, err error) {
	rest, found := strings.CutPrefix(path, "$")
	if !found {
		return nil, false, fmt.Errorf("path must start with $: %q", path)
	}
	rest = strings.TrimPrefix(rest, ".")
	cur := doc
	if rest == "" {
		return cur, true, nil
	}

	for _, seg := range strings.Split(rest, ".") {
		field, idx, hasIdx := strings.Cut(seg, "[")
		if field != "" {
			m, isMap := cur.(map[string]any)
			if !isMap {
				return nil, false, nil
			}
			if cur, found = m[field]; !found {
				return nil, false, nil
			}
		}
		for hasIdx {
			var num string
			num, idx, _ = strings.Cut(idx, "]")
			i, err := strconv.Atoi(num)
			if err != nil {
				return nil, false, fmt.Errorf("invalid index in %q: %w", path, err)
			}
			arr, isArr := cur.([]any)
			if !isArr || i < 0 || i >= len(arr) {
				return nil, false, nil
			}
			cur = arr[i]
			_, idx, hasIdx = strings.Cut(idx, "[")
		}
	}
	return cur, true, nil
}

// expand replaces {{name}} with a captured or declared variable and
// {{env.NAME}} with an environment variable.
func expand(s string, vars map[string]string) (string, error) {
	var b strings.Builder
	for {
		start := strings.Index(s, "{{")
		if start == -1 {
			b.WriteString(s)
			return b.String(), nil
		}
		end := strings.Index(s[start:], "}}")
		if end == -1 {
			return "", fmt.Errorf("unterminated template expression at position %d", start)
		}
		expr := strings.TrimSpace(s[start+2 : start+end])

		var val string
		if name, isEnv := strings.CutPrefix(expr, "env."); isEnv {
			val = os.Getenv(name)
		} else if v, ok := vars[expr]; ok {
			val = v
		} else {
			return "", fmt.Errorf("unresolved template expression %q", expr)
		}
		b.WriteString(s[:start])
		b.WriteString(val)
		s = s[start+end+2:]
	}
}

// expandAll applies expand to every string inside v.
func expandAll(v any, vars map[string]string) (any, error) {
	switch x := v.(type) {
	case string:
		return expand(x, vars)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			ev, err := expandAll(e, vars)
			if err != nil {
				return nil, err
			}
			out[k] = ev
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			ev, err := expandAll(e, vars)
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	default:
		return v, nil
	}
}

// stringify renders a captured JSON value as template text.
func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}
