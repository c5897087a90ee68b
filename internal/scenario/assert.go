package scenario

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// checkBody evaluates path assertions against a JSON body. Paths are
// checked in sorted order so failures are reported deterministically.
func checkBody(body []byte, want map[string]any) error {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("body is not valid JSON: %w", err)
	}
	paths := make([]string, 0, len(want))
	for p := range want {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		got, ok, err := lookup(doc, p)
		if err != nil {
			return err
		}
		if ops, isOps := want[p].(map[string]any); isOps {
			if err := checkOps(p, got, ok, ops); err != nil {
				return err
			}
			continue
		}
		if !ok {
			return fmt.Errorf("%s: not found", p)
		}
		if !equal(got, want[p]) {
			return fmt.Errorf("%s: expected %v, got %v", p, want[p], got)
		}
	}
	return nil
}

func checkOps(path string, got any, found bool, ops map[string]any) error {
	for op, want := range ops {
		if op == "exists" {
			b, isBool := want.(bool)
			if !isBool {
				return fmt.Errorf("%s: exists takes a boolean", path)
			}
			if b != found {
				return fmt.Errorf("%s: expected exists=%v", path, b)
			}
			continue
		}
		if !found {
			return fmt.Errorf("%s: not found for %s check", path, op)
		}

		switch op {
		case "eq":
			if !equal(got, want) {
				return fmt.Errorf("%s: expected %v, got %v", path, want, got)
			}
		case "ne":
			if equal(got, want) {
				return fmt.Errorf("%s: expected anything but %v", path, want)
			}
		case "gte", "lte":
			g, gerr := number(got)
			w, werr := number(want)
			if gerr != nil || werr != nil {
				return fmt.Errorf("%s: %s needs numbers, got %v and %v", path, op, got, want)
			}
			if op == "gte" && g < w {
				return fmt.Errorf("%s: expected >= %v, got %v", path, w, g)
			}
			if op == "lte" && g > w {
				return fmt.Errorf("%s: expected <= %v, got %v", path, w, g)
			}
		case "len":
			w, err := number(want)
			if err != nil {
				return fmt.Errorf("%s: len needs a number", path)
			}
			n, err := length(got)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if float64(n) != w {
				return fmt.Errorf("%s: expected length %v, got %d", path, w, n)
			}
		case "contains":
			if !strings.Contains(fmt.Sprint(got), fmt.Sprint(want)) {
				return fmt.Errorf("%s: expected to contain %q, got %q", path, fmt.Sprint(want), fmt.Sprint(got))
			}
		case "regex":
			pattern, isStr := want.(string)
			if !isStr {
				return fmt.Errorf("%s: regex takes a string pattern", path)
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return fmt.Errorf("%s: invalid regex %q: %w", path, pattern, err)
			}
			if !re.MatchString(fmt.Sprint(got)) {
				return fmt.Errorf("%s: %q does not match %q", path, fmt.Sprint(got), pattern)
			}
		default:
			return fmt.Errorf("%s: unknown operator %q", path, op)
		}
	}
	return nil
}

// equal compares numerically when both sides are numbers and by string
// form otherwise. A number never equals a string.
func equal(got, want any) bool {
	g, gerr := number(got)
	w, werr := number(want)
	if gerr == nil && werr == nil {
		return g == w
	}
	if (gerr == nil) != (werr == nil) {
		return false
	}
	return fmt.Sprint(got) == fmt.Sprint(want)
}

// number accepts the numeric types JSON and YAML decoding produce.
func number(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("%v (%T) is not numeric", v, v)
	}
}

func length(v any) (int, error) {
	switch x := v.(type) {
	case []any:
		return len(x), nil
	case map[string]any:
		return len(x), nil
	case string:
		return len(x), nil
	default:
		return 0, fmt.Errorf("%T has no length", v)
	}
}
