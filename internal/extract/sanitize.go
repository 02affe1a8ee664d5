package extract

import (
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/invoice-bench/constants"
)

// SanitizeFields makes a collaborator's field object fit the payload schema:
// legacy keys are renamed, strings are trimmed, booleans become strings and nested
// objects or arrays are dropped. It returns the new map and a sorted list of the
// changes in "key(reason)" form.
func SanitizeFields(fields map[string]any) (map[string]any, []string) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(fields))
	var changed []string

	for _, k := range keys {
		key := k
		if f, ok := constants.ParseField(k); ok && string(f) != k {
			if _, exists := fields[string(f)]; exists {
				changed = append(changed, k+"(shadowed)")
				continue
			}
			key = string(f)
			changed = append(changed, k+"(renamed)")
		}

		switch t := fields[k].(type) {
		case nil, float64:
			out[key] = t
		case string:
			s := strings.TrimSpace(t)
			if s != t {
				changed = append(changed, k+"(trimmed)")
			}
			out[key] = s
		case bool:
			out[key] = strconv.FormatBool(t)
			changed = append(changed, k+"(bool)")
		default:
			changed = append(changed, k+"(type)")
		}
	}
	sort.Strings(changed)
	return out, changed
}
