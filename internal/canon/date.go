package canon

import (
	"strings"
	"time"
)

// DateLayout is the canonical output layout (DD.MM.YYYY).
const DateLayout = "02.01.2006"

// dateLayouts are tried in order; day and month may have one or two digits.
var dateLayouts = []string{
	"2.1.2006",
	"2006-1-2",
	"2/1/2006",
	"2006/1/2",
	"2006.1.2",
}

// Date reformats the first layout that parses s as DD.MM.YYYY.
// Unparseable or ambiguous input yields false, never an error.
func Date(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return t.Format(DateLayout), true
	}
	return "", false
}
