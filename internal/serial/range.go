// Package serial parses the serial-number expressions entered on BOLs:
// single serials, comma lists, and prefix ranges in both the full form
// ("HS-00100-HS-00110") and the shorthand form ("HS-00100-110").
package serial

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxRangeSize caps a single range expansion. Anything larger is almost
// certainly a typo in the range bounds.
const MaxRangeSize = 10000

// Parse expands a serial expression into the full list of serials, in
// input order, with duplicates removed. Tokens are separated by commas
// or newlines; whitespace around tokens is ignored.
func Parse(expr string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)

	for _, token := range splitTokens(expr) {
		serials, err := expandToken(token)
		if err != nil {
			return nil, err
		}
		for _, sn := range serials {
			if seen[sn] {
				continue
			}
			seen[sn] = true
			out = append(out, sn)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty serial expression")
	}
	return out, nil
}

func splitTokens(expr string) []string {
	fields := strings.FieldsFunc(expr, func(r rune) bool {
		return r == ',' || r == '\n' || r == ';'
	})
	var tokens []string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// expandToken expands one token: a single serial or a range.
func expandToken(token string) ([]string, error) {
	// Try every split point; prefer a full start-end pair over the
	// digits-only shorthand so "A-1-A-2" reads as A-1..A-2.
	var shorthand *rangeBounds
	for i := 0; i < len(token); i++ {
		if token[i] != '-' {
			continue
		}
		left, right := token[:i], token[i+1:]
		lp, ld, lok := splitTail(left)
		if !lok {
			continue
		}
		rp, rd, rok := splitTail(right)
		if rok && rp == lp && rd != right {
			// Full form: right is a complete serial with the same prefix.
			// (rd != right rules out a bare number, handled as shorthand.)
			return expandRange(rangeBounds{prefix: lp, startDigits: ld, endDigits: rd}, token)
		}
		if shorthand == nil && isDigits(right) {
			shorthand = &rangeBounds{prefix: lp, startDigits: ld, endDigits: right}
		}
	}
	if shorthand != nil {
		return expandRange(*shorthand, token)
	}

	// Not a range: a plain serial, which must end in digits so ranges
	// over it stay well defined.
	if _, _, ok := splitTail(token); !ok {
		return nil, fmt.Errorf("serial %q must end in digits", token)
	}
	return []string{token}, nil
}

type rangeBounds struct {
	prefix      string
	startDigits string
	endDigits   string
}

func expandRange(b rangeBounds, token string) ([]string, error) {
	start, err := strconv.ParseInt(b.startDigits, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("range %q: bad start: %w", token, err)
	}
	end, err := strconv.ParseInt(b.endDigits, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("range %q: bad end: %w", token, err)
	}
	if end < start {
		return nil, fmt.Errorf("range %q runs backwards (%d > %d)", token, start, end)
	}
	if end-start+1 > MaxRangeSize {
		return nil, fmt.Errorf("range %q expands to %d serials (limit %d)", token, end-start+1, MaxRangeSize)
	}

	// Zero-padding follows the start bound.
	width := len(b.startDigits)
	out := make([]string, 0, end-start+1)
	for n := start; n <= end; n++ {
		out = append(out, fmt.Sprintf("%s%0*d", b.prefix, width, n))
	}
	return out, nil
}

// splitTail splits a serial into its prefix and trailing digit run.
// ok is false when the serial has no trailing digits.
func splitTail(s string) (prefix, digits string, ok bool) {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	if i == len(s) || len(s) == 0 {
		return "", "", false
	}
	return s[:i], s[i:], true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
