package page

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// ParseNumber coerces a locale-formatted integer ("1,234,567", "1 234 567",
// "1.234.567") to an int64. Anything unparseable yields 0.
func ParseNumber(s string) int64 {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0
	}
	n, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil {
		return 0
	}
	if neg {
		return -n
	}
	return n
}

// Percent returns part/total as a percentage. A zero or negative total
// yields 0 rather than NaN or Inf.
func Percent(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// flexNumber decodes a JSON number or a formatted numeric string.
type flexNumber int64

func (f *flexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*f = 0
			return nil
		}
		*f = flexNumber(ParseNumber(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		*f = 0
		return nil
	}
	if i, err := n.Int64(); err == nil {
		*f = flexNumber(i)
		return nil
	}
	if fl, err := n.Float64(); err == nil {
		*f = flexNumber(int64(fl))
		return nil
	}
	*f = 0
	return nil
}
