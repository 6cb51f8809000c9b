package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadList is returned when a message is not a well-formed slim list.
var ErrBadList = errors.New("slim: malformed list")

// EncodeList encodes items as a slim list. Each item is a string or a
// nested []any; anything else is formatted with fmt.Sprint.
//
//	[NNNNNN:LLLLLL:item:LLLLLL:item:]
func EncodeList(items []any) string {
	var sb strings.Builder
	sb.WriteString("[")
	fmt.Fprintf(&sb, "%06d:", len(items))
	for _, it := range items {
		var s string
		switch v := it.(type) {
		case string:
			s = v
		case []any:
			s = EncodeList(v)
		case []string:
			s = EncodeList(stringsToAny(v))
		default:
			s = fmt.Sprint(v)
		}
		fmt.Fprintf(&sb, "%06d:%s:", len(s), s)
	}
	sb.WriteString("]")
	return sb.String()
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// DecodeList decodes a slim list. Items that are themselves well-formed
// lists decode to []any, all others to string.
func DecodeList(s string) ([]any, error) {
	if len(s) < 9 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("%w: %.40q", ErrBadList, s)
	}
	body := s[1 : len(s)-1]
	count, rest, err := takeNumber(body)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, count)
	for i := 0; i < count; i++ {
		var n int
		n, rest, err = takeNumber(rest)
		if err != nil {
			return nil, err
		}
		if len(rest) < n+1 || rest[n] != ':' {
			return nil, fmt.Errorf("%w: item %d overruns list", ErrBadList, i)
		}
		item := rest[:n]
		rest = rest[n+1:]
		if strings.HasPrefix(item, "[") && strings.HasSuffix(item, "]") {
			if nested, err := DecodeList(item); err == nil {
				out = append(out, nested)
				continue
			}
		}
		out = append(out, item)
	}
	if rest != "" {
		return nil, fmt.Errorf("%w: trailing data", ErrBadList)
	}
	return out, nil
}

// takeNumber consumes "NNNNNN:" from the front of s.
func takeNumber(s string) (int, string, error) {
	if len(s) < slimLenDigits+1 || s[slimLenDigits] != ':' {
		return 0, "", fmt.Errorf("%w: bad length field", ErrBadList)
	}
	n, err := strconv.Atoi(s[:slimLenDigits])
	if err != nil || n < 0 {
		return 0, "", fmt.Errorf("%w: bad length field %q", ErrBadList, s[:slimLenDigits])
	}
	return n, s[slimLenDigits+1:], nil
}
