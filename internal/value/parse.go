package value

import (
	"strconv"
	"strings"

	apperrors "github.com/stratalake/stratalake/internal/errors"
)

// Parse decodes the nested-text encoding emitted by the upstream runtime's
// default object stringification, e.g.
//
//	[{item_id=123, params=[{key=size, value={int_value=2}}]}]
//
// The format is not valid JSON (no quoting, '=' instead of ':'), so it is
// scanned with an explicit depth counter rather than a general parser.
//
// Scalars are coerced: the sentinels "null" and "(not set)" become Null, a
// token containing '.' that parses as a float becomes Float, a token that
// parses cleanly as an integer becomes Int, and anything else stays String.
//
// Parse never panics. Inputs with unbalanced brackets return an error so the
// caller can flag the record and keep the original text verbatim; a bare
// scalar input decodes to its scalar Value.
func Parse(input string) (Value, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return Value{}, apperrors.NewParseError("empty input", nil)
	}
	return parseNested(s)
}

// parseNested dispatches to the array, object, or scalar parser based on the
// leading character.
func parseNested(s string) (Value, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "["):
		return parseArray(s)
	case strings.HasPrefix(s, "{"):
		inner := s[1:]
		if strings.HasSuffix(s, "}") {
			inner = s[1 : len(s)-1]
		}
		return parseObject(inner)
	default:
		return parseScalar(s), nil
	}
}

// parseObject scans the interior of an object (outer braces already
// stripped). A depth-0 '=' switches from key to value mode, a depth-0 ','
// finalizes the current pair, and nested structures are captured verbatim
// into the value buffer until depth returns to zero, then dispatched
// recursively.
func parseObject(s string) (Value, error) {
	var (
		entries []Entry
		key     strings.Builder
		val     strings.Builder
		depth   int
		inKey   = true
	)

	flush := func() error {
		k := strings.TrimSpace(key.String())
		if k != "" {
			v, err := parseNested(strings.TrimSpace(val.String()))
			if err != nil {
				return err
			}
			entries = append(entries, Entry{Key: k, Val: v})
		}
		key.Reset()
		val.Reset()
		inKey = true
		return nil
	}

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '[', '{':
			depth++
			if !inKey {
				val.WriteByte(ch)
			}
		case ']', '}':
			depth--
			if depth < 0 {
				return Value{}, apperrors.NewParseError("unbalanced brackets in object", nil)
			}
			if !inKey {
				val.WriteByte(ch)
			}
		case '=':
			if depth == 0 && inKey {
				inKey = false
			} else if inKey {
				key.WriteByte(ch)
			} else {
				val.WriteByte(ch)
			}
		case ',':
			if depth == 0 {
				if err := flush(); err != nil {
					return Value{}, err
				}
			} else if inKey {
				key.WriteByte(ch)
			} else {
				val.WriteByte(ch)
			}
		default:
			if inKey {
				key.WriteByte(ch)
			} else {
				val.WriteByte(ch)
			}
		}
	}

	if depth != 0 {
		return Value{}, apperrors.NewParseError("unbalanced brackets in object", nil)
	}
	if err := flush(); err != nil {
		return Value{}, err
	}
	return Map(entries...), nil
}

// parseArray scans a full array including its outer brackets, splitting
// elements at depth-1 commas. Nested objects and arrays are captured verbatim
// and dispatched recursively; scalar elements go through scalar coercion.
func parseArray(s string) (Value, error) {
	var (
		elems []Value
		cur   strings.Builder
		depth int
	)

	flush := func() error {
		el := strings.TrimSpace(cur.String())
		cur.Reset()
		if el == "" {
			return nil
		}
		v, err := parseNested(el)
		if err != nil {
			return err
		}
		elems = append(elems, v)
		return nil
	}

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '[', '{':
			depth++
			if depth > 1 {
				cur.WriteByte(ch)
			}
		case ']', '}':
			depth--
			if depth < 0 {
				return Value{}, apperrors.NewParseError("unbalanced brackets in array", nil)
			}
			if depth >= 1 {
				cur.WriteByte(ch)
			}
		case ',':
			if depth == 1 {
				if err := flush(); err != nil {
					return Value{}, err
				}
			} else if depth > 1 {
				cur.WriteByte(ch)
			}
		default:
			if depth >= 1 {
				cur.WriteByte(ch)
			}
		}
	}

	if depth != 0 {
		return Value{}, apperrors.NewParseError("unbalanced brackets in array", nil)
	}
	if err := flush(); err != nil {
		return Value{}, err
	}
	return List(elems...), nil
}

// parseScalar coerces a bare token. The coercion order matches the upstream
// serializer: null sentinels, then float when a '.' is present, then integer,
// falling back to the raw string.
func parseScalar(s string) Value {
	s = strings.TrimSpace(s)
	if s == "null" || s == "(not set)" {
		return Null()
	}
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return Float(f)
		}
		return String(s)
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i)
	}
	return String(s)
}
