package raw

import (
	"fmt"

	"github.com/valyala/fastjson"
)

// ValidationResult is the typed outcome of validating an inbound message
// body. Callers branch on Valid explicitly instead of relying on error
// propagation for expected-shape mismatches.
type ValidationResult struct {
	Valid    bool
	Problems []string
}

// requiredStringFields are the body fields that must be present as strings.
var requiredStringFields = []string{"user_id", "event_name", "platform"}

// Validate checks an inbound message body against the expected event shape:
// event_timestamp (integer microseconds), user_id, event_name, platform
// (strings), and items (native array or nested-text string).
func Validate(body []byte) ValidationResult {
	var p fastjson.Parser
	v, err := p.ParseBytes(body)
	if err != nil {
		return ValidationResult{Problems: []string{fmt.Sprintf("body is not valid JSON: %v", err)}}
	}
	if v.Type() != fastjson.TypeObject {
		return ValidationResult{Problems: []string{fmt.Sprintf("body is %s, expected object", v.Type())}}
	}

	var problems []string

	ts := v.Get("event_timestamp")
	switch {
	case ts == nil:
		problems = append(problems, "missing field: event_timestamp")
	case ts.Type() != fastjson.TypeNumber:
		problems = append(problems, fmt.Sprintf("event_timestamp is %s, expected integer", ts.Type()))
	default:
		if _, err := ts.Int64(); err != nil {
			problems = append(problems, "event_timestamp is not an integer")
		}
	}

	for _, field := range requiredStringFields {
		f := v.Get(field)
		switch {
		case f == nil:
			problems = append(problems, "missing field: "+field)
		case f.Type() != fastjson.TypeString:
			problems = append(problems, fmt.Sprintf("%s is %s, expected string", field, f.Type()))
		}
	}

	items := v.Get("items")
	switch {
	case items == nil:
		problems = append(problems, "missing field: items")
	case items.Type() != fastjson.TypeArray && items.Type() != fastjson.TypeString:
		problems = append(problems, fmt.Sprintf("items is %s, expected array or string", items.Type()))
	}

	return ValidationResult{Valid: len(problems) == 0, Problems: problems}
}
