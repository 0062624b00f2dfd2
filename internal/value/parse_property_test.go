package value

import (
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestProperty_ParseNeverPanics feeds arbitrary strings through the parser.
// Any input must produce either a Value or an error — never a panic.
func TestProperty_ParseNeverPanics(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("arbitrary input never panics", prop.ForAll(
		func(s string) (ok bool) {
			defer func() {
				if r := recover(); r != nil {
					ok = false
				}
			}()
			_, _ = Parse(s)
			return true
		},
		gen.AnyString(),
	))

	// Bias toward inputs that look like the nested-text encoding, since
	// random strings rarely exercise the structural paths.
	structural := gen.SliceOf(gen.OneConstOf("{", "}", "[", "]", "=", ",", "a", "1", ".", " ", "null")).
		Map(func(parts []string) string { return strings.Join(parts, "") })

	properties.Property("bracket-heavy input never panics", prop.ForAll(
		func(s string) (ok bool) {
			defer func() {
				if r := recover(); r != nil {
					ok = false
				}
			}()
			_, _ = Parse(s)
			return true
		},
		structural,
	))

	properties.TestingRun(t)
}

// TestProperty_ParseDeterministic verifies that identical input always yields
// structurally identical output, including key order.
func TestProperty_ParseDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	keyGen := gen.RegexMatch("[a-z_]{1,8}")
	scalarGen := gen.OneGenOf(
		gen.Const("null"),
		gen.Const("(not set)"),
		gen.Int64().Map(func(i int64) string { return strconv.FormatInt(i, 10) }),
		gen.RegexMatch("[a-z0-9 ]{0,12}"),
	)

	properties.Property("identical input yields identical trees", prop.ForAll(
		func(keys []string, val string) bool {
			var sb strings.Builder
			sb.WriteString("[{")
			for i, k := range keys {
				if i > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(k)
				sb.WriteString("=")
				sb.WriteString(val)
			}
			sb.WriteString("}]")
			input := sb.String()

			a, errA := Parse(input)
			b, errB := Parse(input)
			if (errA == nil) != (errB == nil) {
				return false
			}
			if errA != nil {
				return true
			}
			return a.Equal(b)
		},
		gen.SliceOfN(3, keyGen),
		scalarGen,
	))

	properties.TestingRun(t)
}
