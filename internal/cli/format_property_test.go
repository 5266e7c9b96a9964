package cli

import (
	"math"
	"regexp"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var groupedNumberPattern = regexp.MustCompile(`^\d{1,3}(,\d{3})*$`)

func TestProperty_MoneyFormatting(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("FormatMoney produces grouped digits with two decimals", prop.ForAll(
		func(amount float64) bool {
			if math.IsNaN(amount) || math.IsInf(amount, 0) {
				return true
			}

			formatted := FormatMoney(amount)

			if amount >= 0 {
				if !strings.HasPrefix(formatted, "$") {
					t.Logf("expected $ prefix for %f, got %s", amount, formatted)
					return false
				}
			} else if !strings.HasPrefix(formatted, "-$") {
				t.Logf("expected -$ prefix for %f, got %s", amount, formatted)
				return false
			}

			parts := strings.Split(formatted, ".")
			if len(parts) != 2 || len(parts[1]) != 2 {
				t.Logf("expected two decimal places for %f, got %s", amount, formatted)
				return false
			}

			numPart := strings.TrimPrefix(parts[0], "-")
			numPart = strings.TrimPrefix(numPart, "$")
			if !groupedNumberPattern.MatchString(numPart) {
				t.Logf("bad grouping for %f: %s", amount, formatted)
				return false
			}
			return true
		},
		gen.Float64Range(-1e12, 1e12),
	))

	properties.Property("FormatMoney preserves value", prop.ForAll(
		func(amount float64) bool {
			if math.IsNaN(amount) || math.IsInf(amount, 0) {
				return true
			}

			parsed := parseMoney(FormatMoney(amount))
			rounded := math.Round(amount*100) / 100
			if math.Abs(parsed-rounded) > 0.01 {
				t.Logf("value not preserved: original=%f parsed=%f", amount, parsed)
				return false
			}
			return true
		},
		gen.Float64Range(-1e9, 1e9),
	))

	properties.Property("FormatQuantity round-trips digit for digit", prop.ForAll(
		func(qty int64) bool {
			formatted := FormatQuantity(qty)
			stripped := strings.ReplaceAll(formatted, ",", "")
			var parsed int64
			negative := strings.HasPrefix(stripped, "-")
			for _, c := range strings.TrimPrefix(stripped, "-") {
				parsed = parsed*10 + int64(c-'0')
			}
			if negative {
				parsed = -parsed
			}
			return parsed == qty
		},
		gen.Int64Range(-1e15, 1e15),
	))

	properties.Property("FormatVolume uses correct units", prop.ForAll(
		func(volume int64) bool {
			formatted := FormatVolume(volume)
			switch {
			case volume >= 1_000_000_000:
				return strings.HasSuffix(formatted, "B")
			case volume >= 1_000_000:
				return strings.HasSuffix(formatted, "M")
			case volume >= 1_000:
				return strings.HasSuffix(formatted, "K")
			default:
				return !strings.ContainsAny(formatted, "KMB")
			}
		},
		gen.Int64Range(0, 1e12),
	))

	properties.TestingRun(t)
}

// parseMoney parses a formatted dollar string back to float64.
func parseMoney(s string) float64 {
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")

	var parsed float64
	for i, c := range s {
		if c == '.' {
			for j, d := range s[i+1:] {
				parsed += float64(d-'0') / math.Pow(10, float64(j+1))
			}
			break
		}
		parsed = parsed*10 + float64(c-'0')
	}

	if negative {
		return -parsed
	}
	return parsed
}
