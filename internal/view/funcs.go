package view

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var printer = message.NewPrinter(language.English)

// Funcs are the helpers available to every template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"formatDate":   FormatDate,
		"formatDay":    FormatDay,
		"formatAmount": FormatAmount,
		"formatCount":  FormatCount,
		"formatBytes":  FormatBytes,
		"dict":         dict,
		"add":          func(a, b int) int { return a + b },
		"sub":          func(a, b int) int { return a - b },
		"contains":     strings.Contains,
		"title":        humanize,
	}
}

// FormatDate renders a timestamp, empty for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02 Jan 2006 15:04")
}

// FormatDay renders a YYYY-MM-DD string, passing other input through.
func FormatDay(s string) string {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return s
	}
	return t.Format("02 Jan 2006")
}

// FormatAmount renders money with grouping and two decimals.
func FormatAmount(v any) string {
	var d decimal.Decimal
	switch x := v.(type) {
	case decimal.Decimal:
		d = x
	case string:
		parsed, err := decimal.NewFromString(strings.TrimSpace(x))
		if err != nil {
			return x
		}
		d = parsed
	case float64:
		d = decimal.NewFromFloat(x)
	case int:
		d = decimal.NewFromInt(int64(x))
	default:
		return fmt.Sprint(v)
	}
	return printer.Sprint(number.Decimal(d.InexactFloat64(), number.Scale(2)))
}

// FormatCount renders an integer with grouping separators.
func FormatCount(n int) string {
	return printer.Sprintf("%d", n)
}

// FormatBytes renders a size in B, KB or MB.
func FormatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return printer.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return printer.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return printer.Sprintf("%d B", n)
	}
}

func dict(kv ...any) (map[string]any, error) {
	if len(kv)%2 != 0 {
		return nil, fmt.Errorf("dict: odd number of arguments")
	}
	out := make(map[string]any, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict: key %v is not a string", kv[i])
		}
		out[key] = kv[i+1]
	}
	return out, nil
}

func humanize(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
