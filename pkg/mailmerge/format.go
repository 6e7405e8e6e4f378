package mailmerge

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Word numeric picture: optional literal prefix, the picture itself
// (N2/P1 shorthand or a 0.,'# pattern with optional trailing %), optional
// literal suffix.
var numberFormatRE = regexp.MustCompile(`^([^0.,'#PN]+)?(P\d+|N\d+|[0.,'#]+%?)([^0.,'#%].*)?$`)

// Word date picture tokens, longest match first so am/pm is not consumed
// letter by letter.
var dateFormatRE = regexp.MustCompile(`AM/PM|am/pm|y+|Y+|M+|m+|d+|D+|h+|H+|s+|S+`)

// commonDateFormats are tried in order when a date switch is applied to a
// string value.
var commonDateFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"02.01.2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// formatNumber renders value according to a \# numeric picture switch.
// The N and P shorthands use locale-aware grouping for the given tag;
// explicit pictures spell their separators out, so the picture wins.
func formatNumber(pattern string, value float64, tag language.Tag) string {
	match := numberFormatRE.FindStringSubmatch(pattern)
	if match == nil {
		return strconv.FormatFloat(value, 'f', -1, 64)
	}
	prefix, pict, suffix := match[1], match[2], match[3]

	var out string
	switch {
	case pict[0] == 'N' || pict[0] == 'P':
		decimals, _ := strconv.Atoi(pict[1:])
		if pict[0] == 'P' {
			value *= 100
		}
		p := message.NewPrinter(tag)
		out = p.Sprint(number.Decimal(value, number.Scale(decimals)))
		if pict[0] == 'P' {
			out += "%"
		}
	default:
		out = formatPicture(pict, value)
	}
	return prefix + out + suffix
}

// formatPicture applies an explicit 0.,'# picture such as "#,##0.00".
func formatPicture(pict string, value float64) string {
	percent := strings.Contains(pict, "%")
	if percent {
		value *= 100
		pict = strings.ReplaceAll(pict, "%", "")
	}
	pict = strings.ReplaceAll(pict, "'", "")

	intPict, fracPict := pict, ""
	if dot := strings.Index(pict, "."); dot >= 0 {
		intPict, fracPict = pict[:dot], pict[dot+1:]
	}

	fracDigits := strings.Count(fracPict, "0") + strings.Count(fracPict, "#")
	s := strconv.FormatFloat(value, 'f', fracDigits, 64)

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, fracPart := s, ""
	if dot := strings.Index(s, "."); dot >= 0 {
		intPart, fracPart = s[:dot], s[dot+1:]
	}

	// Optional digits: trim trailing zeros down to the number of
	// mandatory 0 placeholders.
	minFrac := strings.Count(fracPict, "0")
	for len(fracPart) > minFrac && strings.HasSuffix(fracPart, "0") {
		fracPart = fracPart[:len(fracPart)-1]
	}

	minInt := strings.Count(intPict, "0")
	for len(intPart) < minInt {
		intPart = "0" + intPart
	}
	if strings.Contains(intPict, ",") {
		intPart = groupThousands(intPart)
	}

	out := sign + intPart
	if fracPart != "" {
		out += "." + fracPart
	}
	if percent {
		out += "%"
	}
	return out
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var sb strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		sb.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(digits[i : i+3])
	}
	return sb.String()
}

// formatDate renders t according to a \@ date picture switch. Tokens are
// matched by run length of the repeated letter, everything else is copied
// literally.
func formatDate(pattern string, t time.Time) string {
	var sb strings.Builder
	last := 0
	for _, loc := range dateFormatRE.FindAllStringIndex(pattern, -1) {
		sb.WriteString(pattern[last:loc[0]])
		sb.WriteString(dateToken(pattern[loc[0]:loc[1]], t))
		last = loc[1]
	}
	sb.WriteString(pattern[last:])
	return sb.String()
}

func dateToken(token string, t time.Time) string {
	switch token {
	case "M":
		return strconv.Itoa(int(t.Month()))
	case "MM":
		return t.Format("01")
	case "MMM":
		return t.Format("Jan")
	case "MMMM":
		return t.Format("January")
	case "d", "D":
		return strconv.Itoa(t.Day())
	case "dd", "DD":
		return t.Format("02")
	case "ddd", "DDD":
		return t.Format("Mon")
	case "dddd", "DDDD":
		return t.Format("Monday")
	case "yy", "YY":
		return t.Format("06")
	case "yyyy", "YYYY":
		return t.Format("2006")
	case "h":
		return strconv.Itoa(hour12(t))
	case "hh":
		return fmt.Sprintf("%02d", hour12(t))
	case "H":
		return strconv.Itoa(t.Hour())
	case "HH":
		return t.Format("15")
	case "m":
		return strconv.Itoa(t.Minute())
	case "mm":
		return t.Format("04")
	case "s", "S":
		return strconv.Itoa(t.Second())
	case "ss", "SS":
		return t.Format("05")
	case "am/pm":
		return strings.ToLower(t.Format("PM"))
	case "AM/PM":
		return t.Format("PM")
	default:
		return token
	}
}

func hour12(t time.Time) int {
	h := t.Hour() % 12
	if h == 0 {
		h = 12
	}
	return h
}

// parseNumericValue extracts a float64 from literal value types.
func parseNumericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// parseDateValue extracts a time.Time from literal value types.
func parseDateValue(v any) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d, true
	case *time.Time:
		if d == nil {
			return time.Time{}, false
		}
		return *d, true
	case string:
		for _, layout := range commonDateFormats {
			if t, err := time.Parse(layout, d); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// literalText renders a literal value without any format switch.
func literalText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case time.Time:
		return x.Format("2006-01-02")
	default:
		return fmt.Sprintf("%v", x)
	}
}
