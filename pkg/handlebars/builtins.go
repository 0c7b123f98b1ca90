package handlebars

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// elseTag is the plain variable tag separating the two branches of a block.
const elseTag = "else"

var builtins = map[string]Helper{
	"if":               helperIf,
	"unless":           helperUnless,
	"each":             helperEach,
	"with":             helperWith,
	"raw":              helperRaw,
	"bindAttr":         helperBindAttr,
	"upper":            stringHelper(strings.ToUpper),
	"lower":            stringHelper(strings.ToLower),
	"capitalize":       stringHelper(capitalize),
	"capitalize_words": stringHelper(capitalizeWords),
	"reverse":          stringHelper(reverse),
	"format_date":      helperFormatDate,
	"inflect":          helperInflect,
	"default":          helperDefault,
	"truncate":         helperTruncate,
}

func helperIf(t *Template, ctx *Context, args, _ string) (any, error) {
	v, err := t.Evaluate(ctx, args)
	if err != nil {
		return nil, err
	}
	return renderBranch(t, ctx, IsTruthy(v))
}

func helperUnless(t *Template, ctx *Context, args, _ string) (any, error) {
	v, err := t.Evaluate(ctx, args)
	if err != nil {
		return nil, err
	}
	return renderBranch(t, ctx, !IsTruthy(v))
}

// renderBranch renders the part before {{else}} when cond holds and the part
// after it otherwise.
func renderBranch(t *Template, ctx *Context, cond bool) (any, error) {
	if !cond {
		return renderElse(t, ctx)
	}
	t.SetStopToken(elseTag)
	out, err := t.Render(ctx)
	if err != nil {
		return nil, err
	}
	t.SetStopToken("")
	t.Discard()
	return out, nil
}

func renderElse(t *Template, ctx *Context) (any, error) {
	t.SetStopToken(elseTag)
	t.Discard()
	t.SetStopToken("")
	return t.Render(ctx)
}

// sliceSuffix matches "people[1:-1]" style paths.
var sliceSuffix = regexp.MustCompile(`^(.+?)\[(-?\d*):(-?\d*)\]$`)

func helperEach(t *Template, ctx *Context, args, _ string) (any, error) {
	path, lo, hi, sliced := extractSlice(args)
	v, err := t.Evaluate(ctx, path)
	if err != nil {
		return nil, err
	}
	items, list, ok := iterate(v)
	if sliced {
		items = sliceEntries(items, lo, hi)
	}
	if !ok || len(items) == 0 {
		return renderElse(t, ctx)
	}

	var b strings.Builder
	for i, it := range items {
		t.Rewind()
		if list {
			ctx.PushIndex(i)
		} else {
			ctx.PushKey(it.key)
		}
		ctx.PushPosition(i, len(items))
		ctx.Push(it.value)
		t.SetStopToken(elseTag)
		out, err := t.Render(ctx)
		ctx.Pop()
		ctx.PopPosition()
		if list {
			ctx.PopIndex()
		} else {
			ctx.PopKey()
		}
		if err != nil {
			return nil, err
		}
		b.WriteString(out)
	}
	return b.String(), nil
}

// extractSlice splits "path[start:end]" into its parts. Absent bounds are
// nil.
func extractSlice(args string) (path string, lo, hi *int, sliced bool) {
	args = strings.TrimSpace(args)
	m := sliceSuffix.FindStringSubmatch(args)
	if m == nil {
		return args, nil, nil, false
	}
	bound := func(s string) *int {
		if s == "" || s == "-" {
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil
		}
		return &n
	}
	return m[1], bound(m[2]), bound(m[3]), true
}

// sliceEntries applies s[lo:hi] with negative bounds counting from the end.
func sliceEntries(items []entry, lo, hi *int) []entry {
	n := len(items)
	clamp := func(p *int, def int) int {
		if p == nil {
			return def
		}
		i := *p
		if i < 0 {
			i += n
		}
		return max(0, min(i, n))
	}
	start, end := clamp(lo, 0), clamp(hi, n)
	if start >= end {
		return nil
	}
	return items[start:end]
}

func helperWith(t *Template, ctx *Context, args, _ string) (any, error) {
	v, err := t.Evaluate(ctx, args)
	if err != nil {
		return nil, err
	}
	ctx.Push(v)
	defer ctx.Pop()
	return t.Render(ctx)
}

func helperRaw(_ *Template, _ *Context, _, source string) (any, error) {
	return source, nil
}

func helperBindAttr(_ *Template, _ *Context, args, _ string) (any, error) {
	return args, nil
}

// stringHelper builds a helper that transforms the string value of its
// argument.
func stringHelper(fn func(string) string) Helper {
	return func(t *Template, ctx *Context, args, _ string) (any, error) {
		v, err := t.Evaluate(ctx, args)
		if err != nil {
			return nil, err
		}
		return fn(Stringify(v)), nil
	}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// capitalizeWords upper-cases the first letter of every word. Casers keep
// state, so each call gets its own.
func capitalizeWords(s string) string {
	return cases.Title(language.Und, cases.NoLower).String(s)
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

// helperArgs resolves the first argument as a value and returns the rest
// as their literal text.
func helperArgs(t *Template, ctx *Context, args string, want int, name string) (any, []Argument, error) {
	parsed := ParseArguments(args)
	if len(parsed) < want {
		return nil, nil, fmt.Errorf("%s expects %d arguments, got %d", name, want, len(parsed))
	}
	v, err := t.Resolve(ctx, parsed[0])
	if err != nil {
		return nil, nil, err
	}
	return v, parsed[1:], nil
}

// {{format_date when "Y-m-d"}}
func helperFormatDate(t *Template, ctx *Context, args, _ string) (any, error) {
	v, rest, err := helperArgs(t, ctx, args, 1, "format_date")
	if err != nil {
		return nil, err
	}
	if len(rest) == 0 || rest[0].Value == "" {
		return v, nil
	}
	when, err := parseDate(v)
	if err != nil {
		return nil, fmt.Errorf("format_date: %w", err)
	}
	return FormatDate(when, rest[0].Value), nil
}

// {{inflect count "%d item" "%d items"}}
func helperInflect(t *Template, ctx *Context, args, _ string) (any, error) {
	v, rest, err := helperArgs(t, ctx, args, 3, "inflect")
	if err != nil {
		return nil, err
	}
	f, ok := ToFloat(v)
	word := rest[1].Value
	if f <= 1 {
		word = rest[0].Value
	}
	if !strings.Contains(word, "%") {
		return word, nil
	}
	// %d needs an integer; JSON numbers arrive as float64 and counts may be strings.
	var n any = v
	switch {
	case ok && f == math.Trunc(f):
		n = int64(f)
	case ok:
		n = f
	}
	return fmt.Sprintf(word, n), nil
}

// {{default title "Untitled"}}
func helperDefault(t *Template, ctx *Context, args, _ string) (any, error) {
	v, rest, err := helperArgs(t, ctx, args, 2, "default")
	if err != nil {
		return nil, err
	}
	if IsTruthy(v) {
		return v, nil
	}
	return rest[0].Value, nil
}

// {{truncate body 20 "..."}}
func helperTruncate(t *Template, ctx *Context, args, _ string) (any, error) {
	v, rest, err := helperArgs(t, ctx, args, 2, "truncate")
	if err != nil {
		return nil, err
	}
	limit, err := strconv.Atoi(rest[0].Value)
	if err != nil {
		return nil, fmt.Errorf("truncate: limit %q is not a number", rest[0].Value)
	}
	s := []rune(Stringify(v))
	if limit >= 0 && limit < len(s) {
		s = s[:limit]
	}
	out := string(s)
	if len(rest) > 1 {
		out += rest[1].Value
	}
	return out, nil
}

// Repeat renders its body n times: {{#repeat 3}}x{{/repeat}}. It is not
// registered by default.
func Repeat(t *Template, ctx *Context, args, _ string) (any, error) {
	parsed := ParseArguments(args)
	if len(parsed) != 1 {
		return nil, fmt.Errorf("repeat expects exactly one argument")
	}
	v, err := t.Resolve(ctx, parsed[0])
	if err != nil {
		return nil, err
	}
	f, _ := ToFloat(v)
	if f < 0 {
		return nil, fmt.Errorf("repeat count must be greater than or equal to 0")
	}
	out, err := t.Render(ctx)
	if err != nil {
		return nil, err
	}
	return strings.Repeat(out, int(f)), nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	"Jan 2, 2006",
	"January 2, 2006",
	"02 Jan 2006",
}

// parseDate accepts time values, Unix timestamps and common date strings.
func parseDate(v any) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		return d, nil
	case *time.Time:
		if d != nil {
			return *d, nil
		}
	case string:
		s := strings.TrimSpace(d)
		if s == "" || s == "now" {
			return time.Now(), nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(n, 0).UTC(), nil
		}
		for _, layout := range dateLayouts {
			if when, err := time.Parse(layout, s); err == nil {
				return when, nil
			}
		}
		return time.Time{}, fmt.Errorf("can not parse %q as a date", s)
	}
	if f, ok := ToFloat(v); ok {
		return time.Unix(int64(f), 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("can not use %T as a date", v)
}

// FormatDate formats t with date() style format letters. A backslash makes
// the next character literal.
func FormatDate(t time.Time, format string) string {
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c == '\\' && i+1 < len(format) {
			i++
			b.WriteByte(format[i])
			continue
		}
		switch c {
		case 'd':
			b.WriteString(t.Format("02"))
		case 'D':
			b.WriteString(t.Format("Mon"))
		case 'j':
			b.WriteString(strconv.Itoa(t.Day()))
		case 'l':
			b.WriteString(t.Format("Monday"))
		case 'S':
			b.WriteString(ordinalSuffix(t.Day()))
		case 'N':
			wd := int(t.Weekday())
			if wd == 0 {
				wd = 7
			}
			b.WriteString(strconv.Itoa(wd))
		case 'w':
			b.WriteString(strconv.Itoa(int(t.Weekday())))
		case 'z':
			b.WriteString(strconv.Itoa(t.YearDay() - 1))
		case 'W':
			_, w := t.ISOWeek()
			fmt.Fprintf(&b, "%02d", w)
		case 'F':
			b.WriteString(t.Format("January"))
		case 'm':
			b.WriteString(t.Format("01"))
		case 'M':
			b.WriteString(t.Format("Jan"))
		case 'n':
			b.WriteString(strconv.Itoa(int(t.Month())))
		case 't':
			b.WriteString(strconv.Itoa(time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()))
		case 'L':
			y := t.Year()
			if y%4 == 0 && (y%100 != 0 || y%400 == 0) {
				b.WriteByte('1')
			} else {
				b.WriteByte('0')
			}
		case 'o':
			y, _ := t.ISOWeek()
			b.WriteString(strconv.Itoa(y))
		case 'Y':
			b.WriteString(strconv.Itoa(t.Year()))
		case 'y':
			b.WriteString(t.Format("06"))
		case 'a':
			b.WriteString(strings.ToLower(t.Format("PM")))
		case 'A':
			b.WriteString(t.Format("PM"))
		case 'g':
			b.WriteString(t.Format("3"))
		case 'G':
			b.WriteString(strconv.Itoa(t.Hour()))
		case 'h':
			b.WriteString(t.Format("03"))
		case 'H':
			b.WriteString(t.Format("15"))
		case 'i':
			b.WriteString(t.Format("04"))
		case 's':
			b.WriteString(t.Format("05"))
		case 'u':
			fmt.Fprintf(&b, "%06d", t.Nanosecond()/1000)
		case 'v':
			fmt.Fprintf(&b, "%03d", t.Nanosecond()/1000000)
		case 'e':
			b.WriteString(t.Location().String())
		case 'T':
			b.WriteString(t.Format("MST"))
		case 'P':
			b.WriteString(t.Format("-07:00"))
		case 'O':
			b.WriteString(t.Format("-0700"))
		case 'Z':
			_, off := t.Zone()
			b.WriteString(strconv.Itoa(off))
		case 'c':
			b.WriteString(t.Format("2006-01-02T15:04:05-07:00"))
		case 'r':
			b.WriteString(t.Format("Mon, 02 Jan 2006 15:04:05 -0700"))
		case 'U':
			b.WriteString(strconv.FormatInt(t.Unix(), 10))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func ordinalSuffix(day int) string {
	if day >= 11 && day <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	}
	return "th"
}
