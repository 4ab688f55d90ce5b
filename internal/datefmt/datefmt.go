// Package datefmt formats timestamps the way the web front end displays them.
package datefmt

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Part selects one component of FormatUnix output.
type Part byte

const (
	Year   Part = 'Y' // "2006-"
	Month  Part = 'M' // "01-"
	Day    Part = 'D' // "02 "
	Hour   Part = 'h' // "15"
	Minute Part = 'm' // ":04"
	Second Part = 's' // ":05"
)

// AllParts produces "2006-01-02 15:04:05".
var AllParts = []Part{Year, Month, Day, Hour, Minute, Second}

// FormatUnix formats sec (unix seconds) in loc by concatenating the selected
// parts. Each part carries its own separator, so Year, Month, Day alone yields
// "2006-01-02 " with the trailing space. sec == 0 formats as "".
func FormatUnix(sec int64, loc *time.Location, parts ...Part) string {
	if sec == 0 {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	if len(parts) == 0 {
		parts = AllParts
	}
	t := time.Unix(sec, 0).In(loc)

	var b strings.Builder
	for _, p := range parts {
		switch p {
		case Year:
			fmt.Fprintf(&b, "%d-", t.Year())
		case Month:
			fmt.Fprintf(&b, "%02d-", int(t.Month()))
		case Day:
			fmt.Fprintf(&b, "%02d ", t.Day())
		case Hour:
			fmt.Fprintf(&b, "%02d", t.Hour())
		case Minute:
			fmt.Fprintf(&b, ":%02d", t.Minute())
		case Second:
			fmt.Fprintf(&b, ":%02d", t.Second())
		}
	}
	return b.String()
}

// Format expands the tokens YYYY/yyyy, YY/yy, MM, DD, HH/hh, mm and ss in
// pattern with the fields of t. Hours are always 24-hour.
func Format(pattern string, t time.Time) string {
	year := strconv.Itoa(t.Year())
	short := year
	if len(year) >= 4 {
		short = year[2:4]
	}
	two := func(n int) string { return fmt.Sprintf("%02d", n) }

	r := strings.NewReplacer(
		"YYYY", year, "yyyy", year,
		"YY", short, "yy", short,
		"MM", two(int(t.Month())),
		"DD", two(t.Day()),
		"HH", two(t.Hour()), "hh", two(t.Hour()),
		"mm", two(t.Minute()),
		"ss", two(t.Second()),
	)
	return r.Replace(pattern)
}

// Span is the difference between two instants broken into calendar-free units.
type Span struct {
	Days    int
	Hours   int
	Minutes int
	Seconds float64
}

// Diff returns end - start split into days, hours, minutes and seconds.
// A negative difference yields negative components.
func Diff(start, end time.Time) Span {
	ms := end.Sub(start).Milliseconds()
	const (
		msMinute = int64(60 * 1000)
		msHour   = 60 * msMinute
		msDay    = 24 * msHour
	)
	return Span{
		Days:    int(ms / msDay),
		Hours:   int(ms % msDay / msHour),
		Minutes: int(ms % msDay % msHour / msMinute),
		Seconds: float64(ms%msDay%msHour%msMinute) / 1000,
	}
}

// String renders the span the way the UI shows it, e.g. "1天2小时3分4.5秒".
func (s Span) String() string {
	return fmt.Sprintf("%d天%d小时%d分%s秒", s.Days, s.Hours, s.Minutes,
		strconv.FormatFloat(s.Seconds, 'f', -1, 64))
}

// ParseJSDate parses the output of JavaScript's Date.prototype.toString,
// e.g. "Sun Oct 18 2026 14:03:05 GMT+0800 (中国标准时间)". The trailing zone
// name in parentheses is ignored; the numeric offset is authoritative.
func ParseJSDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, " ("); i >= 0 {
		s = s[:i]
	}
	t, err := time.Parse("Mon Jan 02 2006 15:04:05 GMT-0700", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse js date %q: %w", s, err)
	}
	return t, nil
}
