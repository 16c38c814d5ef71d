package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// MonthNames are the French month names, January first.
var MonthNames = [12]string{
	"Janvier", "Février", "Mars", "Avril", "Mai", "Juin",
	"Juillet", "Août", "Septembre", "Octobre", "Novembre", "Décembre",
}

// MonthName returns the French name of month (1-12).
func MonthName(month int) string {
	if month < 1 || month > 12 {
		return ""
	}
	return MonthNames[month-1]
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// String formats d as YYYY-MM-DD. The zero date formats as "".
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Display formats d the way the French UI shows it (dd/mm/yyyy).
func (d Date) Display() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("02/01/2006")
}

// MonthKey returns the YYYY-MM key of d.
func (d Date) MonthKey() string {
	return MonthKey(d.Year(), d.Month())
}

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }

// ISOWeek returns the ISO 8601 week number.
func (d Date) ISOWeek() int {
	_, w := d.Time.ISOWeek()
	return w
}

// IsToday reports whether d is the calendar day of now.
func (d Date) IsToday(now time.Time) bool {
	return d.String() == DateOf(now).String()
}

// IsThisMonth reports whether d falls in the month of now.
func (d Date) IsThisMonth(now time.Time) bool {
	return d.Year() == now.Year() && d.Month() == int(now.Month())
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return ErrInvalidDate
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	// Accept full timestamps as written by older exports.
	if len(s) > len(DateLayout) {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			*d = DateOf(t)
			return nil
		}
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *Date) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return ErrInvalidDate
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MonthKey formats a year and month (1-12) as YYYY-MM.
func MonthKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// ParseMonthKey parses YYYY-MM.
func ParseMonthKey(s string) (year, month int, err error) {
	t, perr := time.Parse("2006-01", strings.TrimSpace(s))
	if perr != nil {
		return 0, 0, fmt.Errorf("%w: month %q", ErrInvalidDate, s)
	}
	return t.Year(), int(t.Month()), nil
}

// DaysIn returns the number of days of month in year.
func DaysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthRef identifies a calendar month.
type MonthRef struct {
	Year  int    `json:"year"`
	Month int    `json:"month"`
	Key   string `json:"key"`
	Name  string `json:"name"`
}

// Label returns "Janvier 2025" style titles.
func (m MonthRef) Label() string {
	return m.Name + " " + fmt.Sprint(m.Year)
}

// Offset returns the month n months away from m.
func (m MonthRef) Offset(n int) MonthRef {
	t := time.Date(m.Year, time.Month(m.Month)+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	return NewMonthRef(t.Year(), int(t.Month()))
}

// NewMonthRef builds a MonthRef, normalising month overflow.
func NewMonthRef(year, month int) MonthRef {
	t := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	y, mo := t.Year(), int(t.Month())
	return MonthRef{Year: y, Month: mo, Key: MonthKey(y, mo), Name: MonthName(mo)}
}

// CurrentMonth returns the month of now.
func CurrentMonth(now time.Time) MonthRef {
	return NewMonthRef(now.Year(), int(now.Month()))
}

// LastNMonths returns the n months ending with the month of now, oldest first.
func LastNMonths(n int, now time.Time) []MonthRef {
	cur := CurrentMonth(now)
	out := make([]MonthRef, 0, n)
	for i := n - 1; i >= 0; i-- {
		out = append(out, cur.Offset(-i))
	}
	return out
}
