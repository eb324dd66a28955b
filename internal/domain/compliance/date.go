package compliance

import (
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

const (
	dateLayout    = "2006-01-02"
	secondsPerDay = 24 * 60 * 60
)

// Date is a calendar date without time of day. The zero value is not a valid date.
type Date struct {
	t time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t as observed in loc. A nil loc means UTC.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return NewDate(local.Year(), local.Month(), local.Day())
}

// Today returns the current date in the organization's timezone.
func Today(now time.Time, loc *time.Location) Date {
	return DateOf(now, loc)
}

// ParseDate accepts YYYY-MM-DD or RFC3339. Timestamps keep the calendar date of their own offset.
func ParseDate(raw string) (Date, error) {
	return ParseDateIn(raw, nil)
}

// ParseDateIn parses like ParseDate but reads RFC3339 timestamps in loc when loc is set.
func ParseDateIn(raw string, loc *time.Location) (Date, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return Date{}, goerr.Wrap(ErrInvalidDate, "date is empty")
	}
	if parsed, err := time.Parse(dateLayout, value); err == nil {
		return NewDate(parsed.Year(), parsed.Month(), parsed.Day()), nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return Date{}, goerr.Wrap(ErrInvalidDate, "failed to parse date", goerr.V("value", raw))
	}
	if loc == nil {
		return NewDate(parsed.Year(), parsed.Month(), parsed.Day()), nil
	}
	return DateOf(parsed, loc), nil
}

// ParseOptionalDate returns nil for an empty value; anything else must parse.
func ParseOptionalDate(raw string) (*Date, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	d, err := ParseDate(value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// DatePtr converts a nullable database date into a *Date.
func DatePtr(t *time.Time) *Date {
	if t == nil || t.IsZero() {
		return nil
	}
	d := NewDate(t.Year(), t.Month(), t.Day())
	return &d
}

// DateValue is the query argument for a nullable DATE column.
func DateValue(d *Date) any {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.t
}

func (d Date) IsZero() bool {
	return d.t.IsZero()
}

func (d Date) Time() time.Time {
	return d.t
}

func (d Date) AddDays(n int) Date {
	return Date{t: d.t.AddDate(0, 0, n)}
}

func (d Date) Before(other Date) bool {
	return d.t.Before(other.t)
}

func (d Date) After(other Date) bool {
	return d.t.After(other.t)
}

func (d Date) Equal(other Date) bool {
	return d.t.Equal(other.t)
}

// DaysUntil returns the signed number of days from d to other. Both are UTC midnights.
func (d Date) DaysUntil(other Date) int {
	return int((other.t.Unix() - d.t.Unix()) / secondsPerDay)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(d.String())), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	raw := string(data)
	if raw == "null" {
		*d = Date{}
		return nil
	}
	unquoted, err := strconv.Unquote(raw)
	if err != nil {
		return goerr.Wrap(ErrInvalidDate, "date must be a JSON string", goerr.V("value", raw))
	}
	parsed, err := ParseDate(unquoted)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
