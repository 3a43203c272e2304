package value

import (
	"fmt"
	"time"
)

// DatePrecision is the lowest-order component preserved in a Date value.
type DatePrecision int

const (
	DatePrecisionYear DatePrecision = iota
	DatePrecisionMonth
	DatePrecisionDay
)

// DateTimePrecision is the lowest-order component preserved in a DateTime
// value. It extends DatePrecision down to milliseconds.
type DateTimePrecision int

const (
	DateTimePrecisionYear DateTimePrecision = iota
	DateTimePrecisionMonth
	DateTimePrecisionDay
	DateTimePrecisionHour
	DateTimePrecisionMinute
	DateTimePrecisionSecond
	DateTimePrecisionMillisecond
)

// TimePrecision is the lowest-order component preserved in a Time value.
type TimePrecision int

const (
	TimePrecisionHour TimePrecision = iota
	TimePrecisionMinute
	TimePrecisionSecond
	TimePrecisionMillisecond
)

// Date is the System.Date variant: a calendar date with explicit precision.
// Value always carries a full year/month/day in UTC; Precision says how much
// of that is meaningful for comparison and rendering.
type Date struct {
	V         time.Time
	Precision DatePrecision
}

func (Date) sealedValue() {}
func (d Date) Type() TypeInfo {
	return TypeInfo{Namespace: NamespaceSystem, Name: "Date"}
}
func (d Date) String() string {
	switch d.Precision {
	case DatePrecisionYear:
		return fmt.Sprintf("%04d", d.V.Year())
	case DatePrecisionMonth:
		return fmt.Sprintf("%04d-%02d", d.V.Year(), d.V.Month())
	default:
		return fmt.Sprintf("%04d-%02d-%02d", d.V.Year(), d.V.Month(), d.V.Day())
	}
}

// Time is the System.Time variant: a time-of-day with explicit precision, no
// associated date or timezone.
type Time struct {
	V         time.Time
	Precision TimePrecision
}

func (Time) sealedValue() {}
func (t Time) Type() TypeInfo {
	return TypeInfo{Namespace: NamespaceSystem, Name: "Time"}
}
func (t Time) String() string {
	switch t.Precision {
	case TimePrecisionHour:
		return fmt.Sprintf("%02d", t.V.Hour())
	case TimePrecisionMinute:
		return fmt.Sprintf("%02d:%02d", t.V.Hour(), t.V.Minute())
	case TimePrecisionSecond:
		return fmt.Sprintf("%02d:%02d:%02d", t.V.Hour(), t.V.Minute(), t.V.Second())
	default:
		return fmt.Sprintf("%02d:%02d:%02d.%03d", t.V.Hour(), t.V.Minute(), t.V.Second(), t.V.Nanosecond()/1e6)
	}
}

// DateTime is the System.DateTime variant: a point in time with explicit
// precision and an optional timezone offset.
type DateTime struct {
	V           time.Time
	Precision   DateTimePrecision
	HasTimeZone bool
}

func (DateTime) sealedValue() {}
func (dt DateTime) Type() TypeInfo {
	return TypeInfo{Namespace: NamespaceSystem, Name: "DateTime"}
}
func (dt DateTime) String() string {
	s := fmt.Sprintf("%04d", dt.V.Year())
	if dt.Precision >= DateTimePrecisionMonth {
		s += fmt.Sprintf("-%02d", dt.V.Month())
	}
	if dt.Precision >= DateTimePrecisionDay {
		s += fmt.Sprintf("-%02d", dt.V.Day())
	}
	if dt.Precision >= DateTimePrecisionHour {
		s += fmt.Sprintf("T%02d", dt.V.Hour())
	}
	if dt.Precision >= DateTimePrecisionMinute {
		s += fmt.Sprintf(":%02d", dt.V.Minute())
	}
	if dt.Precision >= DateTimePrecisionSecond {
		s += fmt.Sprintf(":%02d", dt.V.Second())
	}
	if dt.Precision >= DateTimePrecisionMillisecond {
		s += fmt.Sprintf(".%03d", dt.V.Nanosecond()/1e6)
	}
	if dt.HasTimeZone && dt.Precision >= DateTimePrecisionHour {
		_, offset := dt.V.Zone()
		if offset == 0 {
			s += "Z"
		} else {
			sign := "+"
			if offset < 0 {
				sign = "-"
				offset = -offset
			}
			s += fmt.Sprintf("%s%02d:%02d", sign, offset/3600, (offset%3600)/60)
		}
	}
	return s
}

// ToDateTime widens a Date into a DateTime at the corresponding precision,
// with no timezone, as used by cross-type Date/DateTime comparison.
func (d Date) ToDateTime() DateTime {
	return DateTime{V: d.V, Precision: datePrecisionToDateTime(d.Precision), HasTimeZone: false}
}

func datePrecisionToDateTime(p DatePrecision) DateTimePrecision {
	switch p {
	case DatePrecisionYear:
		return DateTimePrecisionYear
	case DatePrecisionMonth:
		return DateTimePrecisionMonth
	default:
		return DateTimePrecisionDay
	}
}

// dateTimeToDatePrecision narrows a DateTime precision down to the Date
// ladder, clamping time-of-day precisions to DatePrecisionDay.
func dateTimeToDatePrecision(p DateTimePrecision) DatePrecision {
	switch p {
	case DateTimePrecisionYear:
		return DatePrecisionYear
	case DateTimePrecisionMonth:
		return DatePrecisionMonth
	default:
		return DatePrecisionDay
	}
}

// ToDate narrows a DateTime to a Date, losing any time-of-day component.
func (dt DateTime) ToDate() Date {
	return Date{V: dt.V, Precision: dateTimeToDatePrecision(dt.Precision)}
}

// compareDateTimeAt compares two time.Time values component by component,
// from the year down to the given DateTimePrecision level (milliseconds for
// any level finer than seconds), returning -1, 0 or 1.
func compareDateTimeAt(a, b time.Time, level DateTimePrecision) int {
	switch {
	case level == DateTimePrecisionYear:
		return compareInt(a.Year(), b.Year())
	case level == DateTimePrecisionMonth:
		if c := compareInt(a.Year(), b.Year()); c != 0 {
			return c
		}
		return compareInt(int(a.Month()), int(b.Month()))
	case level == DateTimePrecisionDay:
		if c := compareDateTimeAt(a, b, DateTimePrecisionMonth); c != 0 {
			return c
		}
		return compareInt(a.Day(), b.Day())
	case level == DateTimePrecisionHour:
		if c := compareDateTimeAt(a, b, DateTimePrecisionDay); c != 0 {
			return c
		}
		return compareInt(a.Hour(), b.Hour())
	case level == DateTimePrecisionMinute:
		if c := compareDateTimeAt(a, b, DateTimePrecisionHour); c != 0 {
			return c
		}
		return compareInt(a.Minute(), b.Minute())
	case level == DateTimePrecisionSecond:
		if c := compareDateTimeAt(a, b, DateTimePrecisionMinute); c != 0 {
			return c
		}
		return compareInt(a.Second(), b.Second())
	default:
		if c := compareDateTimeAt(a, b, DateTimePrecisionSecond); c != 0 {
			return c
		}
		return compareInt(a.Nanosecond()/1e6, b.Nanosecond()/1e6)
	}
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// CompareDateTime compares two DateTime values per the specification's
// precision-aware rule: components are compared up to the lower of the two
// precisions; if the values are equal up to that level but the precisions
// differ, the comparison is indeterminate (ok=false), which callers (the
// comparison and equality operators) turn into Empty.
func CompareDateTime(a, b DateTime) (cmp int, ok bool) {
	right := b.V
	if a.HasTimeZone && b.HasTimeZone {
		right = b.V.In(a.V.Location())
	}
	level := a.Precision
	if b.Precision < level {
		level = b.Precision
	}
	c := compareDateTimeAt(a.V, right, level)
	if c != 0 {
		return c, true
	}
	if a.Precision != b.Precision {
		return 0, false
	}
	return 0, true
}

// CompareDate compares two Date values using the same precision-floor rule
// as CompareDateTime.
func CompareDate(a, b Date) (cmp int, ok bool) {
	return CompareDateTime(a.ToDateTime(), b.ToDateTime())
}

// CompareTime compares two Time values down to the lower of the two
// precisions (at most millisecond resolution).
func CompareTime(a, b Time) (cmp int, ok bool) {
	level := a.Precision
	if b.Precision < level {
		level = b.Precision
	}
	c := compareTimeAt(a.V, b.V, level)
	if c != 0 {
		return c, true
	}
	if a.Precision != b.Precision {
		return 0, false
	}
	return 0, true
}

func compareTimeAt(a, b time.Time, level TimePrecision) int {
	switch level {
	case TimePrecisionHour:
		return compareInt(a.Hour(), b.Hour())
	case TimePrecisionMinute:
		if c := compareInt(a.Hour(), b.Hour()); c != 0 {
			return c
		}
		return compareInt(a.Minute(), b.Minute())
	case TimePrecisionSecond:
		if c := compareTimeAt(a, b, TimePrecisionMinute); c != 0 {
			return c
		}
		return compareInt(a.Second(), b.Second())
	default:
		if c := compareTimeAt(a, b, TimePrecisionSecond); c != 0 {
			return c
		}
		return compareInt(a.Nanosecond()/1e6, b.Nanosecond()/1e6)
	}
}
