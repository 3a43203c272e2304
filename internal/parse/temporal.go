package parse

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fhirpath-go/corefhirpath/value"
)

// ParseTemporalLiteral converts the body of an @-prefixed literal (the
// lexer already stripped the leading '@') into a Date, DateTime, or Time
// value.Value, per specification section 4.3 ("date/time literal").
func ParseTemporalLiteral(body string) (value.Value, error) {
	if strings.HasPrefix(body, "T") {
		t, prec, _, err := parseTimeBody(body[1:])
		if err != nil {
			return nil, err
		}
		return value.Time{V: t, Precision: prec}, nil
	}

	datePart := body
	timePart := ""
	if idx := strings.IndexByte(body, 'T'); idx >= 0 {
		datePart = body[:idx]
		timePart = body[idx+1:]
	}

	d, datePrec, err := parseDateBody(datePart)
	if err != nil {
		return nil, err
	}
	if timePart == "" {
		return value.Date{V: d, Precision: datePrec}, nil
	}

	t, timePrec, hasZone, err := parseTimeBody(timePart)
	if err != nil {
		return nil, err
	}
	combined := time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	return value.DateTime{
		V:           combined,
		Precision:   dateAndTimePrecisionToDateTime(datePrec, timePrec),
		HasTimeZone: hasZone,
	}, nil
}

func dateAndTimePrecisionToDateTime(d value.DatePrecision, t value.TimePrecision) value.DateTimePrecision {
	base := value.DateTimePrecisionDay
	switch d {
	case value.DatePrecisionYear:
		base = value.DateTimePrecisionYear
	case value.DatePrecisionMonth:
		base = value.DateTimePrecisionMonth
	}
	if base != value.DateTimePrecisionDay {
		return base
	}
	switch t {
	case value.TimePrecisionHour:
		return value.DateTimePrecisionHour
	case value.TimePrecisionMinute:
		return value.DateTimePrecisionMinute
	case value.TimePrecisionSecond:
		return value.DateTimePrecisionSecond
	default:
		return value.DateTimePrecisionMillisecond
	}
}

func parseDateBody(s string) (time.Time, value.DatePrecision, error) {
	if s == "" {
		return time.Time{}, 0, fmt.Errorf("parse: empty date literal")
	}
	parts := strings.Split(s, "-")
	year, err := strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) != 4 {
		return time.Time{}, 0, fmt.Errorf("parse: invalid year %q in date literal", parts[0])
	}
	month, day := 1, 1
	prec := value.DatePrecisionYear
	if len(parts) >= 2 {
		month, err = strconv.Atoi(parts[1])
		if err != nil || month < 1 || month > 12 {
			return time.Time{}, 0, fmt.Errorf("parse: invalid month %q in date literal", parts[1])
		}
		prec = value.DatePrecisionMonth
	}
	if len(parts) >= 3 {
		day, err = strconv.Atoi(parts[2])
		if err != nil || day < 1 || day > 31 {
			return time.Time{}, 0, fmt.Errorf("parse: invalid day %q in date literal", parts[2])
		}
		prec = value.DatePrecisionDay
	}
	if len(parts) > 3 {
		return time.Time{}, 0, fmt.Errorf("parse: too many components in date literal %q", s)
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), prec, nil
}

func parseTimeBody(s string) (time.Time, value.TimePrecision, bool, error) {
	if s == "" {
		return time.Date(0, 1, 1, 0, 0, 0, 0, time.UTC), value.TimePrecisionHour, false, nil
	}

	zone := time.UTC
	hasZone := false
	clock := s
	if idx := strings.IndexAny(s, "Z+-"); idx >= 0 {
		zoneText := s[idx:]
		clock = s[:idx]
		hasZone = true
		if zoneText == "Z" {
			zone = time.UTC
		} else {
			sign := 1
			if zoneText[0] == '-' {
				sign = -1
			}
			zoneText = zoneText[1:]
			zp := strings.Split(zoneText, ":")
			zh, _ := strconv.Atoi(zp[0])
			zm := 0
			if len(zp) > 1 {
				zm, _ = strconv.Atoi(zp[1])
			}
			zone = time.FixedZone(fmt.Sprintf("%+03d:%02d", sign*zh, zm), sign*(zh*3600+zm*60))
		}
	}

	parts := strings.Split(clock, ":")
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return time.Time{}, 0, false, fmt.Errorf("parse: invalid hour %q in time literal", parts[0])
	}
	minute, second, nanos := 0, 0, 0
	prec := value.TimePrecisionHour
	if len(parts) >= 2 {
		minute, err = strconv.Atoi(parts[1])
		if err != nil || minute < 0 || minute > 59 {
			return time.Time{}, 0, false, fmt.Errorf("parse: invalid minute %q in time literal", parts[1])
		}
		prec = value.TimePrecisionMinute
	}
	if len(parts) >= 3 {
		secText := parts[2]
		fracIdx := strings.IndexByte(secText, '.')
		secStr := secText
		if fracIdx >= 0 {
			secStr = secText[:fracIdx]
		}
		second, err = strconv.Atoi(secStr)
		if err != nil || second < 0 || second > 60 {
			return time.Time{}, 0, false, fmt.Errorf("parse: invalid second %q in time literal", secStr)
		}
		prec = value.TimePrecisionSecond
		if fracIdx >= 0 {
			frac := secText[fracIdx+1:]
			for len(frac) < 9 {
				frac += "0"
			}
			n, err := strconv.Atoi(frac[:9])
			if err != nil {
				return time.Time{}, 0, false, fmt.Errorf("parse: invalid fractional seconds %q", secText[fracIdx+1:])
			}
			nanos = n
			prec = value.TimePrecisionMillisecond
		}
	}
	return time.Date(0, 1, 1, hour, minute, second, nanos, zone), prec, hasZone, nil
}
