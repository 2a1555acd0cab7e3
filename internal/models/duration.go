package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Duration serializes as "[D ]HH:MM:SS[.ffffff]" and also accepts a number of seconds on input.
// Output is always canonical: canonical strings round-trip unchanged, other accepted inputs
// ("25:00:00", "00:00:00.5", 10) come back normalized ("1 01:00:00", "00:00:00.500000", "00:00:10").
// Precision is one microsecond; finer input is rejected rather than truncated.
type Duration struct {
	time.Duration
}

// NewDuration wraps d
func NewDuration(d time.Duration) *Duration {
	return &Duration{Duration: d}
}

// String formats the duration in the canonical wire form
func (d Duration) String() string {
	total := d.Duration
	sign := ""
	if total < 0 {
		sign = "-"
		total = -total
	}
	days := total / (24 * time.Hour)
	total -= days * 24 * time.Hour
	hours := total / time.Hour
	total -= hours * time.Hour
	minutes := total / time.Minute
	total -= minutes * time.Minute
	seconds := total / time.Second
	micros := (total - seconds*time.Second) / time.Microsecond

	var b strings.Builder
	b.WriteString(sign)
	if days > 0 {
		fmt.Fprintf(&b, "%d ", days)
	}
	fmt.Fprintf(&b, "%02d:%02d:%02d", hours, minutes, seconds)
	if micros > 0 {
		fmt.Fprintf(&b, ".%06d", micros)
	}
	return b.String()
}

// ParseDuration parses the wire form. Hours may exceed 23 when no day part is given
// and the fraction may have fewer than six digits.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var days int64
	if i := strings.IndexByte(s, ' '); i >= 0 {
		n, err := strconv.ParseInt(s[:i], 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: bad day count in duration %q", ErrValidation, s)
		}
		days = n
		s = strings.TrimSpace(s[i+1:])
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%w: duration %q is not HH:MM:SS", ErrValidation, s)
	}
	hours, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || hours < 0 {
		return 0, fmt.Errorf("%w: bad hours in duration %q", ErrValidation, s)
	}
	minutes, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("%w: bad minutes in duration %q", ErrValidation, s)
	}
	secPart := parts[2]
	var micros int64
	if i := strings.IndexByte(secPart, '.'); i >= 0 {
		frac := secPart[i+1:]
		if frac == "" || len(frac) > 6 {
			return 0, fmt.Errorf("%w: bad fraction in duration %q", ErrValidation, s)
		}
		frac += strings.Repeat("0", 6-len(frac))
		micros, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: bad fraction in duration %q", ErrValidation, s)
		}
		secPart = secPart[:i]
	}
	seconds, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil || seconds < 0 || seconds > 59 {
		return 0, fmt.Errorf("%w: bad seconds in duration %q", ErrValidation, s)
	}

	d := time.Duration(days)*24*time.Hour +
		time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(micros)*time.Microsecond
	if neg {
		d = -d
	}
	return d, nil
}

// MarshalJSON implements json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Duration) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseDuration(s)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	}
	var seconds float64
	if err := json.Unmarshal(data, &seconds); err != nil {
		return fmt.Errorf("%w: duration must be a string or a number of seconds", ErrValidation)
	}
	us := seconds * 1e6
	if math.IsNaN(us) || math.IsInf(us, 0) || math.Abs(us-math.Round(us)) > 1e-3 {
		return fmt.Errorf("%w: duration %v is finer than a microsecond", ErrValidation, seconds)
	}
	d.Duration = time.Duration(math.Round(us)) * time.Microsecond
	return nil
}
