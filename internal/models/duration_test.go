package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDuration_CanonicalRoundTrip(t *testing.T) {
	for _, s := range []string{"00:00:10", "01:30:00", "2 03:04:05", "00:00:01.500000"} {
		var d Duration
		if err := json.Unmarshal([]byte(`"`+s+`"`), &d); err != nil {
			t.Fatalf("%s: %v", s, err)
		}
		out, err := json.Marshal(d)
		if err != nil {
			t.Fatal(err)
		}
		if string(out) != `"`+s+`"` {
			t.Errorf("expected %q, got %s", s, out)
		}
	}
}

func TestDuration_AcceptsSeconds(t *testing.T) {
	var d Duration
	if err := json.Unmarshal([]byte(`60`), &d); err != nil {
		t.Fatal(err)
	}
	if d.Duration != time.Minute {
		t.Fatalf("expected 1m, got %v", d.Duration)
	}
	if d.String() != "00:01:00" {
		t.Errorf("expected 00:01:00, got %s", d.String())
	}
}

func TestDuration_NullPointer(t *testing.T) {
	var v struct {
		TTL *Duration `json:"ttl"`
	}
	if err := json.Unmarshal([]byte(`{"ttl": null}`), &v); err != nil {
		t.Fatal(err)
	}
	if v.TTL != nil {
		t.Fatalf("expected nil ttl, got %v", v.TTL)
	}
}

func TestParseDuration_Invalid(t *testing.T) {
	for _, s := range []string{"", "10", "1:2", "aa:00:00", "00:61:00", "00:00:00.1234567"} {
		if _, err := ParseDuration(s); !errors.Is(err, ErrValidation) {
			t.Errorf("%q: expected validation error, got %v", s, err)
		}
	}
}

func TestDuration_NormalizesAcceptedInput(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`"25:00:00"`, `"1 01:00:00"`},
		{`"1 00:00:00.5"`, `"1 00:00:00.500000"`},
		{`10`, `"00:00:10"`},
		{`0.25`, `"00:00:00.250000"`},
	}
	for _, tc := range cases {
		var d Duration
		if err := json.Unmarshal([]byte(tc.in), &d); err != nil {
			t.Fatalf("%s: %v", tc.in, err)
		}
		out, _ := json.Marshal(d)
		if string(out) != tc.want {
			t.Errorf("%s: expected %s, got %s", tc.in, tc.want, out)
		}
	}
}

func TestDuration_RejectsSubMicrosecondSeconds(t *testing.T) {
	var d Duration
	if err := json.Unmarshal([]byte(`0.1234567`), &d); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v (%s)", err, d)
	}
}
