package sched

import (
	"errors"
	"testing"
	"time"
)

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in      string
		want    Priority
		wantErr bool
	}{
		{"immediate", PriorityImmediate, false},
		{"User-Blocking", PriorityUserBlocking, false},
		{" normal ", PriorityNormal, false},
		{"low", PriorityLow, false},
		{"idle", PriorityIdle, false},
		{"4", PriorityLow, false},
		{"0", 0, true},
		{"6", 0, true},
		{"3x", 0, true},
		{"urgent", 0, true},
	}
	for _, tt := range tests {
		got, err := ParsePriority(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePriority(%q): expected error=%v, got %v", tt.in, tt.wantErr, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePriority(%q): expected %s, got %s", tt.in, tt.want, got)
		}
	}
}

func TestPriority_String(t *testing.T) {
	if PriorityUserBlocking.String() != "user-blocking" {
		t.Errorf("expected user-blocking, got %s", PriorityUserBlocking)
	}
	if Priority(9).String() != "priority(9)" {
		t.Errorf("expected priority(9), got %s", Priority(9))
	}
}

func TestPriority_TextRoundTrip(t *testing.T) {
	var p Priority
	if err := p.UnmarshalText([]byte("low")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := p.MarshalText()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(b) != "low" {
		t.Errorf("expected low, got %s", b)
	}
	if _, err := Priority(0).MarshalText(); err == nil {
		t.Error("expected error marshaling an invalid priority")
	}
}

func TestPriority_OrNormal(t *testing.T) {
	if Priority(0).orNormal() != PriorityNormal {
		t.Error("expected invalid priority to coerce to normal")
	}
	if PriorityIdle.orNormal() != PriorityIdle {
		t.Error("expected valid priority to be kept")
	}
}

func TestDefaultTimeouts_Expiration(t *testing.T) {
	tests := []struct {
		p    Priority
		want time.Duration
	}{
		{PriorityImmediate, -time.Millisecond},
		{PriorityUserBlocking, 250 * time.Millisecond},
		{PriorityNormal, 5 * time.Second},
		{PriorityLow, 10 * time.Second},
		{PriorityIdle, 1073741823 * time.Millisecond},
		{Priority(42), 5 * time.Second},
	}
	for _, tt := range tests {
		got := DefaultTimeouts.Expiration(tt.p, base)
		if !got.Equal(base.Add(tt.want)) {
			t.Errorf("%s: expected %s, got %s", tt.p, base.Add(tt.want), got)
		}
	}
}

func TestTimeouts_Validate(t *testing.T) {
	if err := DefaultTimeouts.Validate(); err != nil {
		t.Errorf("expected default timeouts to be valid, got %v", err)
	}

	shorter := DefaultTimeouts
	shorter.Low = time.Second
	if err := shorter.Validate(); !errors.Is(err, ErrInvalidTimeouts) {
		t.Errorf("expected ErrInvalidTimeouts, got %v", err)
	}

	zero := DefaultTimeouts
	zero.UserBlocking = 0
	if err := zero.Validate(); !errors.Is(err, ErrInvalidTimeouts) {
		t.Errorf("expected ErrInvalidTimeouts, got %v", err)
	}

	custom := Timeouts{Immediate: 0, UserBlocking: 100 * time.Millisecond, Normal: time.Second, Low: time.Second, Idle: time.Hour}
	if err := custom.Validate(); err != nil {
		t.Errorf("expected equal neighbours to be valid, got %v", err)
	}
}
