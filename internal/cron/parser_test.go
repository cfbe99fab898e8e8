package cron

import (
	"testing"
	"time"
)

func TestParse_ValidExpression(t *testing.T) {
	p := NewParser()
	sched, err := p.Parse("0 9 * * *", time.UTC)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	after := time.Date(2024, 3, 6, 8, 0, 0, 0, time.UTC)
	next := sched.Next(after)
	want := time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("expected next fire %s, got %s", want, next)
	}
}

func TestParse_InvalidExpression(t *testing.T) {
	p := NewParser()
	if _, err := p.Parse("not a cron", time.UTC); err == nil {
		t.Fatal("expected error for invalid expression")
	}
}

func TestParse_SecondsFieldRejected(t *testing.T) {
	p := NewParser()
	if _, err := p.Parse("0 0 9 * * *", time.UTC); err == nil {
		t.Fatal("expected error for 6-field expression")
	}
}

func TestNext_RespectsTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	p := NewParser()
	sched, err := p.Parse("0 9 * * *", loc)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// 08:00 in New York (13:00 UTC during EST would be wrong; March 6 is EST, UTC-5).
	after := time.Date(2024, 3, 6, 13, 0, 0, 0, time.UTC)
	next := sched.Next(after)
	want := time.Date(2024, 3, 6, 9, 0, 0, 0, loc)
	if !next.Equal(want) {
		t.Fatalf("expected next fire %s, got %s", want, next)
	}
}

func TestNextAtOrAfter_IncludesBoundary(t *testing.T) {
	p := NewParser()
	sched, err := p.Parse("0 9 * * *", time.UTC)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	at := time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)

	// Next is strictly after: skips the boundary fire.
	if got := sched.Next(at); got.Equal(at) {
		t.Fatalf("Next returned the boundary time %s", got)
	}
	// NextAtOrAfter keeps it.
	if got := sched.NextAtOrAfter(at); !got.Equal(at) {
		t.Fatalf("expected boundary fire %s, got %s", at, got)
	}
}
