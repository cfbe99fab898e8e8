package cron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule yields fire times for one cron expression in a fixed timezone.
type Schedule interface {
	// Next returns the first fire time strictly after t.
	Next(after time.Time) time.Time

	// NextAtOrAfter returns the first fire time at or after t.
	// Cron granularity is one minute, so "at or after t" is implemented as
	// "strictly after t minus one second".
	NextAtOrAfter(t time.Time) time.Time
}

// Parser wraps the standard 5-field cron parser (minute through day-of-week).
type Parser struct {
	parser cron.Parser
}

func NewParser() *Parser {
	return &Parser{
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

func (p *Parser) Parse(expression string, loc *time.Location) (Schedule, error) {
	sched, err := p.parser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("parse cron: %w", err)
	}
	return &schedule{sched: sched, loc: loc}, nil
}

type schedule struct {
	sched cron.Schedule
	loc   *time.Location
}

func (s *schedule) Next(after time.Time) time.Time {
	return s.sched.Next(after.In(s.loc))
}

func (s *schedule) NextAtOrAfter(t time.Time) time.Time {
	return s.sched.Next(t.In(s.loc).Add(-time.Second))
}
