package cron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule yields the next occurrence strictly after a given time.
type Schedule interface {
	Next(after time.Time) time.Time
}

// Parser validates and parses standard five-field cron expressions used in
// time trigger configs.
type Parser struct {
	parser cron.Parser
}

func NewParser() *Parser {
	return &Parser{
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

func (p *Parser) Parse(expression string) (Schedule, error) {
	sched, err := p.parser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("parse cron: %w", err)
	}
	return &schedule{sched: sched}, nil
}

// Validate reports whether expression is a well-formed cron expression.
func (p *Parser) Validate(expression string) error {
	_, err := p.parser.Parse(expression)
	return err
}

type schedule struct {
	sched cron.Schedule
}

func (s *schedule) Next(after time.Time) time.Time {
	return s.sched.Next(after.UTC())
}
