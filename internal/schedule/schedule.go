// Package schedule plans and drives the twice-daily digest runs.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Slot identifies which of the two daily digests a run belongs to.
type Slot string

const (
	SlotMorning Slot = "morning"
	SlotEvening Slot = "evening"
)

// ParseSlot validates a slot name.
func ParseSlot(value string) (Slot, error) {
	switch Slot(strings.ToLower(strings.TrimSpace(value))) {
	case SlotMorning:
		return SlotMorning, nil
	case SlotEvening:
		return SlotEvening, nil
	}
	return "", fmt.Errorf("unknown delivery slot %q", value)
}

// Title returns the slot name with an upper-case first letter.
func (s Slot) Title() string {
	if s == "" {
		return ""
	}
	upper := strings.ToUpper(string(s)[:1])
	return upper + string(s)[1:]
}

// Greeting returns the digest salutation for the slot.
func (s Slot) Greeting() string {
	if s == SlotEvening {
		return "Good evening"
	}
	return "Good morning"
}

// Run is one planned digest run.
type Run struct {
	At   time.Time `json:"at"`
	Slot Slot      `json:"slot"`
}

// Times computes upcoming digest runs from the configured delivery hours.
// All computation happens in the configured timezone; callers supply the
// current time, which keeps the math testable for any instant.
type Times struct {
	location *time.Location
	morning  cron.Schedule
	evening  cron.Schedule
}

// NewTimes builds the run calculator for the two daily delivery hours.
func NewTimes(morningHour, eveningHour int, location *time.Location) (*Times, error) {
	morning, err := cron.ParseStandard(fmt.Sprintf("0 %d * * *", morningHour))
	if err != nil {
		return nil, fmt.Errorf("invalid morning hour %d: %w", morningHour, err)
	}
	evening, err := cron.ParseStandard(fmt.Sprintf("0 %d * * *", eveningHour))
	if err != nil {
		return nil, fmt.Errorf("invalid evening hour %d: %w", eveningHour, err)
	}

	return &Times{
		location: location,
		morning:  morning,
		evening:  evening,
	}, nil
}

// Timezone returns the IANA name of the configured location.
func (t *Times) Timezone() string {
	return t.location.String()
}

// Next returns the earliest run strictly after now. A call at exactly a
// delivery instant plans the following slot, never the current one again.
func (t *Times) Next(now time.Time) Run {
	local := now.In(t.location)

	morningAt := t.morning.Next(local)
	eveningAt := t.evening.Next(local)

	if morningAt.Before(eveningAt) {
		return Run{At: morningAt, Slot: SlotMorning}
	}
	return Run{At: eveningAt, Slot: SlotEvening}
}

// NextRuns returns the upcoming run of each slot.
func (t *Times) NextRuns(now time.Time) (morning, evening Run) {
	local := now.In(t.location)
	morning = Run{At: t.morning.Next(local), Slot: SlotMorning}
	evening = Run{At: t.evening.Next(local), Slot: SlotEvening}
	return morning, evening
}
