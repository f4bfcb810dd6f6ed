// Package availability turns availability rules and occupied time into
// bookable slots for a single business day.
package availability

import (
	"sort"
	"time"
)

const DefaultStepMinutes = 30

type RuleType string

const (
	RuleWeekly       RuleType = "weekly"
	RuleSpecificDate RuleType = "specific_date"
	RuleBlock        RuleType = "block"
)

type Rule struct {
	Type RuleType
	// DayOfWeek applies to weekly rules and recurring blocks; -1 when unset.
	DayOfWeek          int
	Date               string
	Window             Interval
	Available          bool
	ConsultationTypeID *int64
}

type Query struct {
	// Date is the business-local calendar day, YYYY-MM-DD.
	Date               string
	Weekday            time.Weekday
	ConsultationTypeID *int64
	DurationMinutes    int
	StepMinutes        int
	BufferBefore       int
	BufferAfter        int
	// NotBefore rejects candidates that start earlier on the day.
	NotBefore Clock
}

type Slot struct {
	Start Clock
	End   Clock
}

func (s Slot) Interval() Interval {
	return Interval{Start: s.Start, End: s.End}
}

// Resolve picks the rules that govern the day. Specific-date rules replace
// weekly rules when any match; unavailable rules and block rules come back
// as blocks, and windows fully covered by a block are dropped.
func Resolve(rules []Rule, date string, weekday time.Weekday, consultationTypeID *int64) (windows []Interval, blocks []Interval) {
	var specific, weekly []Rule
	for _, rule := range rules {
		if !appliesToType(rule, consultationTypeID) || rule.Window.Empty() {
			continue
		}
		switch rule.Type {
		case RuleSpecificDate:
			if rule.Date == date {
				specific = append(specific, rule)
			}
		case RuleWeekly:
			if rule.DayOfWeek == int(weekday) {
				weekly = append(weekly, rule)
			}
		case RuleBlock:
			if rule.Date == date || (rule.Date == "" && rule.DayOfWeek == int(weekday)) {
				blocks = append(blocks, rule.Window)
			}
		}
	}

	base := weekly
	if len(specific) > 0 {
		base = specific
	}
	for _, rule := range base {
		if rule.Available {
			windows = append(windows, rule.Window)
		} else {
			blocks = append(blocks, rule.Window)
		}
	}

	kept := windows[:0]
	for _, window := range windows {
		if !containedInAny(window, blocks) {
			kept = append(kept, window)
		}
	}
	return kept, blocks
}

// Calculate generates the free slots for the query. occupied holds
// existing bookings (already padded by their own buffers) and external busy
// ranges.
func Calculate(q Query, rules []Rule, occupied []Interval) []Slot {
	if q.DurationMinutes <= 0 {
		return nil
	}
	step := q.StepMinutes
	if step <= 0 {
		step = DefaultStepMinutes
	}

	windows, blocks := Resolve(rules, q.Date, q.Weekday, q.ConsultationTypeID)

	seen := make(map[Clock]struct{})
	slots := make([]Slot, 0)
	for _, window := range windows {
		for start := window.Start; start.Add(q.DurationMinutes) <= window.End; start = start.Add(step) {
			if start < q.NotBefore {
				continue
			}
			candidate := NewInterval(start, q.DurationMinutes)
			if overlapsAny(candidate, blocks) {
				continue
			}
			if Conflicts(candidate, q.BufferBefore, q.BufferAfter, occupied) {
				continue
			}
			if _, dup := seen[start]; dup {
				continue
			}
			seen[start] = struct{}{}
			slots = append(slots, Slot{Start: candidate.Start, End: candidate.End})
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Start < slots[j].Start })
	return slots
}

// Conflicts reports whether the candidate, padded by its buffers, overlaps
// any occupied interval.
func Conflicts(candidate Interval, bufferBefore, bufferAfter int, occupied []Interval) bool {
	return overlapsAny(candidate.Pad(bufferBefore, bufferAfter), occupied)
}

func appliesToType(rule Rule, consultationTypeID *int64) bool {
	if rule.ConsultationTypeID == nil {
		return true
	}
	return consultationTypeID != nil && *rule.ConsultationTypeID == *consultationTypeID
}

func overlapsAny(candidate Interval, intervals []Interval) bool {
	for _, interval := range intervals {
		if candidate.Overlaps(interval) {
			return true
		}
	}
	return false
}

func containedInAny(window Interval, blocks []Interval) bool {
	for _, block := range blocks {
		if block.Contains(window) {
			return true
		}
	}
	return false
}
