package availability

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a wall-clock time of day expressed in minutes after midnight.
// 24:00 (1440) is accepted as an end-of-day bound.
type Clock int

const endOfDay Clock = 24 * 60

func ParseClock(value string) (Clock, error) {
	value = strings.TrimSpace(value)
	parts := strings.Split(value, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", value)
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 24 {
		return 0, fmt.Errorf("invalid time %q: bad hour", value)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid time %q: bad minute", value)
	}
	if len(parts) == 3 {
		seconds, err := strconv.Atoi(parts[2])
		if err != nil || seconds != 0 {
			return 0, fmt.Errorf("invalid time %q: seconds are not supported", value)
		}
	}

	clock := Clock(hours*60 + minutes)
	if clock > endOfDay {
		return 0, fmt.Errorf("invalid time %q: past end of day", value)
	}
	return clock, nil
}

func MustParseClock(value string) Clock {
	clock, err := ParseClock(value)
	if err != nil {
		panic(err)
	}
	return clock
}

// ClockOf returns the time of day of t in t's location.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

func (c Clock) Add(minutes int) Clock {
	return c + Clock(minutes)
}

// On anchors the clock to the calendar day of date in loc. The result is a
// wall-clock time, so 10:00 stays 10:00 on days with a DST shift; 24:00 is
// the next midnight.
func (c Clock) On(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, int(c)/60, int(c)%60, 0, 0, loc)
}

// Interval is a half-open range [Start, End).
type Interval struct {
	Start Clock
	End   Clock
}

func NewInterval(start Clock, minutes int) Interval {
	return Interval{Start: start, End: start.Add(minutes)}
}

func (i Interval) Overlaps(other Interval) bool {
	return i.Start < other.End && i.End > other.Start
}

func (i Interval) Contains(other Interval) bool {
	return i.Start <= other.Start && other.End <= i.End
}

func (i Interval) Pad(before, after int) Interval {
	return Interval{Start: i.Start - Clock(before), End: i.End + Clock(after)}
}

func (i Interval) Empty() bool {
	return i.End <= i.Start
}

// ClipToDay converts an absolute range to the wall-clock portion that falls on
// the calendar day of date in loc. ok is false when the range misses the day.
// A range that crosses a DST shift covers the wall clocks on both sides of it.
func ClipToDay(start, end time.Time, date time.Time, loc *time.Location) (Interval, bool) {
	y, m, d := date.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, loc)
	dayEnd := time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	if !start.Before(dayEnd) || !end.After(dayStart) {
		return Interval{}, false
	}
	if start.Before(dayStart) {
		start = dayStart
	}
	if end.After(dayEnd) {
		end = dayEnd
	}

	localStart := start.In(loc)
	localEnd := end.In(loc)
	interval := Interval{Start: ClockOf(localStart), End: endOfDay}
	if !end.Equal(dayEnd) {
		interval.End = ClockOf(localEnd)
		if localEnd.Second() != 0 || localEnd.Nanosecond() != 0 {
			interval.End++
		}
	}

	_, startOffset := localStart.Zone()
	_, endOffset := localEnd.Zone()
	if startOffset != endOffset {
		// Wall clocks before the shift run up to shiftAt+skew, after it they
		// restart at shiftAt.
		_, shift := localStart.ZoneBounds()
		shiftAt := ClockOf(shift.In(loc))
		skew := Clock((startOffset - endOffset) / 60)
		interval.Start = min(interval.Start, shiftAt)
		interval.End = max(interval.End, shiftAt+skew)
	}
	interval.Start = max(interval.Start, 0)
	interval.End = min(interval.End, endOfDay)

	if interval.Empty() {
		return Interval{}, false
	}
	return interval, true
}
