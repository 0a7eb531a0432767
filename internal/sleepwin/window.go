package sleepwin

import (
	"fmt"
	"time"
)

// WeekdaySet is a bitmask of weekdays (bit 0 = Sunday, matching time.Weekday).
type WeekdaySet uint8

// AllWeekdays returns a set containing every weekday.
func AllWeekdays() WeekdaySet {
	return WeekdaySet(0x7F)
}

// Add adds a weekday to the set.
func (s *WeekdaySet) Add(d time.Weekday) {
	*s |= 1 << uint(d)
}

// Contains reports whether the weekday is in the set.
func (s WeekdaySet) Contains(d time.Weekday) bool {
	return s&(1<<uint(d)) != 0
}

// Window is a recurring sleep window configuration.
// Start and End are minutes of day (0..1439). Start > End means the window
// wraps past midnight (e.g. 22:00 -> 06:30).
type Window struct {
	Enabled  bool       `json:"enabled"`
	Start    int        `json:"start_min"`
	End      int        `json:"end_min"`
	Weekdays WeekdaySet `json:"weekdays"`
}

// NewWindow builds a Window from "HH:MM" start/end strings.
// Malformed times return a disabled window and an error; callers treat that
// as "sleep exclusion off" rather than a hard failure.
func NewWindow(startTime, endTime string, weekdays WeekdaySet) (Window, error) {
	start, err := ParseClock(startTime)
	if err != nil {
		return Window{}, fmt.Errorf("invalid sleep start: %w", err)
	}
	end, err := ParseClock(endTime)
	if err != nil {
		return Window{}, fmt.Errorf("invalid sleep end: %w", err)
	}
	return Window{
		Enabled:  true,
		Start:    start,
		End:      end,
		Weekdays: weekdays,
	}, nil
}

// ParseClock parses "HH:MM" into minutes of day.
func ParseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock time %q out of range", s)
	}
	return h*60 + m, nil
}

// FormatClock renders minutes of day as "HH:MM".
func FormatClock(min int) string {
	return fmt.Sprintf("%02d:%02d", min/60, min%60)
}

// IsSleepTime reports whether now falls inside the sleep window.
// Disabled windows and inactive weekdays are never sleep time.
func (w Window) IsSleepTime(now time.Time) bool {
	if !w.Enabled {
		return false
	}
	if !w.Weekdays.Contains(now.Weekday()) {
		return false
	}
	return w.containsMinute(now.Hour()*60 + now.Minute())
}

// containsMinute checks a minute of day against the window, closed interval.
// The same comparison serves both same-day and overnight windows.
func (w Window) containsMinute(m int) bool {
	if w.Start > w.End {
		return m >= w.Start || m <= w.End
	}
	return m >= w.Start && m <= w.End
}

// AwakeDuration returns the portion of [start, end] spent outside the sleep
// window. The interval is walked one calendar day at a time: a day whose
// weekday is not active counts fully awake; an active day subtracts the
// overlap between the day's slice and that day's sleep segments. An
// overnight window contributes two segments to each day, [Start, 24:00) and
// [00:00, End].
func (w Window) AwakeDuration(start, end time.Time) time.Duration {
	if !end.After(start) {
		return 0
	}
	if !w.Enabled {
		return end.Sub(start)
	}

	var awake time.Duration
	day := startOfDay(start)
	for day.Before(end) {
		next := day.AddDate(0, 0, 1)

		sliceStart := maxTime(start, day)
		sliceEnd := minTime(end, next)
		slice := sliceEnd.Sub(sliceStart)

		if !w.Weekdays.Contains(day.Weekday()) {
			awake += slice
		} else {
			awake += slice - w.sleepOverlap(day, next, sliceStart, sliceEnd)
		}
		day = next
	}
	return awake
}

// sleepOverlap returns how much of [sliceStart, sliceEnd] intersects the
// sleep segments of the day beginning at day.
func (w Window) sleepOverlap(day, next, sliceStart, sliceEnd time.Time) time.Duration {
	var overlap time.Duration
	if w.Start > w.End {
		// Overnight: late segment [Start, 24:00) plus early segment [00:00, End].
		overlap += segmentOverlap(day.Add(minutes(w.Start)), next, sliceStart, sliceEnd)
		overlap += segmentOverlap(day, day.Add(minutes(w.End)), sliceStart, sliceEnd)
	} else {
		overlap += segmentOverlap(day.Add(minutes(w.Start)), day.Add(minutes(w.End)), sliceStart, sliceEnd)
	}
	return overlap
}

// segmentOverlap returns the length of [segStart, segEnd] ∩ [a, b].
func segmentOverlap(segStart, segEnd, a, b time.Time) time.Duration {
	lo := maxTime(segStart, a)
	hi := minTime(segEnd, b)
	if hi.After(lo) {
		return hi.Sub(lo)
	}
	return 0
}

func minutes(m int) time.Duration {
	return time.Duration(m) * time.Minute
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
