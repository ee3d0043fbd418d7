package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SlotCalendar maps a date-key (D_M_YYYY) to the times held by active appointments.
type SlotCalendar map[string][]string

// SlotKey is the unit of mutual exclusion for bookings.
type SlotKey struct {
	DoctorID string
	Date     string
	Time     string
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.DoctorID, k.Date, k.Time)
}

// IsFree reports whether time is absent from the list at date. A missing date is fully free.
func (c SlotCalendar) IsFree(date, time string) bool {
	for _, t := range c[date] {
		if t == time {
			return false
		}
	}
	return true
}

// Occupy appends time to the list at date. It returns false and leaves the
// calendar untouched when the time is already held.
func (c SlotCalendar) Occupy(date, time string) bool {
	if !c.IsFree(date, time) {
		return false
	}
	c[date] = append(c[date], time)
	return true
}

// Release removes one occurrence of time at date and drops the date when its list empties.
func (c SlotCalendar) Release(date, time string) bool {
	times, ok := c[date]
	if !ok {
		return false
	}
	for i, t := range times {
		if t != time {
			continue
		}
		rest := make([]string, 0, len(times)-1)
		rest = append(rest, times[:i]...)
		rest = append(rest, times[i+1:]...)
		if len(rest) == 0 {
			delete(c, date)
		} else {
			c[date] = rest
		}
		return true
	}
	return false
}

// Count returns the number of occupied slots across all dates.
func (c SlotCalendar) Count() int {
	n := 0
	for _, times := range c {
		n += len(times)
	}
	return n
}

func (c SlotCalendar) Clone() SlotCalendar {
	out := make(SlotCalendar, len(c))
	for date, times := range c {
		out[date] = append([]string(nil), times...)
	}
	return out
}

// DateKey formats t in the non-zero-padded D_M_YYYY form used by stored data.
func DateKey(t time.Time) string {
	return fmt.Sprintf("%d_%d_%d", t.Day(), int(t.Month()), t.Year())
}

// ParseDateKey parses a D_M_YYYY key into a UTC midnight.
func ParseDateKey(key string) (time.Time, error) {
	parts := strings.Split(key, "_")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("invalid date key %q", key)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 || strings.HasPrefix(p, "0") {
			return time.Time{}, fmt.Errorf("invalid date key %q", key)
		}
		nums[i] = n
	}
	day, month, year := nums[0], nums[1], nums[2]
	if month > 12 || year < 1000 {
		return time.Time{}, fmt.Errorf("invalid date key %q", key)
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, fmt.Errorf("invalid date key %q", key)
	}
	return t, nil
}

var slotTimePattern = regexp.MustCompile(`^(1[0-2]|[1-9]):[0-5][0-9] (AM|PM)$`)

// ValidSlotTime reports whether s looks like "10:30 AM".
func ValidSlotTime(s string) bool {
	return slotTimePattern.MatchString(s)
}
