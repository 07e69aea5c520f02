package availability

import (
	"time"
)

// GenerateSlots lays out slots of durationMinutes across the day's
// intervals, in stored interval order. Consecutive slot starts are
// durationMinutes+bufferMinutes apart and no slot ends after its interval.
func GenerateSlots(day DaySchedule, durationMinutes, bufferMinutes int) []Slot {
	if durationMinutes <= 0 {
		return nil
	}
	if bufferMinutes < 0 {
		bufferMinutes = 0
	}
	step := durationMinutes + bufferMinutes

	var slots []Slot
	for _, iv := range day.Intervals {
		start, err := parseClock(iv.Start)
		if err != nil {
			continue
		}
		end, err := parseClock(iv.End)
		if err != nil {
			continue
		}
		for t := start; t+durationMinutes <= end; t += step {
			slots = append(slots, Slot{
				Time:    formatClock(t),
				Display: formatClock(t) + "-" + formatClock(t+durationMinutes),
			})
		}
	}
	return slots
}

// FreeSlots drops every slot whose start matches the local HH:MM start of a
// non-cancelled booking.
func FreeSlots(slots []Slot, bookings []Booking, loc *time.Location) []Slot {
	occupied := make(map[string]bool, len(bookings))
	for _, b := range bookings {
		if b.Status == statusCancelled {
			continue
		}
		occupied[b.Start.In(loc).Format(clockLayout)] = true
	}

	free := make([]Slot, 0, len(slots))
	for _, s := range slots {
		if !occupied[s.Time] {
			free = append(free, s)
		}
	}
	return free
}
