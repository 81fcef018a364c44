package availability

import (
	"time"

	"barberbook/internal/model"
	"barberbook/internal/timewindow"
)

// SlotInterval is the cadence at which bookable slots start, in minutes.
const SlotInterval = 30

// Slot is one bookable start time within a shop day. Time is a 12-hour
// label such as "09:30 AM".
type Slot struct {
	Time           string `json:"time"`
	Available      bool   `json:"available"`
	ConflictReason string `json:"conflictReason,omitempty"`
}

// DaySlots is the availability picture for one shop on one date.
type DaySlots struct {
	ShopID         string `json:"shopId"`
	Date           string `json:"date"`
	OpenTime       string `json:"openTime"`
	CloseTime      string `json:"closeTime"`
	TimeSlots      []Slot `json:"timeSlots"`
	TotalAvailable int    `json:"totalAvailable"`
}

// SlotStarts returns candidate slot start offsets (minutes since midnight)
// on the slot cadence. A start qualifies only if the full duration fits
// before closing time.
func SlotStarts(openMin, closeMin, duration int) []int {
	var starts []int
	for m := openMin; m+duration <= closeMin; m += SlotInterval {
		starts = append(starts, m)
	}
	return starts
}

// Overlaps reports whether [slotStart, slotEnd) collides with any busy
// interval. Intervals are half-open, so back-to-back bookings do not
// conflict. The interval with excludeID is skipped, which lets a
// reschedule ignore the appointment being moved.
func Overlaps(slotStart, slotEnd time.Time, busy []model.Interval, excludeID string) bool {
	for _, b := range busy {
		if excludeID != "" && b.AppointmentID == excludeID {
			continue
		}
		if slotStart.Before(b.End) && b.Start.Before(slotEnd) {
			return true
		}
	}
	return false
}

// buildSlots classifies every candidate start for the day. now gates slots
// already in the past; busy marks slots taken by existing appointments.
func buildSlots(day time.Time, openMin, closeMin, duration int, busy []model.Interval, excludeID string, now time.Time) ([]Slot, int) {
	starts := SlotStarts(openMin, closeMin, duration)
	slots := make([]Slot, 0, len(starts))
	available := 0

	for _, m := range starts {
		start := day.Add(time.Duration(m) * time.Minute)
		end := start.Add(time.Duration(duration) * time.Minute)

		slot := Slot{Time: timewindow.Format(m), Available: true}
		switch {
		case !start.After(now):
			slot.Available = false
			slot.ConflictReason = "Past time"
		case Overlaps(start, end, busy, excludeID):
			slot.Available = false
			slot.ConflictReason = "Already booked"
		default:
			available++
		}
		slots = append(slots, slot)
	}
	return slots, available
}
