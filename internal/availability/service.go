package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"barberbook/internal/model"
	"barberbook/internal/timewindow"
)

var (
	ErrPastDate    = errors.New("cannot check availability for a past date")
	ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")
	ErrHoursNotSet = errors.New("shop has no operating hours configured")
)

// ShopGetter loads the shop with its opening hours.
type ShopGetter interface {
	GetShop(ctx context.Context, id string) (model.Shop, error)
}

// IntervalLister returns booked intervals of a shop overlapping [from, to).
// Only slot-holding appointments count; cancelled and completed ones are
// already filtered out by the store.
type IntervalLister interface {
	ListIntervals(ctx context.Context, shopID string, from, to time.Time) ([]model.Interval, error)
}

// Service computes slot availability for shops. The clock is injected so
// tests can pin "now".
type Service struct {
	shops     ShopGetter
	intervals IntervalLister
	now       func() time.Time
}

func NewService(shops ShopGetter, intervals IntervalLister) *Service {
	return &Service{shops: shops, intervals: intervals, now: time.Now}
}

// WithClock overrides the time source. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Slots returns the full availability picture for a shop on a date.
// duration is the total booking length in minutes; zero means a single
// slot interval.
func (s *Service) Slots(ctx context.Context, shopID, date string, duration int) (DaySlots, error) {
	if duration <= 0 {
		duration = SlotInterval
	}

	day, err := parseDate(date)
	if err != nil {
		return DaySlots{}, err
	}

	now := s.now().UTC()
	today := now.Truncate(24 * time.Hour)
	if day.Before(today) {
		return DaySlots{}, ErrPastDate
	}

	shop, err := s.shops.GetShop(ctx, shopID)
	if err != nil {
		return DaySlots{}, err
	}

	openMin, closeMin, err := shopHours(shop)
	if err != nil {
		return DaySlots{}, err
	}

	busy, err := s.intervals.ListIntervals(ctx, shopID, day, day.Add(24*time.Hour))
	if err != nil {
		return DaySlots{}, err
	}

	slots, available := buildSlots(day, openMin, closeMin, duration, busy, "", now)
	return DaySlots{
		ShopID:         shopID,
		Date:           date,
		OpenTime:       timewindow.Format(openMin),
		CloseTime:      timewindow.Format(closeMin),
		TimeSlots:      slots,
		TotalAvailable: available,
	}, nil
}

// CheckSlot validates a single start instant for a booking of the given
// duration. excludeID lets a reschedule ignore the appointment it moves.
// A false result comes with a human-readable reason.
func (s *Service) CheckSlot(ctx context.Context, shopID string, start time.Time, duration int, excludeID string) (bool, string, error) {
	if duration <= 0 {
		duration = SlotInterval
	}
	start = start.UTC()
	now := s.now().UTC()

	if !start.After(now) {
		return false, "Past time", nil
	}

	shop, err := s.shops.GetShop(ctx, shopID)
	if err != nil {
		return false, "", err
	}

	openMin, closeMin, err := shopHours(shop)
	if err != nil {
		return false, "", err
	}

	startMin := start.Hour()*60 + start.Minute()
	if startMin < openMin || startMin+duration > closeMin {
		return false, "Outside opening hours", nil
	}

	day := start.Truncate(24 * time.Hour)
	busy, err := s.intervals.ListIntervals(ctx, shopID, day, day.Add(24*time.Hour))
	if err != nil {
		return false, "", err
	}

	end := start.Add(time.Duration(duration) * time.Minute)
	if Overlaps(start, end, busy, excludeID) {
		return false, "Already booked", nil
	}
	return true, "", nil
}

func shopHours(shop model.Shop) (openMin, closeMin int, err error) {
	if shop.OpenTime == "" || shop.CloseTime == "" {
		return 0, 0, fmt.Errorf("shop %s: %w", shop.ID, ErrHoursNotSet)
	}
	openMin, err = timewindow.Parse(shop.OpenTime)
	if err != nil {
		return 0, 0, fmt.Errorf("shop %s open time: %w", shop.ID, err)
	}
	closeMin, err = timewindow.Parse(shop.CloseTime)
	if err != nil {
		return 0, 0, fmt.Errorf("shop %s close time: %w", shop.ID, err)
	}
	return openMin, closeMin, nil
}

func parseDate(date string) (time.Time, error) {
	day, err := time.ParseInLocation(time.DateOnly, date, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return day, nil
}
