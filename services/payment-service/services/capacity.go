package services

import (
	"context"
	"time"

	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/models"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/repository"
)

// Capacity recomputes the "day fully booked" flag from confirmed appointments.
type Capacity struct {
	bookings      *repository.ConfirmedStore[models.Booking]
	consultations *repository.ConfirmedStore[models.Consultation]
	availability  *repository.RecordStore[models.DayCapacity]
	slotsPerDay   int
	now           func() time.Time
}

func NewCapacity(stores *repository.Stores, slotsPerDay int) *Capacity {
	return &Capacity{
		bookings:      stores.Bookings,
		consultations: stores.Consultations,
		availability:  stores.Availability,
		slotsPerDay:   slotsPerDay,
		now:           time.Now,
	}
}

// Recompute counts the appointments on date and stores the result.
func (c *Capacity) Recompute(ctx context.Context, date string) (models.DayCapacity, error) {
	bookings, err := c.bookings.List(ctx)
	if err != nil {
		return models.DayCapacity{}, err
	}
	consultations, err := c.consultations.List(ctx)
	if err != nil {
		return models.DayCapacity{}, err
	}

	taken := 0
	for _, b := range bookings {
		if b.Date == date && b.Status == models.BookingStatusConfirmed {
			taken++
		}
	}
	for _, cs := range consultations {
		if cs.Date == date {
			taken++
		}
	}

	day := models.DayCapacity{
		Date:        date,
		Booked:      taken,
		Slots:       c.slotsPerDay,
		FullyBooked: c.slotsPerDay > 0 && taken >= c.slotsPerDay,
		UpdatedAt:   c.now().UTC(),
	}
	return day, c.availability.Upsert(ctx, day)
}
