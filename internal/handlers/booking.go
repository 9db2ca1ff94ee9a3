package handlers

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/staypro/agenthub/internal/dispatch"
	"github.com/staypro/agenthub/pkg/models"
)

// BookingHandler creates reservation records and answers arrival queries.
type BookingHandler struct {
	deps *Deps
}

func (h *BookingHandler) Intent() string { return models.IntentBooking }

func (h *BookingHandler) Handle(ctx context.Context, req *dispatch.Request) (models.Result, error) {
	if req.String("operation") == "arrivals" {
		return h.listArrivals(req)
	}

	guestName := req.String("guest_name")
	checkinDate := req.String("checkin_date")
	if guestName == "" || checkinDate == "" {
		return models.Errored("guest_name and checkin_date are required"), nil
	}

	numGuests := 1
	if n, ok := req.Float("num_guests"); ok && n >= 1 {
		numGuests = int(n)
	}
	priceTotal, _ := req.Float("price_total")

	booking := &models.Booking{
		ID:           uuid.New().String(),
		TenantID:     req.TenantID,
		GuestName:    guestName,
		CheckinDate:  checkinDate,
		CheckoutDate: req.String("checkout_date"),
		RoomType:     req.String("room_type"),
		NumGuests:    numGuests,
		PriceTotal:   priceTotal,
		Source:       req.String("source"),
		Notes:        req.String("notes"),
		CreatedAt:    h.deps.now(),
	}
	if err := h.deps.Store.CreateBooking(booking); err != nil {
		return models.Errored(fmt.Sprintf("failed to create booking: %v", err)), nil
	}

	return models.Completed(map[string]any{
		"booking_id":   booking.ID,
		"guest_name":   guestName,
		"checkin_date": checkinDate,
		"num_guests":   numGuests,
	}), nil
}

// listArrivals reports bookings checking in on the requested date, defaulting
// to tomorrow.
func (h *BookingHandler) listArrivals(req *dispatch.Request) (models.Result, error) {
	date := req.String("date")
	if date == "" {
		date = h.deps.now().AddDate(0, 0, 1).Format("2006-01-02")
	}

	bookings, err := h.deps.Store.ListBookingsByCheckin(req.TenantID, date)
	if err != nil {
		return models.Errored(fmt.Sprintf("failed to list arrivals: %v", err)), nil
	}

	arrivals := make([]map[string]any, 0, len(bookings))
	for _, b := range bookings {
		arrivals = append(arrivals, map[string]any{
			"booking_id": b.ID,
			"guest_name": b.GuestName,
			"room_type":  b.RoomType,
			"num_guests": b.NumGuests,
		})
	}

	return models.Completed(map[string]any{
		"date":     date,
		"count":    len(arrivals),
		"arrivals": arrivals,
	}), nil
}
