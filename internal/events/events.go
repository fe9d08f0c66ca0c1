// Package events defines the messages the booking engine emits for
// downstream consumers such as the invitation mailer.
package events

import "venuebook/internal/domain"

const KeyBookingCreated = "booking.created"

type BookingCreated struct {
	BookingID string   `json:"bookingId"`
	VenueID   string   `json:"venueId"`
	VenueName string   `json:"venueName"`
	EventName string   `json:"eventName"`
	DateFrom  string   `json:"dateFrom"`
	DateTo    string   `json:"dateTo"`
	TimeFrom  string   `json:"timeFrom"`
	TimeTo    string   `json:"timeTo"`
	Emails    []string `json:"emails"`
	CreatedAt string   `json:"createdAt"`
}

func NewBookingCreated(b domain.Booking) BookingCreated {
	emails := b.Emails
	if emails == nil {
		emails = []string{}
	}
	return BookingCreated{
		BookingID: b.BookingID,
		VenueID:   b.VenueID,
		VenueName: b.VenueName,
		EventName: b.EventName,
		DateFrom:  b.DateFrom,
		DateTo:    b.DateTo,
		TimeFrom:  b.TimeFrom,
		TimeTo:    b.TimeTo,
		Emails:    emails,
		CreatedAt: b.CreatedAt,
	}
}
