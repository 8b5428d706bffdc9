package dto

import (
	"time"

	"booking-service/internal/models"
)

const DateLayout = "2006-01-02"

type CreateReservationRequest struct {
	PropertyID string  `json:"property_id" binding:"required,uuid"`
	UnitID     *string `json:"unit_id" binding:"omitempty,uuid"`
	CheckIn    string  `json:"check_in" binding:"required,datetime=2006-01-02"`
	CheckOut   string  `json:"check_out" binding:"required,datetime=2006-01-02"`
	GuestName  string  `json:"guest_name" binding:"required,max=200"`
	GuestEmail string  `json:"guest_email" binding:"required,email"`
	GuestPhone string  `json:"guest_phone" binding:"omitempty,max=32"`
	Reference  string  `json:"reference" binding:"omitempty,max=64"`
}

type ChangeStatusRequest struct {
	Status      string `json:"status" binding:"required"`
	CancelledBy string `json:"cancelled_by" binding:"omitempty,max=64"`
	Reason      string `json:"reason" binding:"omitempty,max=500"`
}

type ListReservationsQuery struct {
	PropertyID string `form:"property_id" binding:"omitempty,uuid"`
	UnitID     string `form:"unit_id" binding:"omitempty,uuid"`
	Status     string `form:"status"`
	From       string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To         string `form:"to" binding:"omitempty,datetime=2006-01-02"`
	Limit      int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset     int    `form:"offset" binding:"omitempty,min=0"`
}

type AvailabilityQuery struct {
	PropertyID string `form:"property_id" binding:"required,uuid"`
	UnitID     string `form:"unit_id" binding:"omitempty,uuid"`
	CheckIn    string `form:"check_in" binding:"required,datetime=2006-01-02"`
	CheckOut   string `form:"check_out" binding:"required,datetime=2006-01-02"`
}

type ReservationResponse struct {
	ID              string     `json:"id"`
	Reference       string     `json:"reference"`
	PropertyID      string     `json:"property_id"`
	UnitID          *string    `json:"unit_id,omitempty"`
	CheckIn         string     `json:"check_in"`
	CheckOut        string     `json:"check_out"`
	Nights          int        `json:"nights"`
	UnitPriceCents  int64      `json:"unit_price_cents"`
	TotalPriceCents int64      `json:"total_price_cents"`
	Currency        string     `json:"currency"`
	Status          string     `json:"status"`
	PaymentStatus   string     `json:"payment_status"`
	GuestName       string     `json:"guest_name"`
	GuestEmail      string     `json:"guest_email"`
	GuestPhone      string     `json:"guest_phone,omitempty"`
	CancelledBy     *string    `json:"cancelled_by,omitempty"`
	CancelReason    *string    `json:"cancel_reason,omitempty"`
	ExpiresAt       time.Time  `json:"expires_at"`
	ConfirmedAt     *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type ListReservationsResponse struct {
	Items  []ReservationResponse `json:"items"`
	Total  int64                 `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

type AvailabilityResponse struct {
	Available bool  `json:"available"`
	Holding   int64 `json:"holding"`
}

func NewReservationResponse(r *models.Reservation) ReservationResponse {
	resp := ReservationResponse{
		ID:              r.ID.String(),
		Reference:       r.Reference,
		PropertyID:      r.PropertyID.String(),
		CheckIn:         r.CheckIn.Format(DateLayout),
		CheckOut:        r.CheckOut.Format(DateLayout),
		Nights:          r.Nights,
		UnitPriceCents:  r.UnitPriceCents,
		TotalPriceCents: r.TotalPriceCents,
		Currency:        r.CurrencyCode,
		Status:          string(r.Status),
		PaymentStatus:   string(r.PaymentStatus),
		GuestName:       r.GuestName,
		GuestEmail:      r.GuestEmail,
		GuestPhone:      r.GuestPhone,
		CancelledBy:     r.CancelledBy,
		CancelReason:    r.CancelReason,
		ExpiresAt:       r.ExpiresAt,
		ConfirmedAt:     r.ConfirmedAt,
		CancelledAt:     r.CancelledAt,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.UnitID != nil {
		id := r.UnitID.String()
		resp.UnitID = &id
	}
	return resp
}
