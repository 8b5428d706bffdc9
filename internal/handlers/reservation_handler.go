package handlers

import (
	"net/http"
	"time"

	"booking-service/internal/dto"
	"booking-service/internal/models"
	"booking-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ReservationHandler struct {
	svc service.BookingService
	log *zap.Logger
}

func NewReservationHandler(svc service.BookingService, log *zap.Logger) *ReservationHandler {
	return &ReservationHandler{svc: svc, log: log}
}

// CreateReservation godoc
// @Summary Создание брони
// @Tags reservations
// @Accept json
// @Produce json
// @Param reservation body dto.CreateReservationRequest true "Данные брони"
// @Success 201 {object} dto.ReservationResponse
// @Failure 400 {object} dto.ValidationErrorResponse
// @Failure 404 {object} dto.NotFoundErrorResponse
// @Failure 409 {object} dto.ConflictErrorResponse "lock_contention или booking_conflict"
// @Failure 500 {object} dto.InternalErrorResponse
// @Router /api/v1/reservations [post]
func (h *ReservationHandler) CreateReservation(c *gin.Context) {
	var req dto.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeBindError(c, err)
		return
	}

	in := service.CreateReservationInput{
		PropertyID: uuid.MustParse(req.PropertyID),
		CheckIn:    mustDate(req.CheckIn),
		CheckOut:   mustDate(req.CheckOut),
		GuestName:  req.GuestName,
		GuestEmail: req.GuestEmail,
		GuestPhone: req.GuestPhone,
		Reference:  req.Reference,
	}
	if req.UnitID != nil {
		id := uuid.MustParse(*req.UnitID)
		in.UnitID = &id
	}

	res, err := h.svc.CreateReservation(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewReservationResponse(res))
}

// ChangeStatus godoc
// @Summary Смена статуса брони
// @Tags reservations
// @Accept json
// @Produce json
// @Param id path string true "ID брони"
// @Param status body dto.ChangeStatusRequest true "Целевой статус"
// @Success 200 {object} dto.ReservationResponse
// @Failure 400 {object} dto.InvalidTransitionErrorResponse
// @Failure 404 {object} dto.NotFoundErrorResponse
// @Router /api/v1/reservations/{id}/status [patch]
func (h *ReservationHandler) ChangeStatus(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req dto.ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeBindError(c, err)
		return
	}

	res, err := h.svc.ChangeStatus(c.Request.Context(), service.ChangeStatusInput{
		ReservationID: id,
		Target:        models.ReservationStatus(req.Status),
		CancelledBy:   req.CancelledBy,
		Reason:        req.Reason,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewReservationResponse(res))
}

// @Router /api/v1/reservations/{id} [get]
func (h *ReservationHandler) GetReservation(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	res, err := h.svc.GetReservation(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewReservationResponse(res))
}

// @Router /api/v1/reservations/by-reference/{reference} [get]
func (h *ReservationHandler) GetReservationByReference(c *gin.Context) {
	res, err := h.svc.GetReservationByReference(c.Request.Context(), c.Param("reference"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewReservationResponse(res))
}

// @Router /api/v1/reservations [get]
func (h *ReservationHandler) ListReservations(c *gin.Context) {
	var q dto.ListReservationsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.writeBindError(c, err)
		return
	}

	f := service.ListFilter{Limit: q.Limit, Offset: q.Offset}
	if q.PropertyID != "" {
		id := uuid.MustParse(q.PropertyID)
		f.PropertyID = &id
	}
	if q.UnitID != "" {
		id := uuid.MustParse(q.UnitID)
		f.UnitID = &id
	}
	if q.Status != "" {
		st := models.ReservationStatus(q.Status)
		f.Status = &st
	}
	if q.From != "" {
		from := mustDate(q.From)
		f.From = &from
	}
	if q.To != "" {
		to := mustDate(q.To)
		f.To = &to
	}

	list, total, err := h.svc.ListReservations(c.Request.Context(), f)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := dto.ListReservationsResponse{
		Items:  make([]dto.ReservationResponse, 0, len(list)),
		Total:  total,
		Limit:  q.Limit,
		Offset: q.Offset,
	}
	if resp.Limit == 0 {
		resp.Limit = 20
	}
	for i := range list {
		resp.Items = append(resp.Items, dto.NewReservationResponse(&list[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// CheckAvailability godoc
// @Summary Проверка свободных дат (без блокировок, ответ может устареть)
// @Tags availability
// @Produce json
// @Success 200 {object} dto.AvailabilityResponse
// @Router /api/v1/availability [get]
func (h *ReservationHandler) CheckAvailability(c *gin.Context) {
	var q dto.AvailabilityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.writeBindError(c, err)
		return
	}

	aq := service.AvailabilityQuery{
		PropertyID: uuid.MustParse(q.PropertyID),
		CheckIn:    mustDate(q.CheckIn),
		CheckOut:   mustDate(q.CheckOut),
	}
	if q.UnitID != "" {
		id := uuid.MustParse(q.UnitID)
		aq.UnitID = &id
	}

	av, err := h.svc.CheckAvailability(c.Request.Context(), aq)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.AvailabilityResponse{Available: av.Available, Holding: av.Holding})
}

func (h *ReservationHandler) pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewValidationError("invalid reservation id", []dto.FieldError{
			{Field: "id", Message: "must be a UUID", Tag: "uuid"},
		}))
		return uuid.Nil, false
	}
	return id, true
}

// mustDate вызывается только после binding-проверки datetime=2006-01-02.
func mustDate(s string) time.Time {
	t, err := time.Parse(dto.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}
