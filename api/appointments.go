package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prescripto/booking/internal/domain"
	"github.com/prescripto/booking/internal/service/booking"
	"github.com/prescripto/booking/internal/service/doctors"
	"github.com/prescripto/booking/internal/service/lifecycle"
)

type AppointmentHandler struct {
	booking   booking.BookingUseCase
	lifecycle lifecycle.LifecycleUseCase
	doctors   doctors.DoctorUseCase
}

type availabilityRequest struct {
	DoctorID string `json:"docId"`
	SlotDate string `json:"slotDate"`
	SlotTime string `json:"slotTime"`
}

// bookRequest books for the calling patient. Admins book on behalf of userId and
// may set amount.
type bookRequest struct {
	DoctorID string `json:"docId"`
	SlotDate string `json:"slotDate"`
	SlotTime string `json:"slotTime"`
	UserID   string `json:"userId"`
	Amount   *int64 `json:"amount"`
}

type verifyPaymentRequest struct {
	OrderID string `json:"orderId"`
}

type appointmentResponse struct {
	ID            string                 `json:"id"`
	PatientID     string                 `json:"userId"`
	DoctorID      string                 `json:"docId"`
	SlotDate      string                 `json:"slotDate"`
	SlotTime      string                 `json:"slotTime"`
	Amount        int64                  `json:"amount"`
	Status        string                 `json:"status"`
	Cancelled     bool                   `json:"cancelled"`
	IsCompleted   bool                   `json:"isCompleted"`
	PaymentStatus string                 `json:"paymentStatus"`
	UserData      domain.PatientSnapshot `json:"userData"`
	DocData       domain.DoctorSnapshot  `json:"docData"`
	Date          time.Time              `json:"date"`
	CancelledAt   *time.Time             `json:"cancelledAt,omitempty"`
	CompletedAt   *time.Time             `json:"completedAt,omitempty"`
}

func NewAppointmentHandler(
	bookingSvc booking.BookingUseCase,
	lifecycleSvc lifecycle.LifecycleUseCase,
	doctorSvc doctors.DoctorUseCase,
) *AppointmentHandler {
	return &AppointmentHandler{booking: bookingSvc, lifecycle: lifecycleSvc, doctors: doctorSvc}
}

func (h *AppointmentHandler) Register(router *gin.RouterGroup, auth gin.HandlerFunc) {
	router.POST("/availability", h.checkAvailability)

	authed := router.Group("", auth)
	authed.POST("/appointments", RequireRole(domain.RolePatient, domain.RoleAdmin), h.book)
	authed.GET("/appointments", h.list)
	authed.POST("/appointments/:id/cancel", h.cancel)
	authed.POST("/appointments/:id/complete", RequireRole(domain.RoleDoctor, domain.RoleAdmin), h.complete)
	authed.POST("/appointments/:id/payment", RequireRole(domain.RolePatient), h.createPayment)
	authed.POST("/payments/verify", RequireRole(domain.RolePatient), h.verifyPayment)
}

func (h *AppointmentHandler) checkAvailability(c *gin.Context) {
	var req availabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	availability, err := h.booking.CheckAvailability(c.Request.Context(), req.DoctorID, req.SlotDate, req.SlotTime)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "availability": availability})
}

func (h *AppointmentHandler) book(c *gin.Context) {
	actor, _ := actorFrom(c)
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	input := booking.BookInput{
		PatientID: actor.ID,
		DoctorID:  req.DoctorID,
		SlotDate:  req.SlotDate,
		SlotTime:  req.SlotTime,
		BookedBy:  actor.Role,
		Amount:    req.Amount,
	}
	if actor.Role == domain.RoleAdmin {
		if req.UserID == "" {
			badRequest(c, "userId is required")
			return
		}
		input.PatientID = req.UserID
	}

	appt, err := h.booking.BookAppointment(c.Request.Context(), input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":     true,
		"message":     "Appointment Booked",
		"appointment": newAppointmentResponse(appt),
	})
}

func (h *AppointmentHandler) list(c *gin.Context) {
	actor, _ := actorFrom(c)
	appts, err := h.doctors.ListAppointments(c.Request.Context(), actor)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]appointmentResponse, 0, len(appts))
	for i := range appts {
		out = append(out, newAppointmentResponse(&appts[i]))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "appointments": out})
}

func (h *AppointmentHandler) cancel(c *gin.Context) {
	actor, _ := actorFrom(c)
	appt, err := h.lifecycle.Cancel(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     "Appointment Cancelled",
		"appointment": newAppointmentResponse(appt),
	})
}

func (h *AppointmentHandler) complete(c *gin.Context) {
	actor, _ := actorFrom(c)
	appt, err := h.lifecycle.Complete(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     "Appointment Completed",
		"appointment": newAppointmentResponse(appt),
	})
}

func (h *AppointmentHandler) createPayment(c *gin.Context) {
	actor, _ := actorFrom(c)
	order, err := h.lifecycle.CreatePaymentOrder(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "order": order})
}

func (h *AppointmentHandler) verifyPayment(c *gin.Context) {
	actor, _ := actorFrom(c)
	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	appt, err := h.lifecycle.VerifyPayment(c.Request.Context(), req.OrderID, actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     "Payment Successful",
		"appointment": newAppointmentResponse(appt),
	})
}

func newAppointmentResponse(a *domain.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:            a.ID,
		PatientID:     a.PatientID,
		DoctorID:      a.DoctorID,
		SlotDate:      a.SlotDate,
		SlotTime:      a.SlotTime,
		Amount:        a.Amount,
		Status:        string(a.Status),
		Cancelled:     a.Cancelled(),
		IsCompleted:   a.Completed(),
		PaymentStatus: string(a.PaymentStatus),
		UserData:      a.Patient,
		DocData:       a.Doctor,
		Date:          a.CreatedAt,
		CancelledAt:   a.CancelledAt,
		CompletedAt:   a.CompletedAt,
	}
}
