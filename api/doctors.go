package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prescripto/booking/internal/domain"
	"github.com/prescripto/booking/internal/repository"
	"github.com/prescripto/booking/internal/service/doctors"
	"github.com/prescripto/booking/internal/service/reconcile"
)

type DoctorHandler struct {
	service doctors.DoctorUseCase
}

type addDoctorRequest struct {
	Name       string         `json:"name" binding:"required"`
	Email      string         `json:"email" binding:"required,email"`
	Image      string         `json:"image"`
	Speciality string         `json:"speciality" binding:"required"`
	Degree     string         `json:"degree" binding:"required"`
	Experience string         `json:"experience" binding:"required"`
	About      string         `json:"about" binding:"required"`
	Fees       int64          `json:"fees" binding:"required,gt=0"`
	Address    domain.Address `json:"address"`
}

type updateProfileRequest struct {
	Fees      *int64          `json:"fees" binding:"omitempty,gte=0"`
	Address   *domain.Address `json:"address"`
	Available *bool           `json:"available"`
}

type dashboardResponse struct {
	Earnings           int64                 `json:"earnings"`
	Appointments       int                   `json:"appointments"`
	Patients           int64                 `json:"patients"`
	Doctors            int                   `json:"doctors,omitempty"`
	LatestAppointments []appointmentResponse `json:"latestAppointments"`
}

func NewDoctorHandler(service doctors.DoctorUseCase) *DoctorHandler {
	return &DoctorHandler{service: service}
}

func (h *DoctorHandler) Register(router *gin.RouterGroup, auth gin.HandlerFunc) {
	router.GET("/doctors", h.list)
	router.GET("/doctors/:id", h.get)
	router.POST("/doctors", auth, RequireRole(domain.RoleAdmin), h.add)
	router.POST("/doctors/profile", auth, RequireRole(domain.RoleDoctor), h.updateOwnProfile)
	router.POST("/doctors/:id/profile", auth, RequireRole(domain.RoleDoctor, domain.RoleAdmin), h.updateProfile)
	router.POST("/doctors/:id/availability", auth, RequireRole(domain.RoleDoctor, domain.RoleAdmin), h.changeAvailability)
	router.GET("/dashboard", auth, RequireRole(domain.RoleDoctor, domain.RoleAdmin), h.dashboard)
}

func (h *DoctorHandler) list(c *gin.Context) {
	list, err := h.service.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "doctors": list})
}

func (h *DoctorHandler) get(c *gin.Context) {
	doctor, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "doctor": doctor})
}

func (h *DoctorHandler) add(c *gin.Context) {
	actor, _ := actorFrom(c)
	var req addDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Missing Details")
		return
	}

	doctor, err := h.service.AddDoctor(c.Request.Context(), doctors.NewDoctor{
		Name:       req.Name,
		Email:      req.Email,
		Image:      req.Image,
		Speciality: req.Speciality,
		Degree:     req.Degree,
		Experience: req.Experience,
		About:      req.About,
		Fees:       req.Fees,
		Address:    req.Address,
	}, actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Doctor Added", "doctor": doctor})
}

func (h *DoctorHandler) updateOwnProfile(c *gin.Context) {
	actor, _ := actorFrom(c)
	h.writeProfile(c, actor.ID, actor)
}

func (h *DoctorHandler) updateProfile(c *gin.Context) {
	actor, _ := actorFrom(c)
	h.writeProfile(c, c.Param("id"), actor)
}

func (h *DoctorHandler) writeProfile(c *gin.Context, id string, actor domain.Actor) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	doctor, err := h.service.UpdateProfile(c.Request.Context(), id, repository.ProfileUpdate{
		Fees:      req.Fees,
		Address:   req.Address,
		Available: req.Available,
	}, actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Profile Updated", "doctor": doctor})
}

func (h *DoctorHandler) changeAvailability(c *gin.Context) {
	actor, _ := actorFrom(c)
	doctor, err := h.service.ChangeAvailability(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Availability Changed", "doctor": doctor})
}

func (h *DoctorHandler) dashboard(c *gin.Context) {
	actor, _ := actorFrom(c)
	dash, err := h.service.Dashboard(c.Request.Context(), actor)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := dashboardResponse{
		Earnings:           dash.Earnings,
		Appointments:       dash.Appointments,
		Patients:           dash.Patients,
		Doctors:            dash.Doctors,
		LatestAppointments: make([]appointmentResponse, 0, len(dash.LatestAppointments)),
	}
	for i := range dash.LatestAppointments {
		resp.LatestAppointments = append(resp.LatestAppointments, newAppointmentResponse(&dash.LatestAppointments[i]))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "dashboard": resp})
}

type AdminHandler struct {
	reconcile reconcile.ReconcileUseCase
}

func NewAdminHandler(reconcileSvc reconcile.ReconcileUseCase) *AdminHandler {
	return &AdminHandler{reconcile: reconcileSvc}
}

func (h *AdminHandler) Register(router *gin.RouterGroup, auth gin.HandlerFunc) {
	router.POST("/admin/reconcile", auth, RequireRole(domain.RoleAdmin), h.runReconciliation)
}

func (h *AdminHandler) runReconciliation(c *gin.Context) {
	report, err := h.reconcile.Run(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "report": report})
}
