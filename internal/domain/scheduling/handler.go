package scheduling

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/samasante/amina/internal/platform/apperr"
	"github.com/samasante/amina/internal/platform/auth"
	"github.com/samasante/amina/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/appointments", h.BookAppointment)
	api.GET("/appointments", h.ListAppointments)
	api.GET("/appointments/:id", h.GetAppointment)
	api.PATCH("/appointments/:id/status", h.UpdateStatus)
	api.GET("/patients/:id/appointments", h.ListPatientAppointments)
}

// canSee reports whether the caller may read a. Patients see their own
// appointments, doctors theirs, staff admins all.
func canSee(c echo.Context, a *Appointment) bool {
	ctx := c.Request().Context()
	if auth.HasRole(ctx, auth.RoleHospitalAdmin) {
		return true
	}
	if auth.CanActAsDoctor(ctx, a.DoctorID) {
		return true
	}
	p := auth.PrincipalFromContext(ctx)
	return p != nil && auth.HasRole(ctx, auth.RolePatient) && p.PatientID == a.PatientID
}

func (h *Handler) BookAppointment(c echo.Context) error {
	var req BookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	if p := auth.PrincipalFromContext(ctx); p != nil && req.PatientID == 0 && p.PatientID != 0 {
		req.PatientID = p.PatientID
	}
	if !auth.CanAccessPatient(ctx, req.PatientID) {
		return echo.NewHTTPError(http.StatusForbidden, "cannot book for another patient")
	}

	a, err := h.svc.Book(ctx, req)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := apperr.ParamID(c, "id")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if !canSee(c, a) {
		return echo.NewHTTPError(http.StatusForbidden, "access to this appointment is not allowed")
	}
	return c.JSON(http.StatusOK, a)
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus lets the appointment's doctor close it. A patient may only
// cancel their own appointment.
func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := apperr.ParamID(c, "id")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	var body statusRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	a, err := h.svc.GetAppointment(ctx, id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	allowed := auth.CanActAsDoctor(ctx, a.DoctorID)
	if !allowed && body.Status == StatusCancelled {
		allowed = canSee(c, a)
	}
	if !allowed {
		return echo.NewHTTPError(http.StatusForbidden, "cannot change this appointment")
	}

	updated, err := h.svc.UpdateStatus(ctx, id, body.Status)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, updated)
}

// ListAppointments filters by doctor_id, patient_id, status and date
// (YYYY-MM-DD). Doctors are limited to their own agenda and patients to
// their own appointments.
func (h *Handler) ListAppointments(c echo.Context) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return apperr.ToHTTP(err)
	}

	ctx := c.Request().Context()
	p := auth.PrincipalFromContext(ctx)
	switch {
	case auth.HasRole(ctx, auth.RoleHospitalAdmin):
	case auth.HasRole(ctx, auth.RoleDoctor) && p != nil && p.DoctorID != 0:
		if f.DoctorID != 0 && f.DoctorID != p.DoctorID {
			return echo.NewHTTPError(http.StatusForbidden, "cannot list another doctor's agenda")
		}
		f.DoctorID = p.DoctorID
	case auth.HasRole(ctx, auth.RolePatient) && p != nil && p.PatientID != 0:
		f.PatientID = p.PatientID
	default:
		return echo.NewHTTPError(http.StatusForbidden, "not allowed to list appointments")
	}
	return h.list(c, f)
}

func (h *Handler) ListPatientAppointments(c echo.Context) error {
	patientID, err := apperr.ParamID(c, "id")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if !auth.CanAccessPatient(c.Request().Context(), patientID) {
		return echo.NewHTTPError(http.StatusForbidden, "access to this patient is not allowed")
	}
	f, err := filterFromQuery(c)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	f.PatientID = patientID
	return h.list(c, f)
}

func (h *Handler) list(c echo.Context, f ListFilter) error {
	pg := pagination.FromContext(c)
	appts, total, err := h.svc.ListAppointments(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(appts, total, pg))
}

func filterFromQuery(c echo.Context) (ListFilter, error) {
	var f ListFilter
	for name, dst := range map[string]*int64{"doctor_id": &f.DoctorID, "patient_id": &f.PatientID} {
		if v := c.QueryParam(name); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil || id <= 0 {
				return f, apperr.Invalid("%s must be a positive integer", name)
			}
			*dst = id
		}
	}
	f.Status = c.QueryParam("status")
	if v := c.QueryParam("date"); v != "" {
		day, err := time.ParseInLocation("2006-01-02", v, time.Local)
		if err != nil {
			return f, apperr.Invalid("date %q is not YYYY-MM-DD", v)
		}
		f.From, f.To = day, day.AddDate(0, 0, 1)
	}
	return f, nil
}
