package availability

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/samasante/amina/internal/platform/apperr"
	"github.com/samasante/amina/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/doctors/:id/slots", h.GetSlots)
	api.GET("/doctors/:id/availability", h.GetRule)

	writeGroup := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleHospitalAdmin))
	writeGroup.PUT("/doctors/:id/availability", h.SaveRule)
}

func (h *Handler) GetSlots(c echo.Context) error {
	doctorID, err := apperr.ParamID(c, "id")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	date := c.QueryParam("date")
	if date == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date is required")
	}
	duration := 0
	if v := c.QueryParam("duration"); v != "" {
		duration, err = strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "duration must be an integer")
		}
	}

	out, err := h.svc.DaySlots(c.Request().Context(), doctorID, date, duration)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetRule(c echo.Context) error {
	doctorID, err := apperr.ParamID(c, "id")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	rule, err := h.svc.GetRule(c.Request().Context(), doctorID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, rule)
}

func (h *Handler) SaveRule(c echo.Context) error {
	doctorID, err := apperr.ParamID(c, "id")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	ctx := c.Request().Context()
	if !auth.CanActAsDoctor(ctx, doctorID) {
		return echo.NewHTTPError(http.StatusForbidden, "cannot edit another doctor's availability")
	}

	var rule WeeklyRule
	if err := c.Bind(&rule); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rule.DoctorID = doctorID
	if err := h.svc.SaveRule(ctx, &rule); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, rule)
}
