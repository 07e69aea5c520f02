package auditlog

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
	read := api.Group("", auth.RequireRole(auth.RoleHospitalAdmin))
	read.GET("/audit-log", h.ListEntries)
	read.GET("/audit-log/:id", h.GetEntry)
}

func (h *Handler) GetEntry(c echo.Context) error {
	id, err := apperr.ParamID(c, "id")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	e, err := h.svc.GetEntry(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, e)
}

// ListEntries accepts ?user_id, ?action, ?entity_type, ?entity_id and the
// RFC 3339 bounds ?from and ?to.
func (h *Handler) ListEntries(c echo.Context) error {
	f := Filter{
		UserID:     c.QueryParam("user_id"),
		Action:     c.QueryParam("action"),
		EntityType: c.QueryParam("entity_type"),
	}
	if v := c.QueryParam("entity_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "entity_id must be an integer")
		}
		f.EntityID = id
	}
	for _, b := range []struct {
		name string
		dst  *time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		v := c.QueryParam(b.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, b.name+" must be an RFC 3339 timestamp")
		}
		*b.dst = t
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.Search(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}
