package gdpr

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/samasante/amina/internal/platform/apperr"
	"github.com/samasante/amina/internal/platform/auth"
	"github.com/samasante/amina/internal/platform/middleware"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the patient rights endpoints. Administrators act for
// any patient, a patient only for themself.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/patients/:id/gdpr", auth.RequireRole(auth.RoleHospitalAdmin, auth.RolePatient))
	g.POST("/erasure", h.RequestErasure)
	g.GET("/export", h.Export)
}

func (h *Handler) patient(c echo.Context) (int64, string, error) {
	id, err := apperr.ParamID(c, "id")
	if err != nil {
		return 0, "", apperr.ToHTTP(err)
	}
	ctx := c.Request().Context()
	if !auth.CanAccessPatient(ctx, id) {
		return 0, "", echo.NewHTTPError(http.StatusForbidden, "access to this patient is not allowed")
	}
	userID := ""
	if p := auth.PrincipalFromContext(ctx); p != nil {
		userID = p.UserID
	}
	return id, userID, nil
}

type erasureResponse struct {
	Success bool `json:"success"`
	*ErasureOutcome
}

func (h *Handler) RequestErasure(c echo.Context) error {
	id, userID, err := h.patient(c)
	if err != nil {
		return err
	}
	out, err := h.svc.RequestErasure(c.Request().Context(), id, userID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	c.Set(middleware.AuditedKey, true)
	return c.JSON(http.StatusOK, erasureResponse{Success: true, ErasureOutcome: out})
}

// Export returns the patient's data as JSON (default), CSV or PDF.
func (h *Handler) Export(c echo.Context) error {
	id, userID, err := h.patient(c)
	if err != nil {
		return err
	}
	format := c.QueryParam("format")
	if format == "" {
		format = FormatJSON
	}
	switch format {
	case FormatJSON, FormatCSV, FormatPDF:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "format must be one of json, csv, pdf")
	}
	if format == FormatPDF {
		_, err := GeneratePDFExport(nil)
		return apperr.ToHTTP(err)
	}

	bundle, err := h.svc.ExportPatientData(c.Request().Context(), id, userID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	c.Set(middleware.AuditedKey, true)

	if format == FormatCSV {
		out, err := GenerateCSVExport(bundle)
		if err != nil {
			return apperr.ToHTTP(err)
		}
		c.Response().Header().Set(echo.HeaderContentDisposition,
			fmt.Sprintf(`attachment; filename="patient-%d-export.csv"`, id))
		return c.Blob(http.StatusOK, "text/csv; charset=utf-8", []byte(out))
	}
	return c.JSON(http.StatusOK, bundle)
}
