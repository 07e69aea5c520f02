package signature

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/samasante/amina/internal/domain/documents"
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
	api.POST("/signatures", h.Sign, auth.RequireRole(auth.RoleDoctor))
	api.POST("/signatures/verify", h.Verify)
	api.GET("/signatures/:type/:id/certificate", h.Certificate)
}

type documentRef struct {
	DocumentType string `json:"document_type"`
	DocumentID   int64  `json:"document_id"`
	// Content, when set, is checked instead of the stored document.
	Content *string `json:"content,omitempty"`
}

// readableDocument loads the document and checks the caller may see its
// patient.
func (h *Handler) readableDocument(c echo.Context, docType string, id int64) (*documents.Document, error) {
	doc, err := h.svc.Document(c.Request().Context(), docType, id)
	if err != nil {
		return nil, apperr.ToHTTP(err)
	}
	if !auth.CanAccessPatient(c.Request().Context(), doc.PatientID) {
		return nil, echo.NewHTTPError(http.StatusForbidden, "access to this document is not allowed")
	}
	return doc, nil
}

// Sign signs the stored content of a document. Doctors sign their own
// documents only.
func (h *Handler) Sign(c echo.Context) error {
	var ref documentRef
	if err := c.Bind(&ref); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	doc, err := h.svc.Document(ctx, ref.DocumentType, ref.DocumentID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if !auth.CanActAsDoctor(ctx, doc.DoctorID) {
		return echo.NewHTTPError(http.StatusForbidden, "only the authoring doctor may sign this document")
	}
	p := auth.PrincipalFromContext(ctx)
	sig, err := h.svc.Sign(ctx, doc.ID, doc.Type, p.UserID, doc.Content)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, sig)
}

func (h *Handler) Verify(c echo.Context) error {
	var ref documentRef
	if err := c.Bind(&ref); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	doc, err := h.readableDocument(c, ref.DocumentType, ref.DocumentID)
	if err != nil {
		return err
	}
	content := doc.Content
	if ref.Content != nil {
		content = *ref.Content
	}
	res, err := h.svc.Verify(c.Request().Context(), doc.ID, doc.Type, content)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Certificate(c echo.Context) error {
	id, err := apperr.ParamID(c, "id")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	doc, err := h.readableDocument(c, c.Param("type"), id)
	if err != nil {
		return err
	}
	text, err := h.svc.CertificateText(c.Request().Context(), doc.ID, doc.Type)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.String(http.StatusOK, text)
}
