package documents

import (
	"context"
	"net/http"

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
	// Reads are open to staff and to the patient the documents belong to.
	api.GET("/patients/:id/medical-file", h.GetMedicalFile)
	api.GET("/patients/:id/prescriptions", h.ListPrescriptions)
	api.GET("/patients/:id/lab-orders", h.ListLabOrders)
	api.GET("/patients/:id/consultation-notes", h.ListConsultationNotes)
	api.GET("/patients/:id/certificates", h.ListCertificates)
	api.GET("/patients/:id/referral-letters", h.ListReferralLetters)
	api.GET("/prescriptions/:id", h.GetPrescription)
	api.GET("/certificates/:id", h.GetCertificate)
	api.GET("/referral-letters/:id", h.GetReferralLetter)

	writeGroup := api.Group("", auth.RequireRole(auth.RoleDoctor))
	writeGroup.PUT("/patients/:id/medical-file", h.SaveMedicalFile)
	writeGroup.POST("/patients/:id/prescriptions", h.CreatePrescription)
	writeGroup.POST("/patients/:id/lab-orders", h.CreateLabOrder)
	writeGroup.PATCH("/lab-orders/:id/status", h.UpdateLabOrderStatus)
	writeGroup.POST("/patients/:id/consultation-notes", h.CreateConsultationNote)
	writeGroup.POST("/patients/:id/certificates", h.CreateCertificate)
	writeGroup.POST("/patients/:id/referral-letters", h.CreateReferralLetter)
}

// patientParam parses :id and checks the caller may see that patient.
func patientParam(c echo.Context) (int64, error) {
	id, err := apperr.ParamID(c, "id")
	if err != nil {
		return 0, apperr.ToHTTP(err)
	}
	if !auth.CanAccessPatient(c.Request().Context(), id) {
		return 0, echo.NewHTTPError(http.StatusForbidden, "access to this patient is not allowed")
	}
	return id, nil
}

// authorID is the doctor a new document is attributed to: the calling
// doctor, or the doctor named in the body for other callers.
func authorID(ctx context.Context, requested int64) int64 {
	if p := auth.PrincipalFromContext(ctx); p != nil && p.DoctorID != 0 {
		return p.DoctorID
	}
	return requested
}

func checkPatient(c echo.Context, patientID int64) error {
	if !auth.CanAccessPatient(c.Request().Context(), patientID) {
		return echo.NewHTTPError(http.StatusForbidden, "access to this patient is not allowed")
	}
	return nil
}

// -- Medical File --

func (h *Handler) GetMedicalFile(c echo.Context) error {
	patientID, err := patientParam(c)
	if err != nil {
		return err
	}
	f, err := h.svc.GetMedicalFile(c.Request().Context(), patientID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) SaveMedicalFile(c echo.Context) error {
	patientID, err := patientParam(c)
	if err != nil {
		return err
	}
	var f MedicalFile
	if err := c.Bind(&f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	f.PatientID = patientID
	if err := h.svc.SaveMedicalFile(c.Request().Context(), &f); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, f)
}

// -- Prescriptions --

func (h *Handler) CreatePrescription(c echo.Context) error {
	patientID, err := patientParam(c)
	if err != nil {
		return err
	}
	var p Prescription
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	p.PatientID = patientID
	p.DoctorID = authorID(ctx, p.DoctorID)
	if err := h.svc.CreatePrescription(ctx, &p); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPrescription(c echo.Context) error {
	id, err := apperr.ParamID(c, "id")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	p, err := h.svc.GetPrescription(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if err := checkPatient(c, p.PatientID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPrescriptions(c echo.Context) error {
	patientID, err := patientParam(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPrescriptions(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

// -- Lab Orders --

func (h *Handler) CreateLabOrder(c echo.Context) error {
	patientID, err := patientParam(c)
	if err != nil {
		return err
	}
	var o LabOrder
	if err := c.Bind(&o); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	o.PatientID = patientID
	o.DoctorID = authorID(ctx, o.DoctorID)
	if err := h.svc.CreateLabOrder(ctx, &o); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, o)
}

type labStatusRequest struct {
	Status        string  `json:"status"`
	ResultSummary *string `json:"result_summary"`
}

func (h *Handler) UpdateLabOrderStatus(c echo.Context) error {
	id, err := apperr.ParamID(c, "id")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	var body labStatusRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	existing, err := h.svc.GetLabOrder(ctx, id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if err := checkPatient(c, existing.PatientID); err != nil {
		return err
	}
	o, err := h.svc.UpdateLabOrderStatus(ctx, id, body.Status, body.ResultSummary)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) ListLabOrders(c echo.Context) error {
	patientID, err := patientParam(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListLabOrders(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

// -- Consultation Notes --

func (h *Handler) CreateConsultationNote(c echo.Context) error {
	patientID, err := patientParam(c)
	if err != nil {
		return err
	}
	var n ConsultationNote
	if err := c.Bind(&n); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	n.PatientID = patientID
	n.DoctorID = authorID(ctx, n.DoctorID)
	if err := h.svc.CreateConsultationNote(ctx, &n); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, n)
}

func (h *Handler) ListConsultationNotes(c echo.Context) error {
	patientID, err := patientParam(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListConsultationNotes(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

// -- Certificates --

func (h *Handler) CreateCertificate(c echo.Context) error {
	patientID, err := patientParam(c)
	if err != nil {
		return err
	}
	var cert Certificate
	if err := c.Bind(&cert); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	cert.PatientID = patientID
	cert.DoctorID = authorID(ctx, cert.DoctorID)
	if err := h.svc.CreateCertificate(ctx, &cert); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, cert)
}

func (h *Handler) GetCertificate(c echo.Context) error {
	id, err := apperr.ParamID(c, "id")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	cert, err := h.svc.GetCertificate(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if err := checkPatient(c, cert.PatientID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cert)
}

func (h *Handler) ListCertificates(c echo.Context) error {
	patientID, err := patientParam(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListCertificates(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

// -- Referral Letters --

func (h *Handler) CreateReferralLetter(c echo.Context) error {
	patientID, err := patientParam(c)
	if err != nil {
		return err
	}
	var r ReferralLetter
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	r.PatientID = patientID
	r.DoctorID = authorID(ctx, r.DoctorID)
	if err := h.svc.CreateReferralLetter(ctx, &r); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) GetReferralLetter(c echo.Context) error {
	id, err := apperr.ParamID(c, "id")
	if err != nil {
		return apperr.ToHTTP(err)
	}
	r, err := h.svc.GetReferralLetter(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if err := checkPatient(c, r.PatientID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) ListReferralLetters(c echo.Context) error {
	patientID, err := patientParam(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListReferralLetters(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}
