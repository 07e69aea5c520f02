package scheduling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samasante/amina/internal/platform/auth"
)

func newTestHandler() (*Handler, *Service, *echo.Echo) {
	svc, _, _, _ := newTestService()
	return NewHandler(svc), svc, echo.New()
}

func withPrincipal(req *http.Request, p *auth.Principal) *http.Request {
	return req.WithContext(auth.WithPrincipal(context.Background(), p))
}

var (
	patientTwo = &auth.Principal{UserID: "p2", Roles: []string{auth.RolePatient}, PatientID: 2}
	doctorOne  = &auth.Principal{UserID: "d1", Roles: []string{auth.RoleDoctor}, DoctorID: 1}
	doctorNine = &auth.Principal{UserID: "d9", Roles: []string{auth.RoleDoctor}, DoctorID: 9}
	admin      = &auth.Principal{UserID: "a", Roles: []string{auth.RoleHospitalAdmin}}
)

func statusOf(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected *echo.HTTPError, got %v", err)
	return he.Code
}

func bookAs(t *testing.T, h *Handler, e *echo.Echo, p *auth.Principal, body string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return rec, h.BookAppointment(e.NewContext(withPrincipal(req, p), rec))
}

func TestHandler_BookAppointment_PatientDefaultsToSelf(t *testing.T) {
	h, _, e := newTestHandler()

	rec, err := bookAs(t, h, e, patientTwo, `{"doctor_id":1,"start_time":"`+mondayAt(9, 0).Format(time.RFC3339)+`"}`)

	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, rec.Code)
	var a Appointment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.Equal(t, int64(2), a.PatientID)
}

func TestHandler_BookAppointment_OtherPatientForbidden(t *testing.T) {
	h, _, e := newTestHandler()

	_, err := bookAs(t, h, e, patientTwo, `{"doctor_id":1,"patient_id":3,"start_time":"`+mondayAt(9, 0).Format(time.RFC3339)+`"}`)

	assert.Equal(t, http.StatusForbidden, statusOf(t, err))
}

func TestHandler_BookAppointment_Conflict(t *testing.T) {
	h, _, e := newTestHandler()
	body := `{"doctor_id":1,"patient_id":2,"start_time":"` + mondayAt(9, 0).Format(time.RFC3339) + `"}`

	_, err := bookAs(t, h, e, admin, body)
	require.NoError(t, err)
	_, err = bookAs(t, h, e, admin, body)

	assert.Equal(t, http.StatusConflict, statusOf(t, err))
}

func TestHandler_GetAppointment_Access(t *testing.T) {
	h, svc, e := newTestHandler()
	_, err := svc.Book(context.Background(), BookingRequest{DoctorID: 1, PatientID: 2, StartTime: mondayAt(9, 0)})
	require.NoError(t, err)

	tests := []struct {
		name string
		who  *auth.Principal
		want int
	}{
		{"own patient", patientTwo, http.StatusOK},
		{"own doctor", doctorOne, http.StatusOK},
		{"admin", admin, http.StatusOK},
		{"other doctor", doctorNine, http.StatusForbidden},
		{"other patient", &auth.Principal{UserID: "p5", Roles: []string{auth.RolePatient}, PatientID: 5}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(withPrincipal(httptest.NewRequest(http.MethodGet, "/", nil), tt.who), rec)
			c.SetParamNames("id")
			c.SetParamValues("1")
			err := h.GetAppointment(c)
			if tt.want == http.StatusOK {
				require.NoError(t, err)
				assert.Equal(t, http.StatusOK, rec.Code)
				return
			}
			assert.Equal(t, tt.want, statusOf(t, err))
		})
	}
}

func patchStatus(t *testing.T, h *Handler, e *echo.Echo, p *auth.Principal, status string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"`+status+`"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(withPrincipal(req, p), rec)
	c.SetParamNames("id")
	c.SetParamValues("1")
	return rec, h.UpdateStatus(c)
}

func TestHandler_UpdateStatus_PatientMayOnlyCancel(t *testing.T) {
	h, svc, e := newTestHandler()
	_, err := svc.Book(context.Background(), BookingRequest{DoctorID: 1, PatientID: 2, StartTime: mondayAt(9, 0)})
	require.NoError(t, err)

	_, err = patchStatus(t, h, e, patientTwo, StatusDone)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	rec, err := patchStatus(t, h, e, patientTwo, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_UpdateStatus_Doctor(t *testing.T) {
	h, svc, e := newTestHandler()
	_, err := svc.Book(context.Background(), BookingRequest{DoctorID: 1, PatientID: 2, StartTime: mondayAt(9, 0)})
	require.NoError(t, err)

	_, err = patchStatus(t, h, e, doctorNine, StatusDone)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	rec, err := patchStatus(t, h, e, doctorOne, StatusNoShow)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	_, err = patchStatus(t, h, e, doctorOne, StatusDone)
	assert.Equal(t, http.StatusConflict, statusOf(t, err))
}

func TestHandler_ListAppointments_ScopedToCaller(t *testing.T) {
	h, svc, e := newTestHandler()
	ctx := context.Background()
	_, err := svc.Book(ctx, BookingRequest{DoctorID: 1, PatientID: 2, StartTime: mondayAt(9, 0)})
	require.NoError(t, err)
	_, err = svc.Book(ctx, BookingRequest{DoctorID: 9, PatientID: 3, StartTime: mondayAt(9, 0)})
	require.NoError(t, err)

	list := func(p *auth.Principal, query string) (int, error) {
		rec := httptest.NewRecorder()
		c := e.NewContext(withPrincipal(httptest.NewRequest(http.MethodGet, "/api/v1/appointments"+query, nil), p), rec)
		if err := h.ListAppointments(c); err != nil {
			return 0, err
		}
		var resp struct {
			Total int `json:"total"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp.Total, nil
	}

	total, err := list(admin, "")
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	total, err = list(doctorOne, "?date=2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	total, err = list(patientTwo, "?doctor_id=9")
	require.NoError(t, err)
	assert.Equal(t, 0, total)

	_, err = list(doctorOne, "?doctor_id=9")
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	_, err = list(admin, "?date=19-10-2026")
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

func TestHandler_ListPatientAppointments(t *testing.T) {
	h, svc, e := newTestHandler()
	_, err := svc.Book(context.Background(), BookingRequest{DoctorID: 1, PatientID: 2, StartTime: mondayAt(9, 0)})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	c := e.NewContext(withPrincipal(httptest.NewRequest(http.MethodGet, "/", nil), doctorOne), rec)
	c.SetParamNames("id")
	c.SetParamValues("2")
	require.NoError(t, h.ListPatientAppointments(c))
	assert.Contains(t, rec.Body.String(), `"total":1`)

	c = e.NewContext(withPrincipal(httptest.NewRequest(http.MethodGet, "/", nil), patientTwo), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("3")
	assert.Equal(t, http.StatusForbidden, statusOf(t, h.ListPatientAppointments(c)))
}

func TestHandler_RegisterRoutes(t *testing.T) {
	h, _, e := newTestHandler()
	h.RegisterRoutes(e.Group("/api/v1"))

	found := map[string]bool{}
	for _, r := range e.Routes() {
		found[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"POST /api/v1/appointments",
		"GET /api/v1/appointments",
		"GET /api/v1/appointments/:id",
		"PATCH /api/v1/appointments/:id/status",
		"GET /api/v1/patients/:id/appointments",
	} {
		assert.True(t, found[want], "missing route %s", want)
	}
}
