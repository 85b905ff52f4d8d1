package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gartstein/certify/internal/certification/auth"
	e "github.com/gartstein/certify/internal/certification/errors"
	"github.com/gartstein/certify/internal/certification/models"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testSecret = "handler-secret"

// mockController is a function-field implementation of CertificationController.
type mockController struct {
	submitFunc func(ctx context.Context, draft *models.Draft, actor models.Actor) (*models.Certification, error)
	editFunc   func(ctx context.Context, id uint, draft *models.Draft, actor models.Actor) (*models.Certification, error)
	decideFunc func(ctx context.Context, id uint, actor models.Actor, action models.StageStatus, comment string) (*models.Certification, error)
	getFunc    func(ctx context.Context, id uint) (*models.Certification, error)
	listFunc   func(ctx context.Context) ([]*models.Certification, error)
	deleteFunc func(ctx context.Context, id uint, actor models.Actor) error
}

func (m *mockController) Submit(ctx context.Context, draft *models.Draft, actor models.Actor) (*models.Certification, error) {
	return m.submitFunc(ctx, draft, actor)
}

func (m *mockController) Edit(ctx context.Context, id uint, draft *models.Draft, actor models.Actor) (*models.Certification, error) {
	return m.editFunc(ctx, id, draft, actor)
}

func (m *mockController) Decide(ctx context.Context, id uint, actor models.Actor, action models.StageStatus, comment string) (*models.Certification, error) {
	return m.decideFunc(ctx, id, actor, action, comment)
}

func (m *mockController) Get(ctx context.Context, id uint) (*models.Certification, error) {
	return m.getFunc(ctx, id)
}

func (m *mockController) List(ctx context.Context) ([]*models.Certification, error) {
	return m.listFunc(ctx)
}

func (m *mockController) Delete(ctx context.Context, id uint, actor models.Actor) error {
	return m.deleteFunc(ctx, id, actor)
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details []struct {
		Reason   string            `json:"reason"`
		Domain   string            `json:"domain"`
		Metadata map[string]string `json:"metadata"`
	} `json:"details"`
}

var (
	requestor = models.Actor{Identity: "asha", Name: "Asha", Role: models.RoleRequestor}
	director  = models.Actor{Identity: "meera", Name: "Meera", Role: models.RoleDirector}
)

func newTestHandler(t *testing.T, ctrl CertificationController) http.Handler {
	t.Helper()
	h := NewCertificationHandler(ctrl, zaptest.NewLogger(t))
	mux := runtime.NewServeMux(gatewayOptions()...)
	require.NoError(t, h.Register(mux))
	return auth.HTTPMiddleware(mux, testSecret)
}

func do(t *testing.T, handler http.Handler, actor *models.Actor, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		token, err := auth.GenerateToken(*actor, testSecret, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func validRequest() map[string]interface{} {
	return map[string]interface{}{
		"projectName":        "Glass 2mm",
		"material":           "Glass",
		"testingLaboratory":  "TUV",
		"dueDate":            "2025-06-30",
		"productType":        []string{"M10 Bifacial"},
		"materialCategories": []string{"Glass"},
		"productionLine":     []string{"PEPPL-1"},
		"certificationType":  "Customized",
		"customizationInfo":  map[string]string{"customerName": "Acme", "comments": "blue frame"},
		"paymentInfo": map[string]interface{}{
			"paidForBy":      "Split",
			"currency":       "INR",
			"supplierName":   "Sunrise",
			"supplierAmount": 400,
			"premierAmount":  "600.25",
		},
		"uploads": []map[string]string{{"name": "report.pdf", "data": "ZGF0YQ==", "type": "application/pdf"}},
	}
}

func sampleCertification() *models.Certification {
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	c := &models.Certification{
		ID:            7,
		SerialNumber:  7,
		Status:        models.StatusInProgress,
		Stages:        models.PendingStages(),
		RequestedBy:   "asha",
		CreatedAt:     now,
		LastUpdatedOn: now,
		Draft: models.Draft{
			ProjectName:       "Glass 2mm",
			Material:          "Glass",
			TestingLaboratory: "TUV",
			CertificationType: models.Standard,
			DueDate:           time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
			ProductTypes:      []string{"M10 Bifacial"},
			Payment: models.Payment{
				Currency: models.CurrencyUSD,
				Terms:    models.PremierPaid{Amount: decimal.NewNullDecimal(decimal.RequireFromString("1500.5"))},
				Invoice:  &models.Upload{ID: "inv-1", Name: "invoice.pdf", IsInvoice: true},
			},
		},
	}
	c.Stages[models.StageTechnicalHead] = models.StageDecision{Status: models.StageApproved, At: &now}
	return c
}

func TestCertificationHandler_Submit(t *testing.T) {
	var got *models.Draft
	ctrl := &mockController{
		submitFunc: func(_ context.Context, draft *models.Draft, actor models.Actor) (*models.Certification, error) {
			assert.Equal(t, requestor, actor)
			got = draft
			return &models.Certification{ID: 7, SerialNumber: 7}, nil
		},
	}
	h := newTestHandler(t, ctrl)

	rec := do(t, h, &requestor, http.MethodPost, "/v1/certifications", validRequest())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"id":7,"serialNumber":7}`, rec.Body.String())

	require.NotNil(t, got)
	assert.Equal(t, "2025-06-30", got.DueDate.Format(models.DateLayout))
	split, ok := got.Payment.Terms.(models.SplitPaid)
	require.True(t, ok)
	assert.Equal(t, "Sunrise", split.SupplierName)
	assert.True(t, split.PremierAmount.Equal(decimal.RequireFromString("600.25")))
	require.Len(t, got.Uploads, 1)
	assert.NotEmpty(t, got.Uploads[0].ID)
	require.NotNil(t, got.Customization)
	assert.Equal(t, "Acme", got.Customization.CustomerName)
}

func TestCertificationHandler_SubmitValidation(t *testing.T) {
	ctrl := &mockController{
		submitFunc: func(context.Context, *models.Draft, models.Actor) (*models.Certification, error) {
			t.Fatal("controller must not be called for an invalid body")
			return nil, nil
		},
	}
	h := newTestHandler(t, ctrl)

	req := validRequest()
	delete(req, "projectName")
	req["dueDate"] = "30/06/2025"
	req["paymentInfo"] = map[string]interface{}{"paidForBy": "Split", "currency": "INR"}

	rec := do(t, h, &requestor, http.MethodPost, "/v1/certifications", req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeError(t, rec)
	require.Len(t, body.Details, 1)
	assert.Equal(t, "invalid_input", body.Details[0].Reason)
	assert.Equal(t, "certification", body.Details[0].Domain)
	assert.Equal(t,
		"dueDate,paymentInfo.supplierName,paymentInfo.supplierAmount,paymentInfo.premierAmount,projectName",
		body.Details[0].Metadata["fields"])
}

func TestCertificationHandler_MalformedBody(t *testing.T) {
	h := newTestHandler(t, &mockController{})

	req := httptest.NewRequest(http.MethodPost, "/v1/certifications", bytes.NewBufferString("{not json"))
	token, err := auth.GenerateToken(requestor, testSecret, time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", decodeError(t, rec).Details[0].Reason)
}

func TestCertificationHandler_RequiresToken(t *testing.T) {
	h := newTestHandler(t, &mockController{})
	rec := do(t, h, nil, http.MethodGet, "/v1/certifications", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	body := decodeError(t, rec)
	require.Len(t, body.Details, 1)
	assert.Equal(t, "unauthenticated", body.Details[0].Reason)
	assert.Equal(t, "certification", body.Details[0].Domain)
}

func TestCertificationHandler_Me(t *testing.T) {
	h := newTestHandler(t, &mockController{})

	rec := do(t, h, &director, http.MethodGet, "/v1/me", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"username":"meera","name":"Meera","role":"Director"}`, rec.Body.String())

	rec = do(t, h, nil, http.MethodGet, "/v1/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCertificationHandler_Decide(t *testing.T) {
	ctrl := &mockController{
		decideFunc: func(_ context.Context, id uint, actor models.Actor, action models.StageStatus, comment string) (*models.Certification, error) {
			assert.Equal(t, uint(7), id)
			assert.Equal(t, director, actor)
			assert.Equal(t, models.StageRejected, action)
			assert.Equal(t, "missing report", comment)
			c := sampleCertification()
			c.Status = models.StatusRejected
			c.Stages[models.StageDirector] = models.StageDecision{Status: models.StageRejected, Comment: comment}
			return c, nil
		},
	}
	h := newTestHandler(t, ctrl)

	rec := do(t, h, &director, http.MethodPost, "/v1/certifications/7/decision",
		map[string]string{"action": "Rejected", "comment": "missing report"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp certificationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Rejected", resp.Status)
	assert.Equal(t, "Rejected", resp.Approvals.Director.Status)
	assert.Equal(t, "missing report", resp.Approvals.Director.Comment)
	assert.Equal(t, "Approved", resp.Approvals.TechnicalHead.Status)
}

func TestCertificationHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    int
		wantReason  string
		wantMessage string
	}{
		{"AlreadyRejected", fmt.Errorf("failed to record Director decision: %w", e.ErrAlreadyRejected), http.StatusConflict, "already_rejected", ""},
		{"AlreadyDecided", e.ErrAlreadyDecided, http.StatusConflict, "already_decided", ""},
		{"Forbidden", e.ErrForbidden, http.StatusForbidden, "forbidden", ""},
		{"NotFound", fmt.Errorf("failed to get certification: %w", e.ErrNotFound), http.StatusNotFound, "not_found", "certification not found"},
		{"Constraint", fmt.Errorf("%w: UNIQUE constraint failed: uploads.id", e.ErrConstraintViolation), http.StatusConflict, "constraint_violation", "conflicting data"},
		{"ForeignKey", fmt.Errorf("%w: FOREIGN KEY constraint failed", e.ErrConstraintViolation), http.StatusConflict, "constraint_violation", "conflicting data"},
		{"Storage", fmt.Errorf("%w: dial tcp 10.0.0.1:5432: refused", e.ErrStorage), http.StatusInternalServerError, "storage", "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &mockController{
				decideFunc: func(context.Context, uint, models.Actor, models.StageStatus, string) (*models.Certification, error) {
					return nil, tt.err
				},
			}
			h := newTestHandler(t, ctrl)

			rec := do(t, h, &director, http.MethodPost, "/v1/certifications/7/decision",
				map[string]string{"action": "Approved"})
			require.Equal(t, tt.wantCode, rec.Code)

			body := decodeError(t, rec)
			require.Len(t, body.Details, 1)
			assert.Equal(t, tt.wantReason, body.Details[0].Reason)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, body.Message)
			}
		})
	}
}

func TestCertificationHandler_Get(t *testing.T) {
	ctrl := &mockController{
		getFunc: func(_ context.Context, id uint) (*models.Certification, error) {
			assert.Equal(t, uint(7), id)
			return sampleCertification(), nil
		},
	}
	h := newTestHandler(t, ctrl)

	rec := do(t, h, &requestor, http.MethodGet, "/v1/certifications/7", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2025-06-30", resp["dueDate"])
	assert.Equal(t, "In Progress", resp["status"])
	assert.Equal(t, []interface{}{}, resp["productionLine"])
	assert.Equal(t, []interface{}{}, resp["dueDateHistory"])
	assert.NotContains(t, resp, "customizationInfo")

	payment := resp["paymentInfo"].(map[string]interface{})
	assert.Equal(t, "Premier", payment["paidForBy"])
	assert.Equal(t, "1500.5", payment["amount"])
	assert.Equal(t, "inv-1", payment["invoiceAttachment"].(map[string]interface{})["id"])
}

func TestCertificationHandler_InvalidID(t *testing.T) {
	h := newTestHandler(t, &mockController{})
	for _, path := range []string{"/v1/certifications/abc", "/v1/certifications/0"} {
		rec := do(t, h, &requestor, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestCertificationHandler_EditListDelete(t *testing.T) {
	var deleted uint
	ctrl := &mockController{
		editFunc: func(_ context.Context, id uint, draft *models.Draft, _ models.Actor) (*models.Certification, error) {
			c := sampleCertification()
			c.ID, c.SerialNumber = id, id
			c.DueDate = draft.DueDate
			return c, nil
		},
		listFunc: func(context.Context) ([]*models.Certification, error) {
			return []*models.Certification{sampleCertification(), sampleCertification()}, nil
		},
		deleteFunc: func(_ context.Context, id uint, _ models.Actor) error {
			deleted = id
			return nil
		},
	}
	h := newTestHandler(t, ctrl)

	req := validRequest()
	req["dueDate"] = "2025-07-15"
	rec := do(t, h, &requestor, http.MethodPut, "/v1/certifications/9", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var edited certificationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &edited))
	assert.Equal(t, uint(9), edited.ID)
	assert.Equal(t, "2025-07-15", edited.DueDate)

	rec = do(t, h, &requestor, http.MethodGet, "/v1/certifications", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []certificationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)

	rec = do(t, h, &requestor, http.MethodDelete, "/v1/certifications/3", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, uint(3), deleted)
}
