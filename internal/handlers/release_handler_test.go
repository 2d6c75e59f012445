package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"qarelease/internal/models"
	"qarelease/internal/service"

	"github.com/gin-gonic/gin"
)

// mockReleaseService — мок ReleaseService для тестов HTTP-слоя.
type mockReleaseService struct {
	createFn            func(ctx context.Context, input service.CreateReleaseInput) (*models.Release, error)
	getByIDFn           func(ctx context.Context, id uint) (*models.Release, error)
	listFn              func(ctx context.Context) ([]*models.Release, error)
	getBySampleFn       func(ctx context.Context, sampleID string) ([]*models.Release, error)
	updateFn            func(ctx context.Context, id uint, input service.UpdateReleaseInput) (*models.Release, error)
	deleteFn            func(ctx context.Context, id uint) error
	completeChecklistFn func(ctx context.Context, id uint, reviewedBy string) (*models.Release, error)
	makeDecisionFn      func(ctx context.Context, id uint, input service.DecisionInput) (*models.Release, error)
	notifyWarehouseFn   func(ctx context.Context, id uint) (*models.Release, error)
}

func (m *mockReleaseService) Create(ctx context.Context, input service.CreateReleaseInput) (*models.Release, error) {
	if m.createFn != nil {
		return m.createFn(ctx, input)
	}
	return &models.Release{ID: 1, Status: models.StatusPending}, nil
}

func (m *mockReleaseService) List(ctx context.Context) ([]*models.Release, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockReleaseService) GetByID(ctx context.Context, id uint) (*models.Release, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return &models.Release{ID: id}, nil
}

func (m *mockReleaseService) GetBySample(ctx context.Context, sampleID string) ([]*models.Release, error) {
	if m.getBySampleFn != nil {
		return m.getBySampleFn(ctx, sampleID)
	}
	return nil, nil
}

func (m *mockReleaseService) Update(ctx context.Context, id uint, input service.UpdateReleaseInput) (*models.Release, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, input)
	}
	return &models.Release{ID: id}, nil
}

func (m *mockReleaseService) Delete(ctx context.Context, id uint) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockReleaseService) CompleteChecklist(ctx context.Context, id uint, reviewedBy string) (*models.Release, error) {
	if m.completeChecklistFn != nil {
		return m.completeChecklistFn(ctx, id, reviewedBy)
	}
	return &models.Release{ID: id, Status: models.StatusUnderReview}, nil
}

func (m *mockReleaseService) MakeDecision(ctx context.Context, id uint, input service.DecisionInput) (*models.Release, error) {
	if m.makeDecisionFn != nil {
		return m.makeDecisionFn(ctx, id, input)
	}
	return &models.Release{ID: id}, nil
}

func (m *mockReleaseService) NotifyWarehouse(ctx context.Context, id uint) (*models.Release, error) {
	if m.notifyWarehouseFn != nil {
		return m.notifyWarehouseFn(ctx, id)
	}
	return &models.Release{ID: id}, nil
}

func (m *mockReleaseService) RedriveUnnotified(_ context.Context, _ int) (int, error) {
	return 0, nil
}

func newTestRouter(svc service.ReleaseService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewReleaseHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func doRequest(r *gin.Engine, method, url, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, url, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, url, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// Каждый вид сервисной ошибки транслируется в свой HTTP-статус:
// вызывающий ветвится по коду, а не парсит текст.
func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "not found", err: fmt.Errorf("release 7: %w", service.ErrNotFound), wantStatus: http.StatusNotFound},
		{name: "validation", err: fmt.Errorf("decided releases are immutable: %w", service.ErrValidation), wantStatus: http.StatusBadRequest},
		{name: "conflict", err: fmt.Errorf("failed to record decision: %w", service.ErrConflict), wantStatus: http.StatusConflict},
		{name: "upstream", err: fmt.Errorf("sample registry check failed: %w", service.ErrUpstream), wantStatus: http.StatusBadGateway},
		{name: "internal", err: fmt.Errorf("disk on fire"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockReleaseService{
				getByIDFn: func(_ context.Context, _ uint) (*models.Release, error) {
					return nil, tt.err
				},
			}
			w := doRequest(newTestRouter(svc), "GET", "/api/v1/releases/7", "")
			if w.Code != tt.wantStatus {
				t.Errorf("статус = %d, ожидался %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestCreateHandler(t *testing.T) {
	t.Run("success returns 201", func(t *testing.T) {
		svc := &mockReleaseService{}
		body := `{
			"sample_id": "SMP-1",
			"material_id": "MAT-7",
			"material_name": "Paracetamol API",
			"material_code": "API-PCM",
			"batch_number": "B-2401",
			"quantity": 250,
			"unit": "kg",
			"result_ids": ["RES-1"],
			"submitted_by": "a.petrov"
		}`
		w := doRequest(newTestRouter(svc), "POST", "/api/v1/releases", body)
		if w.Code != http.StatusCreated {
			t.Errorf("статус = %d, ожидался 201, тело: %s", w.Code, w.Body.String())
		}
	})

	t.Run("malformed body returns 400", func(t *testing.T) {
		svc := &mockReleaseService{}
		w := doRequest(newTestRouter(svc), "POST", "/api/v1/releases", `{"sample_id": 42}`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("статус = %d, ожидался 400", w.Code)
		}
	})

	t.Run("missing required fields returns 400", func(t *testing.T) {
		svc := &mockReleaseService{}
		w := doRequest(newTestRouter(svc), "POST", "/api/v1/releases", `{"sample_id": "SMP-1"}`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("статус = %d, ожидался 400", w.Code)
		}
	})
}

func TestInvalidIDReturns400(t *testing.T) {
	svc := &mockReleaseService{}
	w := doRequest(newTestRouter(svc), "GET", "/api/v1/releases/abc", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("статус = %d, ожидался 400", w.Code)
	}
}

func TestDeleteHandlerReturns204(t *testing.T) {
	svc := &mockReleaseService{}
	w := doRequest(newTestRouter(svc), "DELETE", "/api/v1/releases/3", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("статус = %d, ожидался 204", w.Code)
	}
}

func TestCompleteChecklistHandler(t *testing.T) {
	called := false
	svc := &mockReleaseService{
		completeChecklistFn: func(_ context.Context, id uint, reviewedBy string) (*models.Release, error) {
			called = true
			if reviewedBy != "i.reviewer" {
				t.Errorf("reviewedBy = %q, ожидался i.reviewer", reviewedBy)
			}
			return &models.Release{ID: id, Status: models.StatusUnderReview}, nil
		},
	}

	w := doRequest(newTestRouter(svc), "POST", "/api/v1/releases/5/complete-checklist",
		`{"reviewed_by": "i.reviewer"}`)
	if w.Code != http.StatusOK {
		t.Errorf("статус = %d, ожидался 200", w.Code)
	}
	if !called {
		t.Error("сервис не вызван")
	}
}

func TestMakeDecisionHandler(t *testing.T) {
	svc := &mockReleaseService{
		makeDecisionFn: func(_ context.Context, id uint, input service.DecisionInput) (*models.Release, error) {
			if input.Decision != models.DecisionRelease {
				t.Errorf("decision = %q, ожидался Release", input.Decision)
			}
			return &models.Release{ID: id, Status: models.StatusReleased}, nil
		},
	}

	body := `{
		"decision": "Release",
		"reason": "all specifications met",
		"decided_by": "q.manager",
		"e_signature": "sig-token"
	}`
	w := doRequest(newTestRouter(svc), "POST", "/api/v1/releases/5/decision", body)
	if w.Code != http.StatusOK {
		t.Errorf("статус = %d, ожидался 200", w.Code)
	}
}
