package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mercadinho/backend/internal/advisory"
	"mercadinho/backend/internal/domain"
	"mercadinho/backend/internal/service"
	"mercadinho/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	adviser := advisory.New(advisory.Disabled{}, nil, 0)
	svc := service.New(repo, adviser, service.Options{})
	auth := NewAuthManager("test-secret-key-test-secret-key!", time.Hour, "739154", repo)

	return New(svc, auth, "*")
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_OwnerSuccess(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"email":    "dono@mercadinho.dev",
		"password": "dono12345",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatal("expected access_token in response")
	}
	if resp.Role != domain.RoleOwner {
		t.Fatalf("expected owner role, got %s", resp.Role)
	}
	if resp.Shift != nil {
		t.Fatal("owner login must not open a shift")
	}
}

func TestHandleLogin_OperatorOpensShift(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"email":    "caixa@mercadinho.dev",
		"password": "caixa12345",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Shift == nil {
		t.Fatal("expected operator login to open a shift")
	}
	if resp.Shift.Status != domain.ShiftStatusOpen {
		t.Fatalf("expected open shift, got %s", resp.Shift.Status)
	}
	if resp.Shift.OperatorID != resp.User.ID {
		t.Fatalf("expected shift operator %s, got %s", resp.User.ID, resp.Shift.OperatorID)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"email":    "dono@mercadinho.dev",
		"password": "wrongpassword",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleProducts_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleProducts_WithValidToken(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "dono@mercadinho.dev", "dono12345")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["products"] == nil {
		t.Fatalf("expected products key in response, got %v", body)
	}
}

func TestHandleReports_OperatorForbidden(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "caixa@mercadinho.dev", "caixa12345")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for operator on reports, got %d", rec.Code)
	}
}

func TestHandleAdvisory_OperatorForbidden(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "caixa@mercadinho.dev", "caixa12345")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/advisory/sales-analysis", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for operator on advisory, got %d", rec.Code)
	}
}

func TestHandleAdvisorySalesAnalysis_DisabledMessage(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	// An operator login opens a shift, giving the adviser a live snapshot.
	loginAs(t, api, "caixa@mercadinho.dev", "caixa12345")
	token := loginAs(t, api, "dono@mercadinho.dev", "dono12345")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/advisory/sales-analysis", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["analysis"] != advisory.DisabledMessage {
		t.Fatalf("expected disabled message, got %q", body["analysis"])
	}
}

func TestHandleSales_FullFlow(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "caixa@mercadinho.dev", "caixa12345")
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(map[string]any{
		"items": []map[string]any{
			{"product_id": "prod-arroz-01", "quantity": 2},
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Sale domain.Sale `json:"sale"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Sale.Total.StringFixed(2) != "49.80" {
		t.Fatalf("expected total 49.80, got %s", body.Sale.Total)
	}
	if len(body.Sale.Items) != 1 {
		t.Fatalf("expected 1 line, got %d", len(body.Sale.Items))
	}
}

func TestHandleWithdrawal_RejectsNonPositiveAmount(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "caixa@mercadinho.dev", "caixa12345")
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(map[string]any{"amount": "-10.00"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cash-flow/withdrawals", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative withdrawal, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleOperatorDelete_RequiresManagerPIN(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "dono@mercadinho.dev", "dono12345")
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(domain.OperatorDeleteRequest{ManagerPIN: "000000"})
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/operators/user-operator-demo", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for wrong manager pin, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleOperatorDelete_WithValidPIN(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "dono@mercadinho.dev", "dono12345")
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(domain.OperatorDeleteRequest{ManagerPIN: "739154"})
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/operators/user-operator-demo", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

// loginAs logs in through the HTTP surface and returns the bearer token.
func loginAs(t *testing.T, api *API, email string, password string) string {
	t.Helper()

	body, _ := json.Marshal(domain.LoginRequest{Email: email, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("login as %s failed, status %d (body: %s)", email, res.Code, res.Body.String())
	}

	var payload domain.LoginResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode login response failed: %v", err)
	}
	if payload.AccessToken == "" {
		t.Fatal("expected access token in login response")
	}
	return payload.AccessToken
}
