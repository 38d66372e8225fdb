package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nurpe/marketplace-api/internal/auth"
	"github.com/nurpe/marketplace-api/internal/config"
	"github.com/nurpe/marketplace-api/internal/excel"
	"github.com/nurpe/marketplace-api/internal/http/middleware"
	"github.com/nurpe/marketplace-api/internal/metrics"
	"github.com/nurpe/marketplace-api/internal/pdf"
	"github.com/nurpe/marketplace-api/internal/service"
	"github.com/nurpe/marketplace-api/internal/testutil"
	"github.com/nurpe/marketplace-api/internal/txn"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(ctx context.Context) error {
	return p.err
}

type testServer struct {
	router  *gin.Engine
	store   *testutil.Store
	fixture testutil.Fixture
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithHealth(t, stubPinger{})
}

func newTestServerWithHealth(t *testing.T, health Pinger) *testServer {
	t.Helper()

	store := testutil.NewStore()
	f := testutil.Seed(store)
	log := zerolog.Nop()
	m := metrics.New()
	policy := txn.Policy{MaxAttempts: 3}
	cfg := &config.Config{
		Environment: "test",
		HTTP:        config.HTTPConfig{CORSAllowedOrigins: []string{"*"}},
		Balances:    config.BalancesConfig{DepositCapRatio: decimal.RequireFromString("0.25")},
		Reports:     config.ReportsConfig{DefaultClientLimit: 2},
	}

	handler := NewHandler(Services{
		Contracts: service.NewContractService(store.Contracts()),
		Jobs:      service.NewJobService(store.Jobs(), pdf.NewGenerator()),
		Payments:  service.NewPaymentService(store, policy, m, log),
		Balances:  service.NewBalanceService(store, policy, cfg.Balances, m, log),
		Reports:   service.NewReportService(store.Reports(), excel.NewGenerator(), cfg.Reports),
	}, log)

	router := NewRouter(RouterDeps{
		Handler:            handler,
		IdentityMiddleware: middleware.Identity(auth.NewResolver(store.Profiles()), log),
		RequestMiddleware:  middleware.RequestLogger(log, m),
		Metrics:            m.Handler(),
		Health:             health,
	}, cfg)

	return &testServer{router: router, store: store, fixture: f}
}

func (s *testServer) do(method, path string, profileID int64, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if profileID != 0 {
		req.Header.Set(auth.HeaderProfileID, strconv.FormatInt(profileID, 10))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Status  string          `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return env
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, status, w.Body.String())
	}
	env := decode(t, w)
	if env.Status != "error" {
		t.Errorf("status field = %q, want error", env.Status)
	}
	if env.Message != message {
		t.Errorf("message = %q, want %q", env.Message, message)
	}
}

func TestIdentityFailures(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name    string
		header  string
		message string
	}{
		{name: "missing", header: "", message: service.MsgProfileIDRequired},
		{name: "malformed", header: "abc", message: service.MsgInvalidProfileID},
		{name: "unknown", header: "424242", message: service.MsgProfileNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/jobs/1/pay", nil)
			if tt.header != "" {
				req.Header.Set(auth.HeaderProfileID, tt.header)
			}
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, req)

			expectError(t, w, http.StatusUnauthorized, tt.message)
			if code := decode(t, w).Code; code != "UNAUTHENTICATED" {
				t.Errorf("code = %q, want UNAUTHENTICATED", code)
			}
		})
	}
}

func TestPayJobEndpoint(t *testing.T) {
	s := newTestServer(t)
	f := s.fixture

	w := s.do(http.MethodPost, "/jobs/"+strconv.FormatInt(f.UnpaidJob.ID, 10)+"/pay", f.Client.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	env := decode(t, w)
	if env.Status != "success" {
		t.Errorf("status field = %q, want success", env.Status)
	}

	var job struct {
		ID       int64 `json:"id"`
		Paid     bool  `json:"paid"`
		Contract struct {
			ID int64 `json:"id"`
		} `json:"Contract"`
	}
	if err := json.Unmarshal(env.Data, &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if !job.Paid || job.ID != f.UnpaidJob.ID || job.Contract.ID != f.Active.ID {
		t.Errorf("job = %+v", job)
	}

	again := s.do(http.MethodPost, "/jobs/"+strconv.FormatInt(f.UnpaidJob.ID, 10)+"/pay", f.Client.ID, "")
	expectError(t, again, http.StatusBadRequest, service.MsgJobAlreadyPaid)
}

func TestPayJobEndpointFailures(t *testing.T) {
	s := newTestServer(t)
	f := s.fixture
	path := func(id int64) string { return "/jobs/" + strconv.FormatInt(id, 10) + "/pay" }

	expectError(t, s.do(http.MethodPost, path(f.UnpaidJob.ID), f.Contractor.ID, ""), http.StatusForbidden, service.MsgOnlyClientsPay)
	expectError(t, s.do(http.MethodPost, path(f.UnpaidJob.ID), f.OtherClient.ID, ""), http.StatusForbidden, service.MsgJobNotOwned)
	expectError(t, s.do(http.MethodPost, path(424242), f.Client.ID, ""), http.StatusNotFound, service.MsgJobNotFound)
	expectError(t, s.do(http.MethodPost, "/jobs/abc/pay", f.Client.ID, ""), http.StatusBadRequest, "Invalid job ID")
}

func TestDepositEndpoint(t *testing.T) {
	s := newTestServer(t)
	f := s.fixture
	path := "/balances/deposit/" + strconv.FormatInt(f.Client.ID, 10)

	w := s.do(http.MethodPost, path, f.Client.ID, `{"amount": 50}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var data struct {
		Balance decimal.Decimal `json:"balance"`
	}
	if err := json.Unmarshal(decode(t, w).Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if !data.Balance.Equal(decimal.RequireFromString("1050")) {
		t.Errorf("balance = %s, want 1050", data.Balance)
	}

	expectError(t, s.do(http.MethodPost, path, f.Client.ID, `{"amount": "51"}`), http.StatusBadRequest, service.MsgDepositCapExceeded)
	expectError(t, s.do(http.MethodPost, path, f.Client.ID, `{}`), http.StatusBadRequest, service.MsgAmountRequired)
	expectError(t, s.do(http.MethodPost, path, f.Client.ID, ""), http.StatusBadRequest, service.MsgAmountRequired)
	expectError(t, s.do(http.MethodPost, path, f.Client.ID, `{"amount": -1}`), http.StatusBadRequest, service.MsgAmountNotPositive)
	expectError(t, s.do(http.MethodPost, path, f.Client.ID, `{"amount": "ten"}`), http.StatusBadRequest, "Invalid amount")
	expectError(t, s.do(http.MethodPost, "/balances/deposit/424242", f.Client.ID, `{"amount": 1}`), http.StatusNotFound, service.MsgUserNotFound)

	contractorPath := "/balances/deposit/" + strconv.FormatInt(f.Contractor.ID, 10)
	expectError(t, s.do(http.MethodPost, contractorPath, f.Contractor.ID, `{"amount": 1}`), http.StatusForbidden, service.MsgOnlyClientsDeposit)
}

func TestGetContractHidesExistence(t *testing.T) {
	s := newTestServer(t)
	f := s.fixture

	ok := s.do(http.MethodGet, "/contracts/"+strconv.FormatInt(f.Active.ID, 10), f.Contractor.ID, "")
	if ok.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", ok.Code, ok.Body.String())
	}

	foreign := s.do(http.MethodGet, "/contracts/"+strconv.FormatInt(f.Foreign.ID, 10), f.Client.ID, "")
	missing := s.do(http.MethodGet, "/contracts/424242", f.Client.ID, "")
	expectError(t, foreign, http.StatusNotFound, service.MsgContractNotFound)
	if !bytes.Equal(foreign.Body.Bytes(), missing.Body.Bytes()) || foreign.Code != missing.Code {
		t.Errorf("foreign %d %s differs from missing %d %s", foreign.Code, foreign.Body, missing.Code, missing.Body)
	}
}

func TestListEndpoints(t *testing.T) {
	s := newTestServer(t)
	f := s.fixture

	w := s.do(http.MethodGet, "/contracts", f.Client.ID, "")
	var contracts []map[string]any
	if err := json.Unmarshal(decode(t, w).Data, &contracts); err != nil {
		t.Fatalf("decode contracts: %v", err)
	}
	if len(contracts) != 1 {
		t.Errorf("len(contracts) = %d, want 1", len(contracts))
	}

	w = s.do(http.MethodGet, "/jobs/unpaid", f.Client.ID, "")
	var jobs []map[string]any
	if err := json.Unmarshal(decode(t, w).Data, &jobs); err != nil {
		t.Fatalf("decode jobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Errorf("len(jobs) = %d, want 2", len(jobs))
	}
}

func TestReceiptEndpoint(t *testing.T) {
	s := newTestServer(t)
	f := s.fixture

	w := s.do(http.MethodGet, "/jobs/"+strconv.FormatInt(f.PaidJob.ID, 10)+"/receipt", f.Client.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")) {
		t.Error("body is not a PDF")
	}

	unpaid := s.do(http.MethodGet, "/jobs/"+strconv.FormatInt(f.UnpaidJob.ID, 10)+"/receipt", f.Client.ID, "")
	expectError(t, unpaid, http.StatusBadRequest, service.MsgJobNotPaid)
}

func TestReportEndpoints(t *testing.T) {
	s := newTestServer(t)
	f := s.fixture

	w := s.do(http.MethodGet, "/admin/best-profession?start=2024-01-01&end=2024-12-31", f.Client.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var best struct {
		Profession string          `json:"profession"`
		Earned     decimal.Decimal `json:"earned"`
	}
	if err := json.Unmarshal(decode(t, w).Data, &best); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if best.Profession != "Musician" || !best.Earned.Equal(decimal.RequireFromString("300")) {
		t.Errorf("best = %+v, want Musician 300", best)
	}

	w = s.do(http.MethodGet, "/admin/best-clients?start=2024-01-01T00:00:00Z&end=2024-12-31&limit=5", f.Client.ID, "")
	var clients []struct {
		ID       int64  `json:"id"`
		FullName string `json:"fullName"`
	}
	if err := json.Unmarshal(decode(t, w).Data, &clients); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(clients) != 1 || clients[0].FullName != "Harry Potter" {
		t.Errorf("clients = %+v", clients)
	}

	w = s.do(http.MethodGet, "/admin/best-clients?start=2024-01-01&end=2024-12-31&format=xlsx", f.Client.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "best-clients-20240101-20241231.xlsx") {
		t.Errorf("Content-Disposition = %q", w.Header().Get("Content-Disposition"))
	}

	expectError(t, s.do(http.MethodGet, "/admin/best-profession?start=2020-01-01&end=2020-01-31", f.Client.ID, ""),
		http.StatusNotFound, service.MsgNoPaidJobsInRange)
	expectError(t, s.do(http.MethodGet, "/admin/best-clients?start=yesterday&end=2024-12-31", f.Client.ID, ""),
		http.StatusBadRequest, "invalid start date")
	expectError(t, s.do(http.MethodGet, "/admin/best-clients?start=2024-01-01&end=2024-12-31&limit=0", f.Client.ID, ""),
		http.StatusBadRequest, "limit must not be less than 1")
	expectError(t, s.do(http.MethodGet, "/admin/best-clients?start=2024-12-31&end=2024-01-01", f.Client.ID, ""),
		http.StatusBadRequest, "start must be before or equal to end")
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/healthz", 0, "")
	if w.Code != http.StatusOK {
		t.Errorf("healthz status = %d", w.Code)
	}
	if w.Header().Get(middleware.HeaderRequestID) == "" {
		t.Error("missing request id header")
	}

	s.do(http.MethodPost, "/jobs/"+strconv.FormatInt(s.fixture.UnpaidJob.ID, 10)+"/pay", s.fixture.Client.ID, "")
	w = s.do(http.MethodGet, "/metrics", 0, "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `marketplace_payments_total{outcome="success"} 1`) {
		t.Errorf("metrics output missing payment counter:\n%s", w.Body.String())
	}

	down := newTestServerWithHealth(t, stubPinger{err: errors.New("connection refused")})
	if w := down.do(http.MethodGet, "/healthz", 0, ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("healthz status = %d, want 503", w.Code)
	}
}
