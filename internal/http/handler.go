package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nurpe/marketplace-api/internal/http/middleware"
	"github.com/nurpe/marketplace-api/internal/model"
	"github.com/nurpe/marketplace-api/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Services struct {
	Contracts *service.ContractService
	Jobs      *service.JobService
	Payments  *service.PaymentService
	Balances  *service.BalanceService
	Reports   *service.ReportService
}

type Handler struct {
	contracts *service.ContractService
	jobs      *service.JobService
	payments  *service.PaymentService
	balances  *service.BalanceService
	reports   *service.ReportService
	log       zerolog.Logger
}

func NewHandler(services Services, log zerolog.Logger) *Handler {
	return &Handler{
		contracts: services.Contracts,
		jobs:      services.Jobs,
		payments:  services.Payments,
		balances:  services.Balances,
		reports:   services.Reports,
		log:       log,
	}
}

func (h *Handler) Register(router *gin.Engine, identityMiddleware gin.HandlerFunc) {
	protected := router.Group("/")
	protected.Use(identityMiddleware)

	protected.GET("/contracts", h.listContracts)
	protected.GET("/contracts/:id", h.getContract)

	protected.GET("/jobs/unpaid", h.listUnpaidJobs)
	protected.POST("/jobs/:id/pay", h.payJob)
	protected.GET("/jobs/:id/receipt", h.jobReceipt)

	protected.POST("/balances/deposit/:userId", h.deposit)

	protected.GET("/admin/best-profession", h.bestProfession)
	protected.GET("/admin/best-clients", h.bestClients)
}

func success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": data})
}

func (h *Handler) listContracts(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	contracts, err := h.contracts.ListContracts(c.Request.Context(), caller)
	if err != nil {
		h.handleError(c, err)
		return
	}
	success(c, contracts)
}

func (h *Handler) getContract(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	id, err := parseID(c.Param("id"))
	if err != nil {
		h.writeError(c, http.StatusBadRequest, "INVALID_INPUT", "Invalid contract ID")
		return
	}

	contract, err := h.contracts.GetContract(c.Request.Context(), caller, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	success(c, contract)
}

func (h *Handler) listUnpaidJobs(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	jobs, err := h.jobs.ListUnpaid(c.Request.Context(), caller)
	if err != nil {
		h.handleError(c, err)
		return
	}
	success(c, jobs)
}

func (h *Handler) payJob(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	jobID, err := parseID(c.Param("id"))
	if err != nil {
		h.writeError(c, http.StatusBadRequest, "INVALID_INPUT", "Invalid job ID")
		return
	}

	job, err := h.payments.PayJob(c.Request.Context(), caller, jobID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	success(c, job)
}

func (h *Handler) jobReceipt(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	jobID, err := parseID(c.Param("id"))
	if err != nil {
		h.writeError(c, http.StatusBadRequest, "INVALID_INPUT", "Invalid job ID")
		return
	}

	result, err := h.jobs.Receipt(c.Request.Context(), caller, jobID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, "application/pdf", result.Content)
}

type depositRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

func (h *Handler) deposit(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	targetID, err := parseID(c.Param("userId"))
	if err != nil {
		h.writeError(c, http.StatusBadRequest, "INVALID_INPUT", "Invalid user ID")
		return
	}

	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(c, http.StatusBadRequest, "INVALID_INPUT", "Invalid amount")
		return
	}

	balance, err := h.balances.Deposit(c.Request.Context(), service.DepositInput{
		Caller:   caller,
		TargetID: targetID,
		Amount:   req.Amount,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	success(c, gin.H{"balance": balance})
}

func (h *Handler) bestProfession(c *gin.Context) {
	input, ok := h.reportInput(c)
	if !ok {
		return
	}

	if wantsWorkbook(c) {
		h.export(c, model.ReportKindBestProfession, input)
		return
	}

	best, err := h.reports.BestProfession(c.Request.Context(), input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	success(c, best)
}

func (h *Handler) bestClients(c *gin.Context) {
	input, ok := h.reportInput(c)
	if !ok {
		return
	}

	if wantsWorkbook(c) {
		h.export(c, model.ReportKindBestClients, input)
		return
	}

	clients, err := h.reports.BestClients(c.Request.Context(), input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	success(c, clients)
}

func (h *Handler) export(c *gin.Context, kind model.ReportKind, input service.ReportInput) {
	result, err := h.reports.Export(c.Request.Context(), kind, input)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, xlsxContentType, result.Content)
}

func (h *Handler) reportInput(c *gin.Context) (service.ReportInput, bool) {
	if _, ok := h.caller(c); !ok {
		return service.ReportInput{}, false
	}

	start, err := parseDate(c.Query("start"))
	if err != nil {
		h.writeError(c, http.StatusBadRequest, "INVALID_INPUT", "invalid start date")
		return service.ReportInput{}, false
	}
	end, err := parseDate(c.Query("end"))
	if err != nil {
		h.writeError(c, http.StatusBadRequest, "INVALID_INPUT", "invalid end date")
		return service.ReportInput{}, false
	}

	input := service.ReportInput{PeriodStart: start, PeriodEnd: end}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			h.writeError(c, http.StatusBadRequest, "INVALID_INPUT", "limit must not be less than 1")
			return service.ReportInput{}, false
		}
		input.Limit = limit
	}

	switch strings.ToLower(strings.TrimSpace(c.Query("format"))) {
	case "", "json", "xlsx":
	default:
		h.writeError(c, http.StatusBadRequest, "INVALID_INPUT", "format must be json or xlsx")
		return service.ReportInput{}, false
	}
	return input, true
}

func wantsWorkbook(c *gin.Context) bool {
	return strings.EqualFold(strings.TrimSpace(c.Query("format")), "xlsx")
}

func (h *Handler) caller(c *gin.Context) (model.Profile, bool) {
	profile, ok := middleware.MustProfile(c)
	if !ok {
		h.writeError(c, http.StatusUnauthorized, "UNAUTHENTICATED", service.MsgProfileIDRequired)
		return model.Profile{}, false
	}
	return profile, true
}

func (h *Handler) writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"status": "error", "code": code, "message": message})
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		h.writeError(c, http.StatusUnauthorized, "UNAUTHENTICATED", err.Error())
	case errors.Is(err, service.ErrPermissionDenied):
		h.writeError(c, http.StatusForbidden, "FORBIDDEN", err.Error())
	case errors.Is(err, service.ErrNotFound):
		h.writeError(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, service.ErrConflict):
		h.writeError(c, http.StatusBadRequest, "CONFLICT", err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		h.writeError(c, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	case errors.Is(err, service.ErrInternal):
		h.log.Error().Err(errors.Unwrap(err)).Str("path", c.FullPath()).Msg(err.Error())
		h.writeError(c, http.StatusInternalServerError, "INTERNAL", err.Error())
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		h.writeError(c, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, service.ErrInvalidInput
	}
	return id, nil
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, service.ErrInvalidInput
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, service.ErrInvalidInput
}
