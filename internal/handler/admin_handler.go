package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"tokenguard/internal/domain"
	"tokenguard/internal/repository"
	"tokenguard/internal/service"
	"tokenguard/internal/settings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type AdminHandler struct {
	dashboard  *service.DashboardService
	settings   *settings.Service
	payments   *service.PaymentService
	analyses   *service.AnalysisService
	promotions *service.PromotionService
	auditRepo  *repository.AuditLogRepository
}

func NewAdminHandler(
	dashboard *service.DashboardService,
	settingsSvc *settings.Service,
	payments *service.PaymentService,
	analyses *service.AnalysisService,
	promotions *service.PromotionService,
	auditRepo *repository.AuditLogRepository,
) *AdminHandler {
	return &AdminHandler{
		dashboard:  dashboard,
		settings:   settingsSvc,
		payments:   payments,
		analyses:   analyses,
		promotions: promotions,
		auditRepo:  auditRepo,
	}
}

// Dashboard handles GET /admin/dashboard?days=30.
func (h *AdminHandler) Dashboard(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	if days <= 0 || days > 365 {
		days = 30
	}
	d, err := h.dashboard.Overview(days)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, d)
}

// GetSettings handles GET /admin/settings. Secrets are masked.
func (h *AdminHandler) GetSettings(c *gin.Context) {
	cfg, err := h.settings.Load()
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{
		"settings":          cfg.Masked(),
		"missing_addresses": settings.MissingAddresses(cfg),
	})
}

// ListUsers handles GET /admin/users?search=.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	p, limit := parsePagination(c)
	users, total, err := h.dashboard.Users(c.Query("search"), p, limit)
	if err != nil {
		failErr(c, err)
		return
	}
	page(c, users, total, p, limit)
}

func transactionFilter(c *gin.Context) (repository.TransactionFilter, error) {
	f := repository.TransactionFilter{Method: c.Query("method"), Status: c.Query("status")}
	if v := c.Query("user_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return f, fmt.Errorf("invalid user_id")
		}
		f.UserID = uint(id)
	}
	if v := c.Query("from"); v != "" {
		t, err := time.ParseInLocation("2006-01-02", v, time.Local)
		if err != nil {
			return f, fmt.Errorf("from must be YYYY-MM-DD")
		}
		f.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.ParseInLocation("2006-01-02", v, time.Local)
		if err != nil {
			return f, fmt.Errorf("to must be YYYY-MM-DD")
		}
		// inclusive of the whole day
		f.To = t.AddDate(0, 0, 1)
	}
	return f, nil
}

// ListTransactions handles GET /admin/transactions?status=&method=&user_id=&from=&to=.
func (h *AdminHandler) ListTransactions(c *gin.Context) {
	f, err := transactionFilter(c)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	p, limit := parsePagination(c)
	list, total, err := h.payments.List(f, p, limit)
	if err != nil {
		failErr(c, err)
		return
	}
	page(c, list, total, p, limit)
}

// ExportTransactions handles GET /admin/transactions/export with the list filters.
func (h *AdminHandler) ExportTransactions(c *gin.Context) {
	f, err := transactionFilter(c)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	list, err := h.payments.Export(f)
	if err != nil {
		failErr(c, err)
		return
	}
	name := fmt.Sprintf("transactions-%s.xlsx", time.Now().Format("20060102-150405"))
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Header("Content-Type", xlsxContentType)
	if err := writeTransactionsXLSX(c.Writer, list); err != nil {
		log.WithError(err).Error("[admin] transaction export")
		return
	}
	log.WithFields(log.Fields{"rows": len(list), "admin_id": c.GetUint("user_id")}).Info("[admin] transactions exported")
}

// ListAnalyses handles GET /admin/analyses?verdict=.
func (h *AdminHandler) ListAnalyses(c *gin.Context) {
	verdict := c.Query("verdict")
	switch verdict {
	case "", domain.VerdictScam, domain.VerdictLegit, domain.VerdictCaution, domain.VerdictUnknown:
	default:
		fail(c, http.StatusBadRequest, "invalid verdict")
		return
	}
	p, limit := parsePagination(c)
	list, total, err := h.analyses.List(verdict, p, limit)
	if err != nil {
		failErr(c, err)
		return
	}
	page(c, list, total, p, limit)
}

// ListPromotions handles GET /admin/promotions?status=.
func (h *AdminHandler) ListPromotions(c *gin.Context) {
	p, limit := parsePagination(c)
	list, total, err := h.promotions.ListAdmin(c.Query("status"), p, limit)
	if err != nil {
		failErr(c, err)
		return
	}
	page(c, list, total, p, limit)
}

// ListAuditLogs handles GET /admin/audit-logs.
func (h *AdminHandler) ListAuditLogs(c *gin.Context) {
	p, limit := parsePagination(c)
	list, total, err := h.auditRepo.List(p, limit)
	if err != nil {
		failErr(c, err)
		return
	}
	page(c, list, total, p, limit)
}
