package handler

import (
	"strconv"

	"tokenguard/internal/middleware"
	"tokenguard/internal/service"

	"github.com/gin-gonic/gin"
)

type MeHandler struct {
	ledger   *service.LedgerService
	analysis *service.AnalysisService
	payments *service.PaymentService
}

func NewMeHandler(ledger *service.LedgerService, analysis *service.AnalysisService, payments *service.PaymentService) *MeHandler {
	return &MeHandler{ledger: ledger, analysis: analysis, payments: payments}
}

// Dashboard handles GET /me/dashboard: balance, recent analyses and transactions.
func (h *MeHandler) Dashboard(c *gin.Context) {
	userID := middleware.GetUserID(c)
	acct, err := h.ledger.Account(c.Request.Context(), userID)
	if err != nil {
		failErr(c, err)
		return
	}
	analyses, totalAnalyses, err := h.analysis.History(userID, 1, 10)
	if err != nil {
		failErr(c, err)
		return
	}
	txs, err := h.payments.UserTransactions(userID, 10, 0)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{
		"balance":         acct.Balance,
		"total_purchased": acct.TotalPurchased,
		"total_spent":     acct.TotalSpent,
		"analyses":        analyses,
		"total_analyses":  totalAnalyses,
		"transactions":    txs,
	})
}

// Transactions handles GET /me/transactions?limit=&offset=.
func (h *MeHandler) Transactions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	list, err := h.payments.UserTransactions(middleware.GetUserID(c), limit, offset)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, list)
}
