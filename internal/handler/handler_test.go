package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tokenguard/internal/admin"
	"tokenguard/internal/domain"
	"tokenguard/internal/models"
	"tokenguard/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func init() { gin.SetMode(gin.TestMode) }

func TestFailErrMapping(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{service.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
		{fmt.Errorf("%w: amount is required", admin.ErrInvalidPayload), http.StatusBadRequest, "invalid payload: amount is required"},
		{fmt.Errorf("charge: %w", service.ErrInsufficientCredits), http.StatusPaymentRequired, "insufficient credits"},
		{fmt.Errorf("%w: status 502", service.ErrAnalysisUnavailable), http.StatusBadGateway, "analysis service unavailable"},
		{errors.New("dial tcp 10.0.0.1:3306: connection refused"), http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		failErr(c, tc.err)
		var body map[string]interface{}
		json.Unmarshal(w.Body.Bytes(), &body)
		if w.Code != tc.status || body["success"] != false || body["message"] != tc.message {
			t.Errorf("%v: %d %v", tc.err, w.Code, body)
		}
	}
}

func TestWriteTransactionsXLSX(t *testing.T) {
	done := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	list := []models.Transaction{
		{ID: 2, Reference: "tg_b", UserID: 7, Amount: decimal.RequireFromString("19.99"), Currency: "USD", Tokens: 199, Method: domain.MethodStripe, Status: domain.TxStatusCompleted, CompletedAt: &done, CreatedAt: done},
		{ID: 1, Reference: "adj_a", UserID: 7, Tokens: -3, Method: domain.MethodAdminAdjustment, Status: domain.TxStatusCompleted, Note: "abuse", CreatedAt: done},
	}
	var buf bytes.Buffer
	if err := writeTransactionsXLSX(&buf, list); err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := f.GetRows(exportSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[0][1] != "Reference" || rows[1][1] != "tg_b" || rows[2][7] != "-3" || rows[2][9] != "abuse" {
		t.Errorf("rows = %v", rows)
	}
}

func TestParsePagination(t *testing.T) {
	cases := map[string][2]int{
		"":                   {1, 20},
		"?page=3&limit=50":   {3, 50},
		"?page=-1&limit=500": {1, 20},
		"?page=x&limit=0":    {1, 20},
	}
	for q, want := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/"+q, nil)
		p, l := parsePagination(c)
		if p != want[0] || l != want[1] {
			t.Errorf("%q: %d,%d", q, p, l)
		}
	}
}
