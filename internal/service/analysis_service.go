package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"tokenguard/internal/common"
	"tokenguard/internal/domain"
	"tokenguard/internal/models"
	"tokenguard/internal/repository"
	"tokenguard/internal/settings"

	log "github.com/sirupsen/logrus"
)

var (
	ErrAuthRequired         = errors.New("sign in to analyze tokens")
	ErrInvalidQuestion      = errors.New("invalid analysis request")
	ErrWebhookNotConfigured = errors.New("analysis service is not configured")
	ErrAnalysisUnavailable  = errors.New("analysis service unavailable")
)

const (
	maxQuestionRunes        = 2000
	maxWebhookResponseBytes = 1 << 20
)

type AnalysisRequest struct {
	Message         string `json:"message"`
	ContractAddress string `json:"contract_address"`
	Chain           string `json:"chain"`
	Mode            string `json:"mode"`
	SessionID       string `json:"session_id"`
}

type AnalysisResult struct {
	AnalysisID  uint   `json:"analysis_id"`
	Output      string `json:"output"`
	Verdict     string `json:"verdict"`
	TokenName   string `json:"token_name,omitempty"`
	TokenSymbol string `json:"token_symbol,omitempty"`
	RiskScore   *int   `json:"risk_score,omitempty"`
	Mode        string `json:"mode"`
	Cached      bool   `json:"cached"`
	Cost        int64  `json:"cost"`
	Balance     *int64 `json:"balance,omitempty"`
}

// AnalysisService forwards token questions to the analysis webhook, caching
// answers and charging credits when paid mode is on.
type AnalysisService struct {
	settings settings.Provider
	cache    *CacheService
	ledger   *LedgerService
	repo     *repository.AnalysisRepository
	client   *http.Client
}

func NewAnalysisService(sp settings.Provider, cache *CacheService, ledger *LedgerService, repo *repository.AnalysisRepository) *AnalysisService {
	return &AnalysisService{settings: sp, cache: cache, ledger: ledger, repo: repo, client: &http.Client{}}
}

func (r *AnalysisRequest) normalize() error {
	r.Message = common.Truncate(common.SanitizeMultiline(r.Message), maxQuestionRunes)
	r.ContractAddress = strings.TrimSpace(r.ContractAddress)
	if r.ContractAddress != "" {
		if r.ContractAddress = common.SanitizeAddress(r.ContractAddress); r.ContractAddress == "" {
			return fmt.Errorf("%w: malformed contract address", ErrInvalidQuestion)
		}
	}
	r.Chain = strings.ToLower(strings.TrimSpace(r.Chain))
	if r.Chain != "" && !domain.Chains[r.Chain] {
		return fmt.Errorf("%w: unsupported chain %q", ErrInvalidQuestion, r.Chain)
	}
	switch r.Mode {
	case "":
		r.Mode = domain.ModeStandard
	case domain.ModeStandard, domain.ModePsycho:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidQuestion, r.Mode)
	}
	r.SessionID = common.Truncate(common.SanitizeText(r.SessionID), 64)
	if r.Message == "" && r.ContractAddress == "" {
		return fmt.Errorf("%w: message or contract address is required", ErrInvalidQuestion)
	}
	return nil
}

// Analyze answers one question. userID is nil for anonymous widget visitors.
// Credits are charged only after the webhook answered successfully; cache hits are free.
func (s *AnalysisService) Analyze(ctx context.Context, userID *uint, req AnalysisRequest) (*AnalysisResult, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}
	cfg, err := s.settings.Load()
	if err != nil {
		return nil, err
	}
	var cost int64
	if cfg.PaidMode {
		if userID == nil {
			return nil, ErrAuthRequired
		}
		cost = cfg.AnalysisCost(req.Mode)
	}

	key := CacheKey(req.Chain, req.ContractAddress, req.Mode, req.Message)
	if raw, ok, err := s.cache.Get(key); err != nil {
		log.WithError(err).Warn("[analysis] cache read failed")
	} else if ok {
		var res AnalysisResult
		if json.Unmarshal([]byte(raw), &res) == nil {
			res.Cached, res.Cost = true, 0
			s.record(userID, req, &res)
			s.attachBalance(ctx, userID, &res)
			return &res, nil
		}
	}

	if cfg.WebhookURL == "" {
		return nil, ErrWebhookNotConfigured
	}
	if cost > 0 {
		bal, err := s.ledger.Balance(ctx, *userID)
		if err != nil {
			return nil, err
		}
		if bal < cost {
			return nil, ErrInsufficientCredits
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, cfg.APITimeoutDuration())
	defer cancel()
	res, err := s.callWebhook(callCtx, cfg.WebhookURL, userID, req)
	if err != nil {
		return nil, err
	}
	res.Mode = req.Mode

	if cost > 0 {
		bal, err := s.ledger.Charge(ctx, *userID, cost, fmt.Sprintf("%s analysis %s", req.Mode, req.ContractAddress))
		if err != nil {
			return nil, err
		}
		res.Cost = cost
		res.Balance = &bal
	}
	stored := *res
	stored.Balance, stored.Cost, stored.AnalysisID = nil, 0, 0
	if b, err := json.Marshal(stored); err == nil {
		if err := s.cache.Put(key, string(b), cfg.CacheTTL()); err != nil {
			log.WithError(err).Warn("[analysis] cache write failed")
		}
	}
	s.record(userID, req, res)
	if res.Balance == nil {
		s.attachBalance(ctx, userID, res)
	}
	return res, nil
}

func (s *AnalysisService) History(userID uint, page, limit int) ([]models.Analysis, int64, error) {
	return s.repo.ListByUser(userID, page, limit)
}

func (s *AnalysisService) List(verdict string, page, limit int) ([]models.Analysis, int64, error) {
	return s.repo.List(verdict, page, limit)
}

func (s *AnalysisService) record(userID *uint, req AnalysisRequest, res *AnalysisResult) {
	a := &models.Analysis{
		UserID:          userID,
		TokenName:       common.Truncate(res.TokenName, 100),
		TokenSymbol:     common.Truncate(res.TokenSymbol, 30),
		ContractAddress: req.ContractAddress,
		Chain:           req.Chain,
		Mode:            req.Mode,
		Verdict:         res.Verdict,
		RiskScore:       res.RiskScore,
		Question:        req.Message,
		Result:          res.Output,
		Cost:            res.Cost,
		Cached:          res.Cached,
	}
	if err := s.repo.Create(a); err != nil {
		log.WithError(err).Warn("[analysis] record failed")
		return
	}
	res.AnalysisID = a.ID
}

func (s *AnalysisService) attachBalance(ctx context.Context, userID *uint, res *AnalysisResult) {
	if userID == nil {
		return
	}
	if bal, err := s.ledger.Balance(ctx, *userID); err == nil {
		res.Balance = &bal
	}
}

type webhookRequest struct {
	Message         string `json:"message"`
	ContractAddress string `json:"contract_address,omitempty"`
	Chain           string `json:"chain,omitempty"`
	Mode            string `json:"mode"`
	SessionID       string `json:"session_id,omitempty"`
	UserID          *uint  `json:"user_id,omitempty"`
}

func (s *AnalysisService) callWebhook(ctx context.Context, url string, userID *uint, req AnalysisRequest) (*AnalysisResult, error) {
	body, _ := json.Marshal(webhookRequest{
		Message:         req.Message,
		ContractAddress: req.ContractAddress,
		Chain:           req.Chain,
		Mode:            req.Mode,
		SessionID:       req.SessionID,
		UserID:          userID,
	})
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(httpReq)
	if err != nil {
		log.WithError(err).Warn("[analysis] webhook request failed")
		return nil, fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxWebhookResponseBytes))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.WithField("status", resp.StatusCode).Warn("[analysis] webhook returned error status")
		return nil, fmt.Errorf("%w: HTTP %d", ErrAnalysisUnavailable, resp.StatusCode)
	}
	res := ParseWebhookResponse(raw)
	if res.Output == "" {
		return nil, fmt.Errorf("%w: empty response", ErrAnalysisUnavailable)
	}
	return res, nil
}

type webhookAnswer struct {
	Output      string      `json:"output"`
	Response    string      `json:"response"`
	Text        string      `json:"text"`
	Message     string      `json:"message"`
	Verdict     string      `json:"verdict"`
	TokenName   string      `json:"token_name"`
	TokenSymbol string      `json:"token_symbol"`
	RiskScore   interface{} `json:"risk_score"`
}

// ParseWebhookResponse accepts an object, a one-element array of objects or plain text.
func ParseWebhookResponse(raw []byte) *AnalysisResult {
	trimmed := bytes.TrimSpace(raw)
	var ans webhookAnswer
	switch {
	case bytes.HasPrefix(trimmed, []byte("[")):
		var list []webhookAnswer
		if json.Unmarshal(trimmed, &list) == nil && len(list) > 0 {
			ans = list[0]
		}
	case bytes.HasPrefix(trimmed, []byte("{")):
		_ = json.Unmarshal(trimmed, &ans)
	default:
		ans.Output = string(trimmed)
	}
	out := common.SanitizeMultiline(firstNonEmpty(ans.Output, ans.Response, ans.Text, ans.Message))
	res := &AnalysisResult{
		Output:      out,
		TokenName:   common.SanitizeText(ans.TokenName),
		TokenSymbol: common.SanitizeText(ans.TokenSymbol),
		RiskScore:   parseRiskScore(ans.RiskScore),
	}
	res.Verdict = normalizeVerdict(ans.Verdict)
	if res.Verdict == domain.VerdictUnknown {
		res.Verdict = inferVerdict(out)
	}
	return res
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func normalizeVerdict(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "scam", "rug", "rugpull", "honeypot":
		return domain.VerdictScam
	case "legit", "safe", "legitimate":
		return domain.VerdictLegit
	case "caution", "warning", "risky", "suspicious":
		return domain.VerdictCaution
	}
	return domain.VerdictUnknown
}

var (
	scamTerms    = regexp.MustCompile(`\b(scam|scams|rug ?pull|rugpull|honeypot)\b`)
	cautionTerms = regexp.MustCompile(`\b(caution|suspicious|high[- ]risk|warning|risky)\b`)
	legitTerms   = regexp.MustCompile(`\b(legit|legitimate|safe|low[- ]risk)\b`)
	clauseBreak  = regexp.MustCompile(`[.,;:!?\n]|\bbut\b`)
	negatedTail  = regexp.MustCompile(`\b(not|no|never|isn'?t|aren'?t|wasn'?t|without|nor|hardly)(\s+\S+){0,2}\s*$`)
)

// inferVerdict reads the verdict from free text when the webhook did not send one.
// A term preceded by a negation in the same clause does not count; a negated
// legit term ("not safe") counts as caution.
func inferVerdict(text string) string {
	var scam, caution, legit bool
	for _, clause := range clauseBreak.Split(strings.ToLower(text), -1) {
		scam = scam || hasPlainTerm(clause, scamTerms)
		caution = caution || hasPlainTerm(clause, cautionTerms) || hasNegatedTerm(clause, legitTerms)
		legit = legit || hasPlainTerm(clause, legitTerms)
	}
	switch {
	case scam:
		return domain.VerdictScam
	case caution:
		return domain.VerdictCaution
	case legit:
		return domain.VerdictLegit
	}
	return domain.VerdictUnknown
}

func hasPlainTerm(clause string, re *regexp.Regexp) bool {
	for _, loc := range re.FindAllStringIndex(clause, -1) {
		if !negatedTail.MatchString(clause[:loc[0]]) {
			return true
		}
	}
	return false
}

func hasNegatedTerm(clause string, re *regexp.Regexp) bool {
	for _, loc := range re.FindAllStringIndex(clause, -1) {
		if negatedTail.MatchString(clause[:loc[0]]) {
			return true
		}
	}
	return false
}

func parseRiskScore(v interface{}) *int {
	var n int
	switch x := v.(type) {
	case float64:
		n = int(x)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return nil
		}
		n = i
	default:
		return nil
	}
	if n < 0 {
		n = 0
	}
	if n > 100 {
		n = 100
	}
	return &n
}
