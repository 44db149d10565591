package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/domain"
	"github.com/kailas-cloud/librarian/internal/domain/answer"
	domusage "github.com/kailas-cloud/librarian/internal/domain/usage"
	"github.com/kailas-cloud/librarian/internal/logger"
	healthuc "github.com/kailas-cloud/librarian/internal/usecase/health"
)

const maxBodyBytes = 64 << 10

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the librarian HTTP API.
type Server struct {
	chat          ChatService
	search        Searcher
	usage         UsageReporter
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. search may be nil when the catalog is unavailable.
func NewServer(
	chat ChatService,
	search Searcher,
	usage UsageReporter,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	s := &Server{
		chat:   chat,
		search: search,
		usage:  usage,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, ErrorCodeBadRequest),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorCodeNotFound),
		sentinelHandler(domain.ErrTokenQuotaExceeded, http.StatusPaymentRequired, ErrorCodeQuotaExceeded),
		sentinelHandler(domain.ErrLLMProviderError, http.StatusBadGateway, ErrorCodeProviderError),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, ErrorCodeProviderError),
		sentinelHandler(domain.ErrRetrieverUnavailable, http.StatusServiceUnavailable, ErrorCodeRetrieverUnavailable),
	}
	return s
}

// Chat handles POST /chat.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "query is required")
		return
	}

	k := 0
	if req.K != nil {
		k = max(*req.K, 1)
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	ans, err := s.chat.Ask(ctx, req.Query, s.chat.ClampK(k))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setUsageHeaders(w, usage)
	writeJSON(w, http.StatusOK, NewChatResponse(ans))
}

// DebugSearch handles GET /debug/search.
func (s *Server) DebugSearch(w http.ResponseWriter, r *http.Request) {
	var params SearchParams
	if err := runtime.BindQueryParameter("form", true, true, "q", r.URL.Query(), &params.Q); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, fmt.Sprintf("Invalid format for parameter q: %s", err))
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "k", r.URL.Query(), &params.K); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, fmt.Sprintf("Invalid format for parameter k: %s", err))
		return
	}
	if strings.TrimSpace(params.Q) == "" {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "q is required")
		return
	}
	if s.search == nil {
		s.handleDomainError(w, r, domain.ErrRetrieverUnavailable)
		return
	}

	k := 0
	if params.K != nil {
		k = max(*params.K, 1)
	}
	ctx, usage := domain.NewContextWithUsage(r.Context())
	hits, err := s.search.Search(ctx, params.Q, s.chat.ClampK(k))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	setUsageHeaders(w, usage)

	resp := SearchResponse{Query: params.Q, Results: make([]SearchResult, len(hits))}
	for i := range hits {
		resp.Results[i] = SearchResult{Title: hits[i].Title(), Score: hits[i].Score(), Themes: hits[i].Themes()}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetUsage handles GET /usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	var params UsageParams
	if err := runtime.BindQueryParameter("form", true, false, "period", r.URL.Query(), &params.Period); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, fmt.Sprintf("Invalid format for parameter period: %s", err))
		return
	}

	raw := ""
	if params.Period != nil {
		raw = *params.Period
	}
	period, err := domusage.ParsePeriod(raw)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	report := s.usage.GetReport(r.Context(), period)
	writeJSON(w, http.StatusOK, UsageResponse{
		Period:          string(report.Period),
		PeriodStart:     report.PeriodStart,
		PeriodEnd:       report.PeriodEnd,
		TokensLimit:     report.TokensLimit,
		TokensUsed:      report.TokensUsed,
		TokensRemaining: report.TokensRemaining,
		Exhausted:       report.Exhausted,
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// NewChatResponse maps an answer to its wire form. Context is never null.
func NewChatResponse(a answer.Answer) ChatResponse {
	items := make([]ContextItem, len(a.Context))
	for i, c := range a.Context {
		themes := c.Themes
		if themes == nil {
			themes = []string{}
		}
		items[i] = ContextItem{Title: c.Title, Themes: themes}
	}
	return ChatResponse{Query: a.Query, ChosenTitle: a.ChosenTitle, Answer: a.Text, ContextUsed: items}
}

func setUsageHeaders(w http.ResponseWriter, usage *domain.TokenUsage) {
	if usage == nil || usage.Calls == 0 {
		return
	}
	w.Header().Set("X-LLM-Tokens", strconv.Itoa(usage.LLMTokens))
	w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.EmbeddingTokens))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidRequest,
		domain.ErrNotFound,
		domain.ErrTokenQuotaExceeded,
		domain.ErrLLMProviderError,
		domain.ErrEmbeddingProviderError,
		domain.ErrRetrieverUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, safeDomainMessage(err))
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
