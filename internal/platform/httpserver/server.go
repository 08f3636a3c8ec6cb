package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	ballotengine "contestvote/contexts/contest-voting/ballot-engine"
	"contestvote/contexts/contest-voting/ballot-engine/adapters/live"
	"contestvote/contexts/contest-voting/ballot-engine/domain/entities"
	domainerrors "contestvote/contexts/contest-voting/ballot-engine/domain/errors"
	ballothttp "contestvote/contexts/contest-voting/ballot-engine/transport/http"
	_ "contestvote/internal/platform/httpserver/docs"
	"contestvote/internal/platform/metrics"

	json "github.com/goccy/go-json"
	httpSwagger "github.com/swaggo/http-swagger"
)

const maxVoteBodyBytes = 64 << 10

type Options struct {
	Live          *live.Hub
	Metrics       *metrics.Metrics
	VoteRateLimit float64
	VoteRateBurst int
	EnableSwagger bool

	// TrustForwardedFor reads the client address from X-Forwarded-For. Enable
	// only when a proxy in front of the server overwrites that header.
	TrustForwardedFor bool
}

type Server struct {
	mux     *http.ServeMux
	handler http.Handler
	logger  *slog.Logger
	addr    string
	http    *http.Server
	ballots ballotengine.Module
	live    *live.Hub
	metrics *metrics.Metrics
	limiter *originLimiter
	swagger bool
	proxied bool
}

func New(
	ballots ballotengine.Module,
	opts Options,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:     http.NewServeMux(),
		logger:  logger,
		addr:    addr,
		ballots: ballots,
		live:    opts.Live,
		metrics: opts.Metrics,
		limiter: newOriginLimiter(opts.VoteRateLimit, opts.VoteRateBurst),
		swagger: opts.EnableSwagger,
		proxied: opts.TrustForwardedFor,
	}
	s.registerRoutes()
	s.handler = s.mux
	if s.metrics != nil {
		s.handler = metrics.Middleware(s.metrics, s.mux)
	}
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	s.http = &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	if s.swagger {
		s.mux.Handle("/swagger/", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("POST /v1/contests/{contest_id}/categories/{category_id}/votes", s.handleSubmitVote)
	s.mux.HandleFunc("GET /v1/categories/{category_id}/results", s.handleCategoryResult)
	s.mux.HandleFunc("GET /v1/contests/{contest_id}/results", s.handleContestResult)
	if s.live != nil {
		s.mux.HandleFunc("GET /v1/categories/{category_id}/live", s.handleLiveResults)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSubmitVote(w http.ResponseWriter, r *http.Request) {
	origin := resolveClientIP(r, s.proxied)
	if !s.limiter.Allow(origin) {
		s.logger.Warn("vote submission rate limited",
			"event", "http_vote_rate_limited",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"network_origin", origin,
		)
		writeBallotError(w, http.StatusTooManyRequests, "rate_limited", "too many vote submissions", "")
		return
	}

	var req ballothttp.SubmitVoteRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxVoteBodyBytes))
	if err := decoder.Decode(&req); err != nil {
		writeBallotError(w, http.StatusBadRequest, "invalid_json", "request body must be a JSON ballot", "")
		return
	}

	voter := entities.Voter{
		AccountID:     r.Header.Get("X-Account-Id"),
		Email:         r.Header.Get("X-Voter-Email"),
		DeviceID:      r.Header.Get("X-Device-Id"),
		NetworkOrigin: origin,
		UserAgent:     r.UserAgent(),
	}
	resp, err := s.ballots.Handler.SubmitVoteHandler(
		r.Context(),
		r.PathValue("contest_id"),
		r.PathValue("category_id"),
		voter,
		r.Header.Get("Idempotency-Key"),
		req,
	)
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleCategoryResult(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ballots.Handler.CategoryResultHandler(r.Context(), r.PathValue("category_id"), resolveView(r))
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleContestResult(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ballots.Handler.ContestResultHandler(r.Context(), r.PathValue("contest_id"), resolveView(r))
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLiveResults(w http.ResponseWriter, r *http.Request) {
	categoryID := r.PathValue("category_id")
	snapshot, err := s.ballots.Handler.VisibleCategoryResult(r.Context(), categoryID, resolveView(r))
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	// The hub writes its own response when the upgrade fails.
	_ = s.live.ServeCategory(w, r, snapshot.CategoryID, &snapshot)
}

func writeBallotDomainError(w http.ResponseWriter, err error) {
	code := domainerrors.RejectionCode(err)
	switch {
	case errors.Is(err, domainerrors.ErrInvalidPayload):
		rule, _ := domainerrors.PayloadRule(err)
		writeBallotError(w, http.StatusUnprocessableEntity, code, err.Error(), rule)
	case errors.Is(err, domainerrors.ErrDuplicateVote),
		errors.Is(err, domainerrors.ErrConflict),
		errors.Is(err, domainerrors.ErrIdempotencyConflict),
		errors.Is(err, domainerrors.ErrIdempotencyKeyTaken):
		writeBallotError(w, http.StatusConflict, code, err.Error(), "")
	case errors.Is(err, domainerrors.ErrOutsideVotingWindow),
		errors.Is(err, domainerrors.ErrInvalidPasscode),
		errors.Is(err, domainerrors.ErrEmailDomainNotAllowed),
		errors.Is(err, domainerrors.ErrResultsNotYetVisible):
		writeBallotError(w, http.StatusForbidden, code, err.Error(), "")
	case errors.Is(err, domainerrors.ErrAccountRequired):
		writeBallotError(w, http.StatusUnauthorized, code, err.Error(), "")
	case errors.Is(err, domainerrors.ErrEmailRequired),
		errors.Is(err, domainerrors.ErrDeviceRequired),
		errors.Is(err, domainerrors.ErrInvalidSubmission):
		writeBallotError(w, http.StatusBadRequest, code, err.Error(), "")
	case errors.Is(err, domainerrors.ErrContestNotFound),
		errors.Is(err, domainerrors.ErrCategoryNotFound),
		errors.Is(err, domainerrors.ErrCategoryNotInContest),
		errors.Is(err, domainerrors.ErrBallotNotFound):
		writeBallotError(w, http.StatusNotFound, code, err.Error(), "")
	default:
		writeBallotError(w, http.StatusInternalServerError, "internal_error", "internal server error", "")
	}
}

func writeBallotError(w http.ResponseWriter, status int, code string, message string, rule string) {
	writeJSON(w, status, ballothttp.ErrorResponse{
		Code:    code,
		Message: message,
		Rule:    rule,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// resolveClientIP returns the remote host without its port. Behind a trusted
// proxy the first X-Forwarded-For hop wins when present.
func resolveClientIP(r *http.Request, trustForwarded bool) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); trustForwarded && forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// resolveView trusts X-Account-Id as set by the authenticating gateway; the
// server never sees credentials itself.
func resolveView(r *http.Request) entities.ResultsView {
	return entities.ResultsView{
		ViewerAccountID: strings.TrimSpace(r.Header.Get("X-Account-Id")),
	}
}
