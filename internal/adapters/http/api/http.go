// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sportswire/gmtrade/internal/adapters/ledger"
	"github.com/sportswire/gmtrade/internal/adapters/repository"
	"github.com/sportswire/gmtrade/internal/domain/audit"
	"github.com/sportswire/gmtrade/internal/domain/grading"
	"github.com/sportswire/gmtrade/internal/domain/trade"
)

// userIDHeader carries the opaque user identity resolved by the upstream
// identity provider. The engine never authenticates callers itself.
const userIDHeader = "X-User-ID"

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	SubmitTrade(ctx context.Context, userID string, p *trade.Proposal) (grading.Result, bool, error)
	PreviewTrade(ctx context.Context, p *trade.Proposal) (grading.Result, bool, error)
	GetAudit(ctx context.Context, fingerprint string) (audit.Result, bool)
	Leaderboard(ctx context.Context, sport, teamAffinity string, k int) ([]repository.Entry, error)
	UserRank(ctx context.Context, userID, sport, teamAffinity string) (repository.RankInfo, error)
	StartSession(ctx context.Context, userID, teamContext string) (ledger.Session, error)
	Activities(ctx context.Context, userID string, limit int) ([]ledger.Activity, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	tradesHandler      *TradesHandler
	auditsHandler      *AuditsHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	sessionsHandler    *SessionsHandler
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLeaderboardLimit int) *Server {
	return &Server{
		tradesHandler:      NewTradesHandler(deps),
		auditsHandler:      NewAuditsHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLeaderboardLimit),
		rankHandler:        NewRankHandler(deps),
		sessionsHandler:    NewSessionsHandler(deps),
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/trades", MetricsMiddleware(s.tradesHandler.HandlePostTrade, "trades"))
	mux.HandleFunc("/trades/preview", MetricsMiddleware(s.tradesHandler.HandlePreviewTrade, "trades_preview"))
	mux.HandleFunc("/audits/", MetricsMiddleware(s.auditsHandler.HandleGetAudit, "audits"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/rank/", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
	mux.HandleFunc("/sessions", MetricsMiddleware(s.sessionsHandler.HandleStartSession, "sessions"))
	mux.HandleFunc("/activities", MetricsMiddleware(s.sessionsHandler.HandleGetActivities, "activities"))
}

// assetRequest is the loose wire shape of one asset: a player reference
// or a draft pick, depending on which fields are present. It is resolved
// into the tagged trade.Asset exactly once, here at the boundary.
type assetRequest struct {
	ExternalID  string       `json:"external_id,omitempty"`
	DisplayName string       `json:"display_name,omitempty"`
	Pick        *pickRequest `json:"pick,omitempty"`
}

type pickRequest struct {
	Year      int    `json:"year"`
	Round     int    `json:"round"`
	Condition string `json:"condition,omitempty"`
}

func (a assetRequest) toAsset() trade.Asset {
	if a.Pick != nil {
		return trade.DraftPick(a.Pick.Year, a.Pick.Round, a.Pick.Condition)
	}
	return trade.Player(a.ExternalID, a.DisplayName)
}

type movementRequest struct {
	From  string       `json:"from"`
	To    string       `json:"to"`
	Asset assetRequest `json:"asset"`
}

// tradeRequest mirrors the wire schema for POST /trades.
type tradeRequest struct {
	Team     string            `json:"team"`
	Sport    string            `json:"sport"`
	Partner  string            `json:"partner,omitempty"`
	Sent     []assetRequest    `json:"sent,omitempty"`
	Received []assetRequest    `json:"received,omitempty"`
	Partners []string          `json:"partners,omitempty"`
	Moves    []movementRequest `json:"movements,omitempty"`
}

func (r tradeRequest) toProposal() *trade.Proposal {
	p := &trade.Proposal{
		TeamKey:     strings.TrimSpace(r.Team),
		Sport:       strings.TrimSpace(r.Sport),
		PartnerKey:  strings.TrimSpace(r.Partner),
		PartnerKeys: r.Partners,
	}
	for _, a := range r.Sent {
		p.Sent = append(p.Sent, a.toAsset())
	}
	for _, a := range r.Received {
		p.Received = append(p.Received, a.toAsset())
	}
	for _, m := range r.Moves {
		p.Movements = append(p.Movements, trade.Movement{
			FromTeam: m.From,
			ToTeam:   m.To,
			Asset:    m.Asset.toAsset(),
		})
	}
	return p
}

// tradeResponse pairs a grade with the cached flag.
type tradeResponse struct {
	grading.Result
	Cached bool `json:"cached"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// userID extracts the caller identity; empty means unauthenticated.
func userID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(userIDHeader))
}

// httpStatusFor maps the engine's error taxonomy to response codes, with
// retryability implied: 503s are retryable, 4xx are not.
func httpStatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, trade.ErrInvalidProposal):
		return http.StatusBadRequest, "invalid_proposal"
	case errors.Is(err, grading.ErrEvaluatorUnavailable):
		return http.StatusServiceUnavailable, "evaluator_unavailable"
	case errors.Is(err, ledger.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
