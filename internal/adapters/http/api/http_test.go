package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/sportswire/gmtrade/internal/adapters/http/api"
	"github.com/sportswire/gmtrade/internal/adapters/ledger"
	"github.com/sportswire/gmtrade/internal/adapters/repository"
	"github.com/sportswire/gmtrade/internal/domain/audit"
	"github.com/sportswire/gmtrade/internal/domain/fingerprint"
	"github.com/sportswire/gmtrade/internal/domain/grading"
	"github.com/sportswire/gmtrade/internal/domain/trade"
	"github.com/sportswire/gmtrade/pkg/logger"
)

func init() {
	_ = logger.Init()
}

// mockDeps is a scripted Dependencies implementation for handler tests.
type mockDeps struct {
	submitResult  grading.Result
	submitCached  bool
	submitErr     error
	submitUserID  string
	previewResult grading.Result
	previewErr    error
	audits        map[string]audit.Result
	entries       []repository.Entry
	boardErr      error
	rank          repository.RankInfo
	session       ledger.Session
	sessionErr    error
	activities    []ledger.Activity
}

func (m *mockDeps) SubmitTrade(ctx context.Context, userID string, p *trade.Proposal) (grading.Result, bool, error) {
	m.submitUserID = userID
	if m.submitErr != nil {
		return grading.Result{}, false, m.submitErr
	}
	if err := p.Validate(); err != nil {
		return grading.Result{}, false, err
	}
	return m.submitResult, m.submitCached, nil
}

func (m *mockDeps) PreviewTrade(ctx context.Context, p *trade.Proposal) (grading.Result, bool, error) {
	if m.previewErr != nil {
		return grading.Result{}, false, m.previewErr
	}
	return m.previewResult, false, nil
}

func (m *mockDeps) GetAudit(ctx context.Context, fp string) (audit.Result, bool) {
	res, ok := m.audits[fp]
	return res, ok
}

func (m *mockDeps) Leaderboard(ctx context.Context, sport, teamAffinity string, k int) ([]repository.Entry, error) {
	if m.boardErr != nil {
		return nil, m.boardErr
	}
	if k > len(m.entries) {
		k = len(m.entries)
	}
	return m.entries[:k], nil
}

func (m *mockDeps) UserRank(ctx context.Context, userID, sport, teamAffinity string) (repository.RankInfo, error) {
	if m.boardErr != nil {
		return repository.RankInfo{}, m.boardErr
	}
	return m.rank, nil
}

func (m *mockDeps) StartSession(ctx context.Context, userID, teamContext string) (ledger.Session, error) {
	if m.sessionErr != nil {
		return ledger.Session{}, m.sessionErr
	}
	return m.session, nil
}

func (m *mockDeps) Activities(ctx context.Context, userID string, limit int) ([]ledger.Activity, error) {
	return m.activities, nil
}

type mockStats struct{}

func (mockStats) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true}
}

func newMux(deps *mockDeps) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, mockStats{}, 100).Register(context.Background(), mux)
	return mux
}

const tradeBody = `{
	"team": "bulls",
	"sport": "nba",
	"partner": "lakers",
	"sent": [{"external_id": "p-100"}],
	"received": [{"pick": {"year": 2027, "round": 1}}]
}`

func TestHandlePostTrade(t *testing.T) {
	Convey("Given the trades endpoint", t, func() {
		deps := &mockDeps{
			submitResult: grading.Result{Fingerprint: fingerprint.Fingerprint("abc"), Grade: 71},
		}
		mux := newMux(deps)

		Convey("When a valid trade is posted", func() {
			req := httptest.NewRequest(http.MethodPost, "/trades", strings.NewReader(tradeBody))
			req.Header.Set("X-User-ID", "u1")
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the grade comes back with cached=false", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var resp struct {
					Grade  float64 `json:"grade"`
					Cached bool    `json:"cached"`
				}
				So(json.NewDecoder(rec.Body).Decode(&resp), ShouldBeNil)
				So(resp.Grade, ShouldEqual, 71)
				So(resp.Cached, ShouldBeFalse)
				So(deps.submitUserID, ShouldEqual, "u1")
			})
		})

		Convey("When the user identity header is missing", func() {
			req := httptest.NewRequest(http.MethodPost, "/trades", strings.NewReader(tradeBody))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, http.StatusUnauthorized)
			So(rec.Body.String(), ShouldContainSubstring, "unauthenticated")
		})

		Convey("When the body is not JSON", func() {
			req := httptest.NewRequest(http.MethodPost, "/trades", strings.NewReader("not json"))
			req.Header.Set("X-User-ID", "u1")
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the proposal is structurally invalid", func() {
			body := `{"team": "bulls", "sport": "nba"}`
			req := httptest.NewRequest(http.MethodPost, "/trades", strings.NewReader(body))
			req.Header.Set("X-User-ID", "u1")
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(rec.Body.String(), ShouldContainSubstring, "invalid_proposal")
		})

		Convey("When the evaluator is unavailable", func() {
			deps.submitErr = fmt.Errorf("%w: timeout", grading.ErrEvaluatorUnavailable)
			req := httptest.NewRequest(http.MethodPost, "/trades", strings.NewReader(tradeBody))
			req.Header.Set("X-User-ID", "u1")
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(rec.Body.String(), ShouldContainSubstring, "evaluator_unavailable")
		})

		Convey("When the method is GET", func() {
			req := httptest.NewRequest(http.MethodGet, "/trades", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestHandlePreviewTrade(t *testing.T) {
	Convey("Given the preview endpoint", t, func() {
		deps := &mockDeps{
			previewResult: grading.Result{Grade: 50, Fallback: true},
		}
		mux := newMux(deps)

		Convey("When previewing without an identity header", func() {
			req := httptest.NewRequest(http.MethodPost, "/trades/preview", strings.NewReader(tradeBody))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the preview still works", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var resp struct {
					Grade    float64 `json:"grade"`
					Fallback bool    `json:"fallback"`
				}
				So(json.NewDecoder(rec.Body).Decode(&resp), ShouldBeNil)
				So(resp.Grade, ShouldEqual, 50)
				So(resp.Fallback, ShouldBeTrue)
			})
		})
	})
}

func TestHandleGetAudit(t *testing.T) {
	Convey("Given the audits endpoint", t, func() {
		deps := &mockDeps{
			audits: map[string]audit.Result{
				"abc123": {Fingerprint: fingerprint.Fingerprint("abc123"), Grade: 66, Assessment: "plausible"},
			},
		}
		mux := newMux(deps)

		Convey("When the audit exists", func() {
			req := httptest.NewRequest(http.MethodGet, "/audits/abc123", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, http.StatusOK)
			var resp struct {
				Grade      float64 `json:"grade"`
				Assessment string  `json:"assessment"`
			}
			So(json.NewDecoder(rec.Body).Decode(&resp), ShouldBeNil)
			So(resp.Grade, ShouldEqual, 66)
			So(resp.Assessment, ShouldEqual, "plausible")
		})

		Convey("When the audit is still pending", func() {
			req := httptest.NewRequest(http.MethodGet, "/audits/unknown", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, http.StatusNotFound)
			So(rec.Body.String(), ShouldContainSubstring, "not_computed")
		})

		Convey("When the fingerprint is missing from the path", func() {
			req := httptest.NewRequest(http.MethodGet, "/audits/", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestHandleGetLeaderboard(t *testing.T) {
	Convey("Given the leaderboard endpoint", t, func() {
		deps := &mockDeps{
			entries: []repository.Entry{
				{Rank: 1, UserID: "u1", Sport: "nba", Score: 950, Trades: 12},
				{Rank: 2, UserID: "u2", Sport: "nba", Score: 900, Trades: 9},
			},
		}
		mux := newMux(deps)

		Convey("When requesting the top entries", func() {
			req := httptest.NewRequest(http.MethodGet, "/leaderboard?sport=nba&limit=2", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, http.StatusOK)
			var entries []repository.Entry
			So(json.NewDecoder(rec.Body).Decode(&entries), ShouldBeNil)
			So(len(entries), ShouldEqual, 2)
			So(entries[0].UserID, ShouldEqual, "u1")
			So(entries[0].Rank, ShouldEqual, 1)
		})

		Convey("When the sport parameter is missing", func() {
			req := httptest.NewRequest(http.MethodGet, "/leaderboard?limit=5", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(rec.Body.String(), ShouldContainSubstring, "missing_sport")
		})

		Convey("When the limit is malformed", func() {
			req := httptest.NewRequest(http.MethodGet, "/leaderboard?sport=nba&limit=zero", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the limit exceeds the configured maximum", func() {
			req := httptest.NewRequest(http.MethodGet, "/leaderboard?sport=nba&limit=5000", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(rec.Body.String(), ShouldContainSubstring, "limit_exceeded")
		})
	})
}

func TestHandleGetRank(t *testing.T) {
	Convey("Given the rank endpoint", t, func() {
		deps := &mockDeps{
			rank: repository.RankInfo{
				UserID:            "u1",
				Rank:              4,
				Score:             720,
				Percentile:        88,
				TotalParticipants: 35,
				PointsToTop20:     0,
				Competing:         true,
			},
		}
		mux := newMux(deps)

		Convey("When requesting a competing user", func() {
			req := httptest.NewRequest(http.MethodGet, "/rank/u1?sport=nba", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, http.StatusOK)
			var info repository.RankInfo
			So(json.NewDecoder(rec.Body).Decode(&info), ShouldBeNil)
			So(info.Rank, ShouldEqual, 4)
			So(info.Percentile, ShouldEqual, 88)
			So(info.Competing, ShouldBeTrue)
		})

		Convey("When requesting a non-competing user", func() {
			deps.rank = repository.RankInfo{UserID: "ghost", PointsToTop20: 340}
			req := httptest.NewRequest(http.MethodGet, "/rank/ghost?sport=nba", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, http.StatusOK)
			var info repository.RankInfo
			So(json.NewDecoder(rec.Body).Decode(&info), ShouldBeNil)
			So(info.Competing, ShouldBeFalse)
			So(info.PointsToTop20, ShouldEqual, 340)
		})

		Convey("When the sport parameter is missing", func() {
			req := httptest.NewRequest(http.MethodGet, "/rank/u1", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestHandleSessions(t *testing.T) {
	Convey("Given the sessions endpoint", t, func() {
		deps := &mockDeps{
			session: ledger.Session{ID: "sess-1", UserID: "u1", TeamContext: "bulls", Active: true},
		}
		mux := newMux(deps)

		Convey("When starting a session", func() {
			req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"team_context":"bulls"}`))
			req.Header.Set("X-User-ID", "u1")
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, http.StatusCreated)
			var sess ledger.Session
			So(json.NewDecoder(rec.Body).Decode(&sess), ShouldBeNil)
			So(sess.ID, ShouldEqual, "sess-1")
			So(sess.Active, ShouldBeTrue)
		})

		Convey("When the team context is missing", func() {
			req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{}`))
			req.Header.Set("X-User-ID", "u1")
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the ledger store is down", func() {
			deps.sessionErr = fmt.Errorf("%w: disk", ledger.ErrStoreUnavailable)
			req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"team_context":"bulls"}`))
			req.Header.Set("X-User-ID", "u1")
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

func TestHandleGetActivities(t *testing.T) {
	Convey("Given the activities endpoint", t, func() {
		deps := &mockDeps{
			activities: []ledger.Activity{
				{UserID: "u1", Fingerprint: "abc", Kind: ledger.KindTrade, Sport: "nba", Score: 71},
			},
		}
		mux := newMux(deps)

		Convey("When the user has history", func() {
			req := httptest.NewRequest(http.MethodGet, "/activities?limit=10", nil)
			req.Header.Set("X-User-ID", "u1")
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, http.StatusOK)
			var acts []ledger.Activity
			So(json.NewDecoder(rec.Body).Decode(&acts), ShouldBeNil)
			So(len(acts), ShouldEqual, 1)
			So(acts[0].Kind, ShouldEqual, ledger.KindTrade)
		})

		Convey("When the user has no history", func() {
			deps.activities = nil
			req := httptest.NewRequest(http.MethodGet, "/activities", nil)
			req.Header.Set("X-User-ID", "u2")
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then an empty array is returned, not null", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(rec.Body.String()), ShouldEqual, "[]")
			})
		})

		Convey("When no identity header is supplied", func() {
			req := httptest.NewRequest(http.MethodGet, "/activities", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusUnauthorized)
		})
	})
}

func TestHealthAndStats(t *testing.T) {
	Convey("Given the operational endpoints", t, func() {
		mux := newMux(&mockDeps{})

		Convey("Then /healthz serves metrics exposition", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then /stats serves the service snapshot", func() {
			req := httptest.NewRequest(http.MethodGet, "/stats", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, http.StatusOK)
			var stats map[string]interface{}
			So(json.NewDecoder(rec.Body).Decode(&stats), ShouldBeNil)
			So(stats["started"], ShouldEqual, true)
		})
	})
}
