package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tally/internal/adapters/http/api"
	"github.com/okian/tally/internal/adapters/tallyclient"
	service "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/domain/ballot"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/export"
	"github.com/okian/tally/pkg/logger"
)

// stubSource is an in-memory tally service.
type stubSource struct {
	finalized []model.Vote
	pending   model.PendingSet
	results   map[string]int
	submitErr error
	fetchErr  error
	minedFor  string
}

func (s *stubSource) FetchRoster(context.Context) (model.Roster, error) {
	return model.NewRoster(map[model.Role][]string{
		model.RoleMayor:     {"X", "Y"},
		model.RoleViceMayor: {"Z"},
		model.RoleCouncilor: {"C1", "C2"},
	}), nil
}

func (s *stubSource) FetchFinalized(context.Context) ([]model.Vote, error) {
	return s.finalized, s.fetchErr
}

func (s *stubSource) FetchPending(context.Context) (model.PendingSet, error) {
	return s.pending, s.fetchErr
}

func (s *stubSource) FetchResults(context.Context) (map[string]int, error) {
	return s.results, s.fetchErr
}

func (s *stubSource) FetchResultsByPrecinct(context.Context) (map[string]map[string]int, error) {
	return map[string]map[string]int{"A": {"X": 1}}, s.fetchErr
}

func (s *stubSource) SubmitVote(_ context.Context, v model.Vote) (string, error) {
	if s.submitErr != nil {
		return "", s.submitErr
	}
	s.pending.Add(v.Precinct, v)
	return "Vote recorded", nil
}

func (s *stubSource) Mine(_ context.Context, precinct string) (string, error) {
	s.minedFor = precinct
	return "Mined 1 block(s)", nil
}

func vote(id, precinct, mayor string) model.Vote {
	return ballot.Build(id, precinct,
		map[model.Role]string{model.RoleMayor: mayor, model.RoleViceMayor: "Z"},
		map[model.Role][]string{model.RoleCouncilor: {"C1"}},
	)
}

func newMux(src *stubSource) (*http.ServeMux, *service.Service) {
	svc := service.New(src, service.WithLogger(logger.Discard()))
	if err := svc.Start(context.Background()); err != nil {
		panic(err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc, api.WithNoticeTTL(3*time.Second)).Register(context.Background(), mux)
	return mux, svc
}

func do(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func notice(w *httptest.ResponseRecorder) api.Notice {
	var n api.Notice
	_ = json.Unmarshal(w.Body.Bytes(), &n)
	return n
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		src := &stubSource{
			finalized: []model.Vote{vote("v1", "A", "Y"), vote("v2", "A", "X"), vote("v3", "B", "Y")},
			results:   map[string]int{},
		}
		src.pending.Add("C", vote("v4", "C", "X"))
		mux, svc := newMux(src)

		Convey("Then health serves metrics", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then stats report the roster source", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"rosterSource":"service"`)
		})

		Convey("Then the roster is listed in display order", func() {
			w := do(mux, http.MethodGet, "/roster", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var roles []struct {
				Role       string   `json:"role"`
				Policy     string   `json:"policy"`
				Candidates []string `json:"candidates"`
			}
			So(json.Unmarshal(w.Body.Bytes(), &roles), ShouldBeNil)
			So(len(roles), ShouldEqual, 3)
			So(roles[0].Role, ShouldEqual, "Mayor")
			So(roles[2].Policy, ShouldEqual, "multi")
		})

		Convey("When nothing has been refreshed", func() {
			w := do(mux, http.MethodGet, "/precincts", "")

			Convey("Then a not-loaded notice is returned", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
				n := notice(w)
				So(n.Code, ShouldEqual, "not_loaded")
				So(n.DismissAfterMs, ShouldEqual, 3000)
			})
		})

		Convey("When the view is refreshed", func() {
			w := do(mux, http.MethodPost, "/refresh", "")
			So(w.Code, ShouldEqual, http.StatusOK)

			Convey("Then precinct cards are served in order", func() {
				w := do(mux, http.MethodGet, "/precincts", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var resp struct {
					Empty     bool `json:"empty"`
					Precincts []struct {
						Precinct string `json:"precinct"`
						Mined    int    `json:"mined"`
						Pending  int    `json:"pending"`
					} `json:"precincts"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Empty, ShouldBeFalse)
				So(len(resp.Precincts), ShouldEqual, 3)
				So(resp.Precincts[0].Precinct, ShouldEqual, "A")
				So(resp.Precincts[0].Mined, ShouldEqual, 2)
				So(resp.Precincts[2].Pending, ShouldEqual, 1)
			})

			Convey("Then one precinct can be opened", func() {
				w := do(mux, http.MethodGet, "/precincts/A", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"precinct":"A"`)

				w = do(mux, http.MethodGet, "/precincts/Nowhere", "")
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})

			Convey("Then the leaderboard is roster-complete and ordered", func() {
				w := do(mux, http.MethodGet, "/leaderboard", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var lb model.Leaderboard
				So(json.Unmarshal(w.Body.Bytes(), &lb), ShouldBeNil)
				mayor, ok := lb.For(model.RoleMayor)
				So(ok, ShouldBeTrue)
				So(mayor.Standings, ShouldResemble, []model.Standing{{Candidate: "Y", Votes: 2}, {Candidate: "X", Votes: 1}})
			})

			Convey("Then a precinct leaderboard counts only that precinct", func() {
				w := do(mux, http.MethodGet, "/leaderboard?precinct=B", "")
				var lb model.Leaderboard
				So(json.Unmarshal(w.Body.Bytes(), &lb), ShouldBeNil)
				mayor, _ := lb.For(model.RoleMayor)
				So(mayor.Standings[0], ShouldResemble, model.Standing{Candidate: "Y", Votes: 1})
				So(mayor.Standings[1], ShouldResemble, model.Standing{Candidate: "X", Votes: 0})
			})

			Convey("Then exports are served from the view", func() {
				w := do(mux, http.MethodGet, "/export/pages?precinct=A", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldStartWith, "Barangay: A\n")

				w = do(mux, http.MethodGet, "/export/print", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldStartWith, "text/html")
				So(w.Body.String(), ShouldNotContainSubstring, "v1")

				w = do(mux, http.MethodGet, "/export/archive", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				digest, err := export.ParseDigest(w.Header().Get(api.DigestHeader))
				So(err, ShouldBeNil)
				a, err := export.ReadArchive(w.Body, digest)
				So(err, ShouldBeNil)
				So(len(a.Groups), ShouldEqual, 3)
			})

			Convey("Then an unknown format is a bad request", func() {
				w := do(mux, http.MethodGet, "/export/print?format=pdf", "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When a refresh fails upstream", func() {
			src.fetchErr = &tallyclient.TransportError{Endpoint: "/pending", Message: "connection refused"}
			w := do(mux, http.MethodPost, "/refresh", "")

			So(w.Code, ShouldEqual, http.StatusBadGateway)
			So(notice(w).Code, ShouldEqual, "upstream_unavailable")
			_, ok := svc.View()
			So(ok, ShouldBeFalse)
		})

		Convey("When a route is called with the wrong method", func() {
			w := do(mux, http.MethodGet, "/vote", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			So(w.Header().Get("Allow"), ShouldEqual, http.MethodPost)
		})
	})
}

func TestPrecinctNames(t *testing.T) {
	Convey("Given a precinct whose name needs escaping", t, func() {
		src := &stubSource{
			finalized: []model.Vote{vote("v1", "Zone 5%", "X"), vote("v2", "B", "Y")},
			results:   map[string]int{},
		}
		mux, _ := newMux(src)
		So(do(mux, http.MethodPost, "/refresh", "").Code, ShouldEqual, http.StatusOK)

		Convey("When it is opened by its escaped path", func() {
			w := do(mux, http.MethodGet, "/precincts/Zone%205%25", "")

			Convey("Then the name is decoded once", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var resp struct {
					Precinct    string            `json:"precinct"`
					Leaderboard model.Leaderboard `json:"leaderboard"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Precinct, ShouldEqual, "Zone 5%")
				mayor, ok := resp.Leaderboard.For(model.RoleMayor)
				So(ok, ShouldBeTrue)
				So(mayor.Standings[0], ShouldResemble, model.Standing{Candidate: "X", Votes: 1})
			})
		})

		Convey("When its leaderboard is requested by query", func() {
			w := do(mux, http.MethodGet, "/leaderboard?precinct=Zone+5%25", "")

			Convey("Then only that precinct is counted", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var lb model.Leaderboard
				So(json.Unmarshal(w.Body.Bytes(), &lb), ShouldBeNil)
				mayor, _ := lb.For(model.RoleMayor)
				So(mayor.Standings, ShouldResemble, []model.Standing{{Candidate: "X", Votes: 1}, {Candidate: "Y", Votes: 0}})
			})
		})
	})
}

func TestActions(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		src := &stubSource{results: map[string]int{"X": 1, "Z": 1, "C1": 1}}
		mux, svc := newMux(src)

		Convey("When a ballot misses a single-select role", func() {
			w := do(mux, http.MethodPost, "/vote", `{"voter_id":"v1","barangay":"A","candidates":{"Vice Mayor":"Z"}}`)

			Convey("Then a validation notice names the role", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				n := notice(w)
				So(n.Code, ShouldEqual, "validation")
				So(n.Message, ShouldContainSubstring, "Mayor")
			})
		})

		Convey("When the body is not JSON", func() {
			w := do(mux, http.MethodPost, "/vote", `not json`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(notice(w).Code, ShouldEqual, "bad_request")
		})

		Convey("When a valid ballot is posted", func() {
			w := do(mux, http.MethodPost, "/vote", `{"voter_id":"v1","barangay":"A","candidates":{"Mayor":"X","Vice Mayor":"Z","Councilor":["C1"]}}`)

			Convey("Then it is accepted and the view refreshed", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(w.Body.String(), ShouldContainSubstring, "Vote recorded")
				v, ok := svc.View()
				So(ok, ShouldBeTrue)
				So(v.PendingVotes, ShouldEqual, 1)
			})

			Convey("And verification agrees with the service", func() {
				w := do(mux, http.MethodGet, "/verify", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"consistent":true`)
			})
		})

		Convey("When the service rejects a ballot", func() {
			src.submitErr = &tallyclient.TransportError{Endpoint: "/vote", Status: http.StatusBadRequest, Message: "Voter has already voted"}
			w := do(mux, http.MethodPost, "/vote", `{"voter_id":"v1","barangay":"A","candidates":{"Mayor":"X","Vice Mayor":"Z"}}`)

			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			n := notice(w)
			So(n.Code, ShouldEqual, "rejected")
			So(n.Message, ShouldContainSubstring, "Voter has already voted")
		})

		Convey("When mining one precinct", func() {
			w := do(mux, http.MethodPost, "/mine", `{"barangay":"A"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(src.minedFor, ShouldEqual, "A")
		})

		Convey("When mining without a body", func() {
			w := do(mux, http.MethodPost, "/mine", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(src.minedFor, ShouldEqual, "")
		})

		Convey("When asking for server results", func() {
			w := do(mux, http.MethodGet, "/results", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"candidate":"X","votes":1`)

			w = do(mux, http.MethodGet, "/results?by=precinct", "")
			So(w.Code, ShouldEqual, http.StatusOK)

			w = do(mux, http.MethodGet, "/results?by=role", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestErrors(t *testing.T) {
	Convey("Given API error helpers", t, func() {
		Convey("Then kinds and causes are both visible", func() {
			cause := errors.New("eof")
			err := api.WrapKind("api.op", api.ErrBadRequest, cause)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: eof")
		})

		Convey("Then Wrap keeps nil as nil", func() {
			So(api.Wrap("api.op", nil), ShouldBeNil)
			So(api.NewKind("api.op", api.ErrNotFound).Error(), ShouldEqual, "api.op: not found")
		})
	})
}
