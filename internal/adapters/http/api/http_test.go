package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/bananas/internal/adapters/http/api"
	repository "github.com/okian/bananas/internal/adapters/repository"
	service "github.com/okian/bananas/internal/app"
	"github.com/okian/bananas/internal/domain/tally"
	"github.com/okian/bananas/internal/domain/types"
	"github.com/okian/bananas/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// failingDeps answers every call with a fixed error.
type failingDeps struct {
	err error
}

func (f *failingDeps) IncrementOnce(context.Context, string, string, int64) (types.IncrementResult, bool, error) {
	return types.IncrementResult{}, false, f.err
}

func (f *failingDeps) Stats(context.Context, string) (types.Stats, error) {
	return types.Stats{}, f.err
}

func (f *failingDeps) Leaderboard(context.Context, int) ([]types.Entry, error) {
	return nil, f.err
}

func (f *failingDeps) Health(context.Context) error { return f.err }

func (f *failingDeps) Info(context.Context) map[string]interface{} {
	return map[string]interface{}{"started": false}
}

func newMux(deps api.Dependencies, opts ...api.Option) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, opts...).Register(mux)
	return mux
}

func newServiceMux() *http.ServeMux {
	svc := service.New(service.WithStore(repository.NewMemoryStore()))
	So(svc.Start(context.Background()), ShouldBeNil)
	return newMux(svc, api.WithMaxLimit(50))
}

func do(mux *http.ServeMux, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func TestIncrement(t *testing.T) {
	Convey("Given a server backed by a fresh store", t, func() {
		mux := newServiceMux()

		Convey("When zoe posts three times without an amount", func() {
			var w *httptest.ResponseRecorder
			for i := 0; i < 3; i++ {
				w = do(mux, http.MethodPost, "/incr", `{"userId":"zoe"}`)
				So(w.Code, ShouldEqual, http.StatusOK)
			}

			Convey("Then the last response carries all three totals", func() {
				body := decode(w)
				So(body["total"], ShouldEqual, float64(3))
				So(body["userTotal"], ShouldEqual, float64(3))
				So(body["newScore"], ShouldEqual, float64(3))
				So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
			})

			Convey("Then stats and leaderboard agree", func() {
				st := decode(do(mux, http.MethodGet, "/stats?userId=zoe", ""))
				So(st["total"], ShouldEqual, float64(3))
				So(st["userTotal"], ShouldEqual, float64(3))

				lb := do(mux, http.MethodGet, "/leaderboard", "")
				So(lb.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(lb.Body.String()), ShouldEqual, `{"rows":[{"userId":"zoe","score":3}]}`)
			})
		})

		Convey("When amy posts five and bo posts two", func() {
			So(do(mux, http.MethodPost, "/incr", `{"userId":"amy","amount":5}`).Code, ShouldEqual, http.StatusOK)
			w := do(mux, http.MethodPost, "/incr", `{"userId":"bo","amount":2}`)

			Convey("Then the global total is seven and amy leads", func() {
				So(decode(w)["total"], ShouldEqual, float64(7))
				lb := do(mux, http.MethodGet, "/leaderboard?limit=20", "")
				So(strings.TrimSpace(lb.Body.String()), ShouldEqual,
					`{"rows":[{"userId":"amy","score":5},{"userId":"bo","score":2}]}`)
			})
		})

		for _, body := range []string{`{"userId":""}`, `{}`, `{"userId":"   "}`, `{"userId":42}`, ``} {
			Convey(fmt.Sprintf("When the body is %q", body), func() {
				w := do(mux, http.MethodPost, "/incr", body)

				Convey("Then it is rejected with userId required and nothing changes", func() {
					So(w.Code, ShouldEqual, http.StatusBadRequest)
					So(decode(w)["error"], ShouldEqual, "userId required")
					st := decode(do(mux, http.MethodGet, "/stats?userId=anyone", ""))
					So(st["total"], ShouldEqual, float64(0))
				})
			})
		}

		Convey("When the body is not JSON", func() {
			w := do(mux, http.MethodPost, "/incr", `{"userId":`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w)["error"], ShouldContainSubstring, "invalid JSON body")
			})
		})

		Convey("When amounts are odd values", func() {
			for _, amount := range []string{`"banana"`, `null`, `0`, `"3"`, `2.9`, `true`} {
				w := do(mux, http.MethodPost, "/incr", `{"userId":"kim","amount":`+amount+`}`)
				So(w.Code, ShouldEqual, http.StatusOK)
			}

			Convey("Then they are coerced", func() {
				// banana, null, 0 and true count one each; "3" is three; 2.9 is two.
				st := decode(do(mux, http.MethodGet, "/stats?userId=kim", ""))
				So(st["userTotal"], ShouldEqual, float64(9))
			})
		})

		Convey("When one user is spelled differently", func() {
			do(mux, http.MethodPost, "/incr", `{"userId":"Alice "}`)
			do(mux, http.MethodPost, "/incr", `{"userId":"alice"}`)

			Convey("Then a single entry accumulates", func() {
				lb := do(mux, http.MethodGet, "/leaderboard", "")
				So(strings.TrimSpace(lb.Body.String()), ShouldEqual, `{"rows":[{"userId":"alice","score":2}]}`)
				st := decode(do(mux, http.MethodGet, "/stats?userId=ALICE", ""))
				So(st["userTotal"], ShouldEqual, float64(2))
			})
		})

		Convey("When a request is retried with the same idempotency key", func() {
			first := do(mux, http.MethodPost, "/incr", `{"userId":"zoe","amount":4}`, api.IdempotencyKeyHeader, "abc")
			second := do(mux, http.MethodPost, "/incr", `{"userId":"zoe","amount":4}`, api.IdempotencyKeyHeader, "abc")

			Convey("Then the first result is replayed", func() {
				So(first.Code, ShouldEqual, http.StatusOK)
				So(second.Code, ShouldEqual, http.StatusOK)
				So(second.Body.String(), ShouldEqual, first.Body.String())
				So(second.Header().Get(api.ReplayedHeader), ShouldEqual, "true")
				So(first.Header().Get(api.ReplayedHeader), ShouldEqual, "")
				st := decode(do(mux, http.MethodGet, "/stats?userId=zoe", ""))
				So(st["userTotal"], ShouldEqual, float64(4))
			})
		})

		Convey("When the wrong method is used", func() {
			Convey("Then business routes answer 405", func() {
				So(do(mux, http.MethodGet, "/incr", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
				So(do(mux, http.MethodPost, "/stats", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
				w := do(mux, http.MethodDelete, "/leaderboard", "")
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
				So(w.Header().Get("Allow"), ShouldEqual, http.MethodGet)
			})
		})
	})
}

func TestStats(t *testing.T) {
	Convey("Given a server with some bananas eaten", t, func() {
		mux := newServiceMux()
		do(mux, http.MethodPost, "/incr", `{"userId":"zoe","amount":3}`)

		Convey("When stats are read without a userId", func() {
			w := do(mux, http.MethodGet, "/stats", "")

			Convey("Then zeros come back", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, `{"total":0,"userTotal":0}`)
			})
		})

		Convey("When stats are read for an unknown user", func() {
			st := decode(do(mux, http.MethodGet, "/stats?userId=nobody", ""))

			Convey("Then the user total is zero and the global total is real", func() {
				So(st["total"], ShouldEqual, float64(3))
				So(st["userTotal"], ShouldEqual, float64(0))
			})
		})
	})
}

func TestLeaderboard(t *testing.T) {
	Convey("Given a server with several users", t, func() {
		mux := newServiceMux()
		for i := 1; i <= 5; i++ {
			do(mux, http.MethodPost, "/incr", fmt.Sprintf(`{"userId":"u%d","amount":%d}`, i, i))
		}

		Convey("When a limit is given", func() {
			w := do(mux, http.MethodGet, "/leaderboard?limit=2", "")

			Convey("Then the top entries come back in descending order", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual,
					`{"rows":[{"userId":"u5","score":5},{"userId":"u4","score":4}]}`)
			})
		})

		for _, limit := range []string{"0", "-1", "abc", "1.5"} {
			Convey("When the limit is "+limit, func() {
				w := do(mux, http.MethodGet, "/leaderboard?limit="+limit, "")

				Convey("Then it is a bad request", func() {
					So(w.Code, ShouldEqual, http.StatusBadRequest)
					So(decode(w)["error"], ShouldContainSubstring, "limit")
				})
			})
		}

		Convey("When the limit exceeds the maximum", func() {
			w := do(mux, http.MethodGet, "/leaderboard?limit=51", "")

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w)["error"], ShouldEqual, "limit must not exceed 50")
			})
		})
	})

	Convey("Given an empty store", t, func() {
		mux := newServiceMux()

		Convey("Then the leaderboard has no rows but is still a list", func() {
			w := do(mux, http.MethodGet, "/leaderboard", "")
			So(strings.TrimSpace(w.Body.String()), ShouldEqual, `{"rows":[]}`)
		})
	})
}

func TestFailures(t *testing.T) {
	Convey("Given dependencies whose store is down", t, func() {
		storeErr := fmt.Errorf("%w: connection refused", tally.ErrStoreUnavailable)
		mux := newMux(&failingDeps{err: storeErr})

		Convey("Then reads and writes answer 500 with the message", func() {
			for _, tc := range []struct{ method, target, body string }{
				{http.MethodPost, "/incr", `{"userId":"zoe"}`},
				{http.MethodGet, "/stats?userId=zoe", ""},
				{http.MethodGet, "/leaderboard", ""},
			} {
				w := do(mux, tc.method, tc.target, tc.body)
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(decode(w)["error"], ShouldEqual, storeErr.Error())
			}
		})

		Convey("Then health reports unavailable", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			body := decode(w)
			So(body["status"], ShouldEqual, "unavailable")
			So(body["error"], ShouldEqual, storeErr.Error())
		})
	})

	Convey("Given a failure with an empty message", t, func() {
		mux := newMux(&failingDeps{err: errors.New("")})

		Convey("Then the client sees fail", func() {
			w := do(mux, http.MethodPost, "/incr", `{"userId":"zoe"}`)
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(decode(w)["error"], ShouldEqual, "fail")
		})
	})

	Convey("Given a duplicate idempotency key still in flight", t, func() {
		mux := newMux(&failingDeps{err: tally.ErrInFlight})

		Convey("Then the request conflicts", func() {
			w := do(mux, http.MethodPost, "/incr", `{"userId":"zoe"}`, api.IdempotencyKeyHeader, "k")
			So(w.Code, ShouldEqual, http.StatusConflict)
		})
	})
}

func TestOperationalRoutes(t *testing.T) {
	Convey("Given a running server", t, func() {
		mux := newServiceMux()

		Convey("Then healthz is ok", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(strings.TrimSpace(w.Body.String()), ShouldEqual, `{"status":"ok"}`)
		})

		Convey("Then info describes the service", func() {
			do(mux, http.MethodPost, "/incr", `{"userId":"zoe"}`)
			info := decode(do(mux, http.MethodGet, "/info", ""))
			So(info["started"], ShouldEqual, true)
			So(info["leaderboardMembers"], ShouldEqual, float64(1))
		})

		Convey("Then metrics are exposed", func() {
			do(mux, http.MethodPost, "/incr", `{"userId":"zoe"}`)
			w := do(mux, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "bananas_tally_increments_total")
		})

		Convey("Then a request id is generated", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(len(w.Header().Get(api.RequestIDHeader)), ShouldEqual, 36)
		})

		Convey("Then a client request id is echoed", func() {
			w := do(mux, http.MethodGet, "/healthz", "", api.RequestIDHeader, "req-1")
			So(w.Header().Get(api.RequestIDHeader), ShouldEqual, "req-1")
		})

		Convey("Then unknown routes are not found", func() {
			So(do(mux, http.MethodGet, "/unknown", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestOpError(t *testing.T) {
	Convey("Given op errors", t, func() {
		cause := errors.New("cause")

		Convey("Then kinds and causes are both matchable", func() {
			err := api.WrapKind("op", api.ErrBadRequest, cause)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "op: bad request: cause")
		})

		Convey("Then the client message prefers the cause", func() {
			var opErr *api.OpError
			So(errors.As(api.WrapKind("op", api.ErrBadRequest, cause), &opErr), ShouldBeTrue)
			So(opErr.Message(), ShouldEqual, "cause")
			So(errors.As(api.NewKind("op", api.ErrConflict), &opErr), ShouldBeTrue)
			So(opErr.Message(), ShouldEqual, "conflict")
		})

		Convey("Then wrapping nil stays nil", func() {
			So(api.Wrap("op", nil), ShouldBeNil)
			So(api.Wrap("op", cause).Error(), ShouldEqual, "op: cause")
		})
	})
}
