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
	"time"

	"github.com/golang-jwt/jwt/v5"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/softai/coursecore/internal/adapters/http/api"
	"github.com/softai/coursecore/internal/adapters/repository"
	service "github.com/softai/coursecore/internal/app"
	"github.com/softai/coursecore/internal/domain/certify"
	"github.com/softai/coursecore/internal/domain/identity"
	"github.com/softai/coursecore/internal/domain/model"
	"github.com/softai/coursecore/internal/domain/types"
)

const secret = "test-secret-test-secret-test-secret"

func bearer(t *testing.T, userID string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return "Bearer " + tok
}

// mockDeps lets each test decide the service outcome.
type mockDeps struct {
	calls     int
	scoreFn   func(caller identity.Identity, quizID string, answers map[string]int) (types.ScoreResponse, error)
	certifyFn func(caller identity.Identity, userID, courseID string) (certify.Result, error)
}

func (m *mockDeps) ScoreQuiz(_ context.Context, caller identity.Identity, quizID string, answers map[string]int) (types.ScoreResponse, error) {
	m.calls++
	return m.scoreFn(caller, quizID, answers)
}

func (m *mockDeps) GenerateCertificate(_ context.Context, caller identity.Identity, userID, courseID string) (certify.Result, error) {
	m.calls++
	return m.certifyFn(caller, userID, courseID)
}

type staticStats map[string]interface{}

func (s staticStats) GetStats() map[string]interface{} { return s }

func newMux(deps api.Dependencies, opts ...api.Option) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, identity.NewJWTVerifier(secret), staticStats{"started": true}, opts...).
		Register(context.Background(), mux)
	return mux
}

func do(mux http.Handler, method, path, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode(rec *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return out
}

func TestCORSAndMethods(t *testing.T) {
	Convey("Given the business endpoints", t, func() {
		deps := &mockDeps{}
		mux := newMux(deps)

		for _, path := range []string{"/score-quiz", "/generate-certificate"} {
			Convey("When a preflight reaches "+path, func() {
				rec := do(mux, http.MethodOptions, path, "", "")

				Convey("Then it gets 200, no body and the CORS headers", func() {
					So(rec.Code, ShouldEqual, http.StatusOK)
					So(rec.Body.Len(), ShouldEqual, 0)
					So(rec.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
					So(rec.Header().Get("Access-Control-Allow-Methods"), ShouldEqual, "POST, OPTIONS")
					So(rec.Header().Get("Access-Control-Allow-Headers"), ShouldEqual, "Content-Type, Authorization, X-Client-Info, Apikey")
				})
			})

			Convey("When "+path+" is called with GET", func() {
				rec := do(mux, http.MethodGet, path, bearer(t, "u1"), "")

				Convey("Then it is 405 with an Allow header", func() {
					So(rec.Code, ShouldEqual, http.StatusMethodNotAllowed)
					So(rec.Header().Get("Allow"), ShouldEqual, "POST, OPTIONS")
					So(rec.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
					So(deps.calls, ShouldEqual, 0)
				})
			})
		}
	})
}

func TestScoreQuizEndpoint(t *testing.T) {
	Convey("Given the score endpoint", t, func() {
		deps := &mockDeps{}
		mux := newMux(deps)
		auth := bearer(t, "u1")

		Convey("When no credential is sent", func() {
			rec := do(mux, http.MethodPost, "/score-quiz", "", `{}`)

			Convey("Then it is 401 before the body is looked at", func() {
				So(rec.Code, ShouldEqual, http.StatusUnauthorized)
				So(decode(rec)["code"], ShouldEqual, "unauthorized")
				So(rec.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
				So(deps.calls, ShouldEqual, 0)
			})
		})

		Convey("When the credential is invalid", func() {
			rec := do(mux, http.MethodPost, "/score-quiz", "Bearer nope", `{"quiz_id":"q","user_answers":{}}`)
			So(rec.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("When required fields are missing", func() {
			for _, body := range []string{`{}`, `{"quiz_id":"q"}`, `{"user_answers":{"0":1}}`, `{"quiz_id":"","user_answers":{}}`, `not json`, ``} {
				rec := do(mux, http.MethodPost, "/score-quiz", auth, body)
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(rec)["error"], ShouldEqual, "quiz_id and user_answers are required")
			}
			So(deps.calls, ShouldEqual, 0)
		})

		Convey("When the request is valid", func() {
			var gotCaller identity.Identity
			var gotAnswers map[string]int
			deps.scoreFn = func(caller identity.Identity, quizID string, answers map[string]int) (types.ScoreResponse, error) {
				gotCaller, gotAnswers = caller, answers
				return types.ScoreResponse{
					ScorePercent: 50, Passed: true, TotalPoints: 2, EarnedPoints: 1,
					PerQuestionResults: []types.QuestionResult{
						{QuestionID: "a", Correct: true, PointsEarned: 1, CorrectIndex: 2, UserAnswer: 2},
						{QuestionID: "b", Correct: false, CorrectIndex: 0, UserAnswer: -1},
					},
				}, nil
			}
			rec := do(mux, http.MethodPost, "/score-quiz", auth, `{"quiz_id":"quiz-1","user_answers":{"0":2}}`)

			Convey("Then the result is returned for the authenticated caller", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(gotCaller.UserID, ShouldEqual, "u1")
				So(gotAnswers, ShouldResemble, map[string]int{"0": 2})

				body := decode(rec)
				So(body["score_percent"], ShouldEqual, 50.0)
				So(body["passed"], ShouldEqual, true)
				results := body["per_question_results"].([]any)
				So(results, ShouldHaveLength, 2)
				So(results[1].(map[string]any)["user_answer"], ShouldEqual, -1.0)
				So(rec.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
			})
		})

		Convey("When some answers are null", func() {
			var gotAnswers map[string]int
			deps.scoreFn = func(_ identity.Identity, _ string, answers map[string]int) (types.ScoreResponse, error) {
				gotAnswers = answers
				return types.ScoreResponse{}, nil
			}
			rec := do(mux, http.MethodPost, "/score-quiz", auth, `{"quiz_id":"quiz-1","user_answers":{"0":null,"1":3}}`)

			Convey("Then the null answers are dropped before scoring", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(gotAnswers, ShouldResemble, map[string]int{"1": 3})
			})
		})

		Convey("When the quiz does not exist", func() {
			deps.scoreFn = func(identity.Identity, string, map[string]int) (types.ScoreResponse, error) {
				return types.ScoreResponse{}, fmt.Errorf("%w: quiz-9", service.ErrQuizNotFound)
			}
			rec := do(mux, http.MethodPost, "/score-quiz", auth, `{"quiz_id":"quiz-9","user_answers":{}}`)

			Convey("Then it is 404", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
				So(decode(rec)["error"], ShouldEqual, "Quiz not found")
			})
		})

		Convey("When questions cannot be fetched", func() {
			deps.scoreFn = func(identity.Identity, string, map[string]int) (types.ScoreResponse, error) {
				return types.ScoreResponse{}, fmt.Errorf("%w: boom", service.ErrQuestionFetchFailed)
			}
			rec := do(mux, http.MethodPost, "/score-quiz", auth, `{"quiz_id":"quiz-1","user_answers":{}}`)

			Convey("Then it is 500", func() {
				So(rec.Code, ShouldEqual, http.StatusInternalServerError)
				So(decode(rec)["error"], ShouldEqual, "Failed to fetch questions")
			})
		})
	})
}

func TestGenerateCertificateEndpoint(t *testing.T) {
	Convey("Given the certificate endpoint", t, func() {
		deps := &mockDeps{}
		mux := newMux(deps)
		auth := bearer(t, "u1")
		body := `{"user_id":"u1","course_id":"c1"}`

		Convey("When fields are missing", func() {
			rec := do(mux, http.MethodPost, "/generate-certificate", auth, `{"user_id":"u1"}`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(rec)["error"], ShouldEqual, "user_id and course_id are required")
		})

		Convey("When a certificate is created", func() {
			deps.certifyFn = func(caller identity.Identity, userID, courseID string) (certify.Result, error) {
				c := model.Certificate{ID: "id-1", UserID: userID, CourseID: courseID, Code: "SOFTAI-1A2B3C4D"}
				return certify.Result{Code: c.Code, Certificate: c, Created: true}, nil
			}
			rec := do(mux, http.MethodPost, "/generate-certificate", auth, body)

			Convey("Then the new certificate is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				out := decode(rec)
				So(out["message"], ShouldEqual, "Certificate generated successfully")
				So(out["certificate_id"], ShouldEqual, "SOFTAI-1A2B3C4D")
				So(out["certificate"].(map[string]any)["course_id"], ShouldEqual, "c1")
			})
		})

		Convey("When the certificate already exists", func() {
			deps.certifyFn = func(identity.Identity, string, string) (certify.Result, error) {
				return certify.Result{Code: "SOFTAI-OLD00000", Created: false}, nil
			}
			rec := do(mux, http.MethodPost, "/generate-certificate", auth, body)

			Convey("Then only the existing code is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				out := decode(rec)
				So(out["message"], ShouldEqual, "Certificate already exists")
				So(out["certificate_id"], ShouldEqual, "SOFTAI-OLD00000")
				_, hasCert := out["certificate"]
				So(hasCert, ShouldBeFalse)
			})
		})

		Convey("When the caller targets someone else", func() {
			deps.certifyFn = func(identity.Identity, string, string) (certify.Result, error) {
				return certify.Result{}, certify.ErrForbidden
			}
			rec := do(mux, http.MethodPost, "/generate-certificate", auth, body)

			Convey("Then it is 403", func() {
				So(rec.Code, ShouldEqual, http.StatusForbidden)
				So(decode(rec)["error"], ShouldEqual, "Unauthorized to generate certificate for another user")
			})
		})

		Convey("When the course is not complete", func() {
			pct := 40
			deps.certifyFn = func(identity.Identity, string, string) (certify.Result, error) {
				return certify.Result{}, &certify.IncompleteError{ProgressPercent: &pct}
			}
			rec := do(mux, http.MethodPost, "/generate-certificate", auth, body)

			Convey("Then it is 400 with the progress", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				out := decode(rec)
				So(out["error"], ShouldEqual, "Course not completed yet")
				So(out["code"], ShouldEqual, "course_not_completed")
				So(out["progress_percent"], ShouldEqual, 40.0)
			})
		})

		Convey("When the store fails", func() {
			deps.certifyFn = func(identity.Identity, string, string) (certify.Result, error) {
				return certify.Result{}, fmt.Errorf("%w: %w", certify.ErrCompletionCheckFailed, errors.New("db down"))
			}
			rec := do(mux, http.MethodPost, "/generate-certificate", auth, body)

			Convey("Then it is 500 without detail", func() {
				So(rec.Code, ShouldEqual, http.StatusInternalServerError)
				So(decode(rec)["error"], ShouldEqual, "Internal server error")
			})
		})
	})
}

func TestEndToEnd(t *testing.T) {
	Convey("Given the API over the real service and a memory store", t, func() {
		mem := repository.NewMemory()
		mem.PutQuiz(model.Quiz{ID: "quiz-1", PassScorePercent: 50},
			model.Question{ID: "a", Order: 1, CorrectIndex: 2, Points: 1},
			model.Question{ID: "b", Order: 2, CorrectIndex: 0, Points: 1})
		mem.SetProgress("u1", "c1", 100)
		mux := newMux(service.New(mem, mem))
		auth := bearer(t, "u1")

		Convey("When the worked example is scored", func() {
			rec := do(mux, http.MethodPost, "/score-quiz", auth, `{"quiz_id":"quiz-1","user_answers":{"0":2}}`)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(decode(rec)["score_percent"], ShouldEqual, 50.0)
			So(decode(rec)["passed"], ShouldEqual, true)
		})

		Convey("When the answer for a question keyed 0 is null", func() {
			rec := do(mux, http.MethodPost, "/score-quiz", auth, `{"quiz_id":"quiz-1","user_answers":{"1":null}}`)

			Convey("Then it is no selection and never matches correct_index 0", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				body := decode(rec)
				So(body["score_percent"], ShouldEqual, 0.0)
				So(body["earned_points"], ShouldEqual, 0.0)
				So(body["passed"], ShouldEqual, false)
				second := body["per_question_results"].([]any)[1].(map[string]any)
				So(second["correct"], ShouldEqual, false)
				So(second["points_earned"], ShouldEqual, 0.0)
				So(second["user_answer"], ShouldEqual, -1.0)
			})
		})

		Convey("When a certificate is requested twice", func() {
			first := decode(do(mux, http.MethodPost, "/generate-certificate", auth, `{"user_id":"u1","course_id":"c1"}`))
			second := decode(do(mux, http.MethodPost, "/generate-certificate", auth, `{"user_id":"u1","course_id":"c1"}`))

			Convey("Then both report the same code and one row exists", func() {
				So(first["message"], ShouldEqual, "Certificate generated successfully")
				So(second["message"], ShouldEqual, "Certificate already exists")
				So(second["certificate_id"], ShouldEqual, first["certificate_id"])
				So(mem.CertificateCount(), ShouldEqual, 1)
			})
		})
	})
}

func TestRateLimitAndAmbientEndpoints(t *testing.T) {
	Convey("Given a server with a strict rate limiter", t, func() {
		deps := &mockDeps{scoreFn: func(identity.Identity, string, map[string]int) (types.ScoreResponse, error) {
			return types.ScoreResponse{}, nil
		}}
		mux := newMux(deps, api.WithRateLimiter(api.NewRateLimiter(0, 1)))
		auth := bearer(t, "u1")
		body := `{"quiz_id":"q","user_answers":{}}`

		Convey("When the same client calls twice", func() {
			first := do(mux, http.MethodPost, "/score-quiz", auth, body)
			second := do(mux, http.MethodPost, "/score-quiz", auth, body)

			Convey("Then the second call is rejected with CORS headers", func() {
				So(first.Code, ShouldEqual, http.StatusOK)
				So(second.Code, ShouldEqual, http.StatusTooManyRequests)
				So(decode(second)["code"], ShouldEqual, "rate_limited")
				So(second.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
				So(deps.calls, ShouldEqual, 1)
			})
		})

		Convey("When a client rotates X-Forwarded-For", func() {
			codes := make([]int, 0, 3)
			for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
				req := httptest.NewRequest(http.MethodPost, "/score-quiz", strings.NewReader(body))
				req.Header.Set("Authorization", auth)
				req.Header.Set("X-Forwarded-For", ip)
				rec := httptest.NewRecorder()
				mux.ServeHTTP(rec, req)
				codes = append(codes, rec.Code)
			}

			Convey("Then the bucket is keyed on the peer address and is not reset", func() {
				So(codes, ShouldResemble, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests})
				So(deps.calls, ShouldEqual, 1)
			})
		})

		Convey("When health is checked", func() {
			rec := do(mux, http.MethodGet, "/healthz", "", "")

			Convey("Then it reports ok with service stats", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				out := decode(rec)
				So(out["status"], ShouldEqual, "ok")
				So(out["service"].(map[string]any)["started"], ShouldEqual, true)
			})
		})

		Convey("When metrics are scraped", func() {
			_ = do(mux, http.MethodPost, "/score-quiz", auth, body)
			rec := do(mux, http.MethodGet, "/metrics", "", "")

			Convey("Then the registry is exposed", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "softai_coursecore_")
			})
		})
	})
}

func TestRateLimitBehindTrustedProxy(t *testing.T) {
	Convey("Given a limiter that trusts the forwarding proxy", t, func() {
		deps := &mockDeps{scoreFn: func(identity.Identity, string, map[string]int) (types.ScoreResponse, error) {
			return types.ScoreResponse{}, nil
		}}
		mux := newMux(deps, api.WithRateLimiter(api.NewRateLimiter(0, 1, api.WithTrustedProxy(true))))
		auth := bearer(t, "u1")
		post := func(ip string) int {
			req := httptest.NewRequest(http.MethodPost, "/score-quiz", strings.NewReader(`{"quiz_id":"q","user_answers":{}}`))
			req.Header.Set("Authorization", auth)
			req.Header.Set("X-Forwarded-For", ip)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			return rec.Code
		}

		Convey("Then each forwarded client gets its own bucket", func() {
			So(post("203.0.113.1"), ShouldEqual, http.StatusOK)
			So(post("203.0.113.1"), ShouldEqual, http.StatusTooManyRequests)
			So(post("203.0.113.2"), ShouldEqual, http.StatusOK)
		})
	})
}

func TestWrapKind(t *testing.T) {
	Convey("Given an operation-tagged error", t, func() {
		cause := errors.New("unexpected EOF")
		err := api.WrapKind("api.score_quiz", api.ErrBadRequest, cause)

		Convey("Then it matches both its kind and its cause", func() {
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.score_quiz: bad request: unexpected EOF")
		})

		Convey("Then a bare kind carries no cause", func() {
			err := api.NewKind("api.score_quiz", api.ErrRateLimited)
			So(errors.Is(err, api.ErrRateLimited), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.score_quiz: rate limited")
		})
	})
}
