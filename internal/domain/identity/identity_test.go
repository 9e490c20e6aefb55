package identity_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/softai/coursecore/internal/domain/identity"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func sign(t *testing.T, method jwt.SigningMethod, key any, c jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, c).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestParseBearer(t *testing.T) {
	Convey("Given Authorization header values", t, func() {
		Convey("When the header is absent", func() {
			_, err := identity.ParseBearer("")

			Convey("Then it is a missing credential", func() {
				So(errors.Is(err, identity.ErrMissingCredential), ShouldBeTrue)
			})
		})

		Convey("When the scheme is not bearer", func() {
			_, err := identity.ParseBearer("Basic dXNlcjpwYXNz")

			Convey("Then it is an invalid credential", func() {
				So(errors.Is(err, identity.ErrInvalidCredential), ShouldBeTrue)
			})
		})

		Convey("When the bearer token is empty", func() {
			_, err := identity.ParseBearer("Bearer   ")

			Convey("Then it is an invalid credential", func() {
				So(errors.Is(err, identity.ErrInvalidCredential), ShouldBeTrue)
			})
		})

		Convey("When a bearer token is present", func() {
			token, err := identity.ParseBearer("bearer abc.def.ghi")

			Convey("Then the token is returned", func() {
				So(err, ShouldBeNil)
				So(token, ShouldEqual, "abc.def.ghi")
			})
		})
	})
}

func TestJWTVerifier(t *testing.T) {
	Convey("Given a JWT verifier with a fixed clock", t, func() {
		now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		v := identity.NewJWTVerifier(testSecret,
			identity.WithAudience("authenticated"),
			identity.WithClock(func() time.Time { return now }),
		)
		ctx := context.Background()
		base := func() jwt.MapClaims {
			return jwt.MapClaims{
				"sub":   "user-1",
				"email": "ada@example.com",
				"role":  "authenticated",
				"aud":   "authenticated",
				"exp":   now.Add(time.Hour).Unix(),
			}
		}

		Convey("When the token is valid", func() {
			id, err := v.Verify(ctx, sign(t, jwt.SigningMethodHS256, []byte(testSecret), base()))

			Convey("Then the identity is resolved from the claims", func() {
				So(err, ShouldBeNil)
				So(id.UserID, ShouldEqual, "user-1")
				So(id.Email, ShouldEqual, "ada@example.com")
				So(id.Role, ShouldEqual, "authenticated")
			})
		})

		Convey("When the token has expired", func() {
			c := base()
			c["exp"] = now.Add(-time.Hour).Unix()
			_, err := v.Verify(ctx, sign(t, jwt.SigningMethodHS256, []byte(testSecret), c))

			Convey("Then it is rejected as invalid", func() {
				So(errors.Is(err, identity.ErrInvalidCredential), ShouldBeTrue)
			})
		})

		Convey("When the token has no expiry", func() {
			c := base()
			delete(c, "exp")
			_, err := v.Verify(ctx, sign(t, jwt.SigningMethodHS256, []byte(testSecret), c))

			Convey("Then it is rejected", func() {
				So(errors.Is(err, identity.ErrInvalidCredential), ShouldBeTrue)
			})
		})

		Convey("When the token is signed with another secret", func() {
			_, err := v.Verify(ctx, sign(t, jwt.SigningMethodHS256, []byte("other-secret"), base()))

			Convey("Then it is rejected", func() {
				So(errors.Is(err, identity.ErrInvalidCredential), ShouldBeTrue)
			})
		})

		Convey("When the audience does not match", func() {
			c := base()
			c["aud"] = "anon"
			_, err := v.Verify(ctx, sign(t, jwt.SigningMethodHS256, []byte(testSecret), c))

			Convey("Then it is rejected", func() {
				So(errors.Is(err, identity.ErrInvalidCredential), ShouldBeTrue)
			})
		})

		Convey("When the subject is missing", func() {
			c := base()
			delete(c, "sub")
			_, err := v.Verify(ctx, sign(t, jwt.SigningMethodHS256, []byte(testSecret), c))

			Convey("Then it is rejected", func() {
				So(errors.Is(err, identity.ErrInvalidCredential), ShouldBeTrue)
			})
		})

		Convey("When the token is garbage", func() {
			_, err := v.Verify(ctx, "not-a-jwt")

			Convey("Then it is rejected", func() {
				So(errors.Is(err, identity.ErrInvalidCredential), ShouldBeTrue)
			})
		})

		Convey("When no secret is configured", func() {
			_, err := identity.NewJWTVerifier("").Verify(ctx, "anything")

			Convey("Then the provider is reported unavailable", func() {
				So(errors.Is(err, identity.ErrProviderUnavailable), ShouldBeTrue)
			})
		})
	})
}

func TestAuthenticate(t *testing.T) {
	Convey("Given a verifier and a request header", t, func() {
		v := identity.NewJWTVerifier(testSecret)
		token := sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
			"sub": "user-9",
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		Convey("When the header is missing", func() {
			_, err := identity.Authenticate(context.Background(), v, "")
			So(errors.Is(err, identity.ErrMissingCredential), ShouldBeTrue)
		})

		Convey("When the header carries a valid token", func() {
			id, err := identity.Authenticate(context.Background(), v, "Bearer "+token)
			So(err, ShouldBeNil)
			So(id.UserID, ShouldEqual, "user-9")
		})
	})
}

func TestRemoteVerifier(t *testing.T) {
	Convey("Given an identity provider", t, func() {
		var gotAuth, gotKey string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			gotKey = r.Header.Get("apikey")
			switch r.Header.Get("Authorization") {
			case "Bearer good":
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"id":"user-7","email":"u7@example.com","role":"authenticated"}`))
			case "Bearer broken":
				w.WriteHeader(http.StatusBadGateway)
			default:
				w.WriteHeader(http.StatusUnauthorized)
			}
		}))
		defer srv.Close()

		v := identity.NewRemoteVerifier(srv.URL+"/", identity.WithAPIKey("anon-key"))
		ctx := context.Background()

		Convey("When the provider accepts the token", func() {
			id, err := v.Verify(ctx, "good")

			Convey("Then the provider's user becomes the identity", func() {
				So(err, ShouldBeNil)
				So(id.UserID, ShouldEqual, "user-7")
				So(id.Email, ShouldEqual, "u7@example.com")
				So(gotAuth, ShouldEqual, "Bearer good")
				So(gotKey, ShouldEqual, "anon-key")
			})
		})

		Convey("When the provider rejects the token", func() {
			_, err := v.Verify(ctx, "bad")

			Convey("Then it is an invalid credential", func() {
				So(errors.Is(err, identity.ErrInvalidCredential), ShouldBeTrue)
			})
		})

		Convey("When the provider fails", func() {
			_, err := v.Verify(ctx, "broken")

			Convey("Then the provider is unavailable", func() {
				So(errors.Is(err, identity.ErrProviderUnavailable), ShouldBeTrue)
			})
		})
	})

	Convey("Given a slow provider and a shared HTTP client", t, func() {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			<-release
		}))
		defer srv.Close()
		defer close(release)

		shared := &http.Client{}
		v := identity.NewRemoteVerifier(srv.URL,
			identity.WithHTTPClient(shared),
			identity.WithTimeout(50*time.Millisecond),
		)

		Convey("When a verification outlives the timeout", func() {
			_, err := v.Verify(context.Background(), "good")

			Convey("Then it fails as provider unavailable without touching the shared client", func() {
				So(errors.Is(err, identity.ErrProviderUnavailable), ShouldBeTrue)
				So(shared.Timeout, ShouldEqual, time.Duration(0))
			})
		})
	})

	Convey("Given an unreachable provider", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := identity.NewRemoteVerifier(url, identity.WithTimeout(time.Second)).Verify(context.Background(), "good")

		Convey("Then the provider is unavailable", func() {
			So(errors.Is(err, identity.ErrProviderUnavailable), ShouldBeTrue)
		})
	})
}
