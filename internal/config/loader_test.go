package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"
	"github.com/softai/coursecore/internal/config"
)

func setenv(key, value string) {
	_ = os.Setenv(key, value)
}

func clearConfigEnv() {
	for _, kv := range os.Environ() {
		if key, _, _ := strings.Cut(kv, "="); strings.HasPrefix(key, "SOFTAI_") {
			_ = os.Unsetenv(key)
		}
	}
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnv()
		convey.Reset(clearConfigEnv)

		convey.Convey("When only the required secret is set", func() {
			setenv("SOFTAI_JWT_SECRET", "secret")
			cfg, err := config.Load(ctx)

			convey.Convey("Then defaults fill the rest", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.JWTSecret, convey.ShouldEqual, "secret")
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.EventWorkers, convey.ShouldEqual, 2)
				convey.So(cfg.RateLimitTrustProxy, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When environment variables are set", func() {
			setenv("SOFTAI_JWT_SECRET", "secret")
			setenv("SOFTAI_ADDR", ":9000")
			setenv("SOFTAI_EVENT_QUEUE_SIZE", "64")
			setenv("SOFTAI_RATE_LIMIT_RPS", "2.5")
			setenv("SOFTAI_DB_ENSURE_UNIQUE_INDEX", "true")
			setenv("SOFTAI_RATE_LIMIT_TRUST_PROXY", "true")
			setenv("SOFTAI_CERTIFICATE_PREFIX", "ACME")
			cfg, err := config.Load(ctx)

			convey.Convey("Then they override defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9000")
				convey.So(cfg.EventQueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.RateLimitRPS, convey.ShouldEqual, 2.5)
				convey.So(cfg.DBEnsureUniqueIndex, convey.ShouldBeTrue)
				convey.So(cfg.RateLimitTrustProxy, convey.ShouldBeTrue)
				convey.So(cfg.CertificatePrefix, convey.ShouldEqual, "ACME")
			})
		})

		convey.Convey("When a YAML file and env vars are both given", func() {
			path := filepath.Join(t.TempDir(), "config.yaml")
			yamlContent := `
addr: ":7000"
jwt_secret: from-file
store_driver: postgres
database_dsn: postgres://localhost/softai
redis_addr: localhost:6379
`
			convey.So(os.WriteFile(path, []byte(yamlContent), 0o600), convey.ShouldBeNil)
			setenv("SOFTAI_CONFIG", path)
			setenv("SOFTAI_ADDR", ":7001")
			cfg, err := config.Load(ctx)

			convey.Convey("Then env wins over the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7001")
				convey.So(cfg.JWTSecret, convey.ShouldEqual, "from-file")
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.StorePostgres)
				convey.So(cfg.RedisAddr, convey.ShouldEqual, "localhost:6379")
			})
		})

		convey.Convey("When the config file is missing", func() {
			setenv("SOFTAI_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
			_, err := config.Load(ctx)

			convey.Convey("Then loading fails", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the result is inconsistent", func() {
			setenv("SOFTAI_JWT_SECRET", "")
			_, err := config.Load(ctx)

			convey.Convey("Then validation rejects it", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}
