package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/bananas/internal/config"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("BANANAS_ADDR", ":8080")
			_ = os.Setenv("BANANAS_STORE", "Redis")
			_ = os.Setenv("BANANAS_REDIS_ADDR", "localhost:6379")
			_ = os.Setenv("BANANAS_REDIS_DB", "2")
			_ = os.Setenv("BANANAS_ATOMIC_INCREMENT", "true")
			_ = os.Setenv("BANANAS_LEADERBOARD_LIMIT", "10")
			_ = os.Setenv("BANANAS_LOG_FORMAT", "json")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Store, convey.ShouldEqual, config.StoreRedis)
				convey.So(cfg.RedisAddr, convey.ShouldEqual, "localhost:6379")
				convey.So(cfg.RedisDB, convey.ShouldEqual, 2)
				convey.So(cfg.AtomicIncrement, convey.ShouldBeTrue)
				convey.So(cfg.LeaderboardLimit, convey.ShouldEqual, 10)
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.GlobalKey, convey.ShouldEqual, "counter:bananas")
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
# keys shared with another deployment
addr: ":9090"  # inline comment
global_key: "team-a:counter"
user_key_format: "team-a:user:%s"
leaderboard_key: "team-a:zset"
max_leaderboard_limit: 50
idempotency_cache_size: 0
redis_dial_timeout_ms: 750
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("BANANAS_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.GlobalKey, convey.ShouldEqual, "team-a:counter")
				convey.So(cfg.UserKeyFormat, convey.ShouldEqual, "team-a:user:%s")
				convey.So(cfg.LeaderboardKey, convey.ShouldEqual, "team-a:zset")
				convey.So(cfg.MaxLeaderboardLimit, convey.ShouldEqual, 50)
				convey.So(cfg.IdempotencyCacheSize, convey.ShouldEqual, 0)
				convey.So(cfg.RedisDialTimeoutMS, convey.ShouldEqual, 750)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
leaderboard_limit: 30
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("BANANAS_CONFIG", tmpFile)
			_ = os.Setenv("BANANAS_ADDR", ":8080") // This should override the file
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")         // Overridden by env
				convey.So(cfg.LeaderboardLimit, convey.ShouldEqual, 30) // From file
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("BANANAS_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("BANANAS_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the redis store has no address", func() {
			_ = os.Setenv("BANANAS_STORE", "redis")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "redis_addr")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with YAML file containing empty values", func() {
			tmpFile := createTempConfigFile("addr: \"\"\nleaderboard_limit: 5\n")
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("BANANAS_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return validation error for empty addr", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"BANANAS_CONFIG",
		"BANANAS_ADDR",
		"BANANAS_STORE",
		"BANANAS_REDIS_ADDR",
		"BANANAS_REDIS_DB",
		"BANANAS_ATOMIC_INCREMENT",
		"BANANAS_LEADERBOARD_LIMIT",
		"BANANAS_LOG_FORMAT",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "bananas-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
