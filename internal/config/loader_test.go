package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/tally/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.ServerURL, convey.ShouldEqual, "http://localhost:5000")
				convey.So(cfg.RequestTimeoutMS, convey.ShouldEqual, 10_000)
				convey.So(cfg.PageMaxOffset, convey.ShouldEqual, 270)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("TALLY_ADDR", ":8080")
			_ = os.Setenv("TALLY_SERVER_URL", "http://tally.internal:5000")
			_ = os.Setenv("TALLY_REQUEST_TIMEOUT_MS", "2500")
			_ = os.Setenv("TALLY_REDACTION_MARKER", "***")
			_ = os.Setenv("TALLY_PAGE_MAX_OFFSET", "200")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.ServerURL, convey.ShouldEqual, "http://tally.internal:5000")
				convey.So(cfg.RequestTimeoutMS, convey.ShouldEqual, 2500)
				convey.So(cfg.RedactionMarker, convey.ShouldEqual, "***")
				convey.So(cfg.PageMaxOffset, convey.ShouldEqual, 200)
				convey.So(cfg.PageTopOffset, convey.ShouldEqual, 10)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
server_url: "http://10.0.0.5:5000"
roster_file: "/etc/tally/roster.yaml"
notice_ttl_ms: 8000
page_line_height: 5
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("TALLY_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file and keep defaults for the rest", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.ServerURL, convey.ShouldEqual, "http://10.0.0.5:5000")
				convey.So(cfg.RosterFile, convey.ShouldEqual, "/etc/tally/roster.yaml")
				convey.So(cfg.NoticeTTLMS, convey.ShouldEqual, 8000)
				convey.So(cfg.PageLineHeight, convey.ShouldEqual, 5)
				convey.So(cfg.PageHeaderHeight, convey.ShouldEqual, 8)
				convey.So(cfg.RedactionMarker, convey.ShouldEqual, "#####")
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
server_url: "http://10.0.0.5:5000"
request_timeout_ms: 3000
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("TALLY_CONFIG", tmpFile)
			_ = os.Setenv("TALLY_ADDR", ":8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.ServerURL, convey.ShouldEqual, "http://10.0.0.5:5000")
				convey.So(cfg.RequestTimeoutMS, convey.ShouldEqual, 3000)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("TALLY_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with a missing file", func() {
			_ = os.Setenv("TALLY_CONFIG", "/nonexistent/tally.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("TALLY_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with a relative server url", func() {
			_ = os.Setenv("TALLY_SERVER_URL", "localhost")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "server_url")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("TALLY_REQUEST_TIMEOUT_MS", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestConfigLoaderEdgeCases(t *testing.T) {
	convey.Convey("Given config loader edge cases", t, func() {
		convey.Convey("When the page layout is inverted", func() {
			cfg := config.New()
			cfg.PageMaxOffset = cfg.PageTopOffset

			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the request timeout is zero", func() {
			cfg := config.New()
			cfg.RequestTimeoutMS = 0

			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When LoadFile is given an explicit path", func() {
			clearConfigEnvVars()
			tmpFile := createTempConfigFile("log_level: debug\n")
			defer func() { _ = os.Remove(tmpFile) }()

			cfg, err := config.LoadFile(tmpFile)

			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"TALLY_CONFIG",
		"TALLY_ADDR",
		"TALLY_SERVER_URL",
		"TALLY_REQUEST_TIMEOUT_MS",
		"TALLY_REDACTION_MARKER",
		"TALLY_PAGE_MAX_OFFSET",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "tally-config-*.yaml")
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
