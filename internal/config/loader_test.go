package config_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/okian/playstyle/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("PLAYSTYLE_ADDR", ":8080")
			_ = os.Setenv("PLAYSTYLE_K_MAX", "8")
			_ = os.Setenv("PLAYSTYLE_RESTARTS", "10")
			_ = os.Setenv("PLAYSTYLE_SEED", "7")
			_ = os.Setenv("PLAYSTYLE_SPARSE_QUANTILE", "0.1")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.KMax, convey.ShouldEqual, 8)
				convey.So(cfg.Restarts, convey.ShouldEqual, 10)
				convey.So(cfg.Seed, convey.ShouldEqual, 7)
				convey.So(cfg.SparseQuantile, convey.ShouldEqual, 0.1)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			tmpFile := createTempConfigFile(`
# reference parameters with a narrower sweep
k_min: 3
k_max: 9
restarts: 25
sparse_sentinel: -50
column_frequency: "FREQ%"
db_path: /tmp/runs.db
`)
			defer func() { _ = os.Remove(tmpFile) }()

			cfg, err := config.Load(ctx, tmpFile)

			convey.Convey("Then file values replace defaults and the rest are kept", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.KMin, convey.ShouldEqual, 3)
				convey.So(cfg.KMax, convey.ShouldEqual, 9)
				convey.So(cfg.Restarts, convey.ShouldEqual, 25)
				convey.So(cfg.SparseSentinel, convey.ShouldEqual, -50)
				convey.So(cfg.ColumnFrequency, convey.ShouldEqual, "FREQ%")
				convey.So(cfg.DBPath, convey.ShouldEqual, "/tmp/runs.db")
				convey.So(cfg.MaxIter, convey.ShouldEqual, 1000) // default
			})
		})

		convey.Convey("When the file comes from PLAYSTYLE_CONFIG and env overrides it", func() {
			tmpFile := createTempConfigFile("restarts: 25\nk_max: 9\n")
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("PLAYSTYLE_CONFIG", tmpFile)
			_ = os.Setenv("PLAYSTYLE_RESTARTS", "5")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then environment variables win over file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Restarts, convey.ShouldEqual, 5) // env
				convey.So(cfg.KMax, convey.ShouldEqual, 9)     // file
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			cfg, err := config.Load(ctx, tmpFile)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			cfg, err := config.Load(ctx, "/non/existent/file.yaml")

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("PLAYSTYLE_RESTARTS", "many")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the loaded values fail validation", func() {
			_ = os.Setenv("PLAYSTYLE_K_MIN", "0")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, config.EnvPrefix) {
			_ = os.Unsetenv(name)
		}
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "playstyle-config-*.yaml")
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
