package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rumidev445/erysa/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLoadDefaults(t *testing.T) {
	Convey("Given no file or environment overrides", t, func() {
		Convey("When loading", func() {
			cfg, err := config.Load()

			Convey("Then defaults come through", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":9080")
				So(cfg.SessionCapacity, ShouldEqual, 500)
			})
		})
	})
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ERYSA_ADDR", ":7070")
	t.Setenv("ERYSA_LOG_LEVEL", "debug")
	t.Setenv("ERYSA_SESSION_CAPACITY", "50")
	t.Setenv("ERYSA_DISPATCH_MAX_ATTEMPTS", "5")

	Convey("Given environment overrides", t, func() {
		Convey("When loading", func() {
			cfg, err := config.Load()

			Convey("Then env values win over defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":7070")
				So(cfg.LogLevel, ShouldEqual, "debug")
				So(cfg.SessionCapacity, ShouldEqual, 50)
				So(cfg.DispatchMaxAttempts, ShouldEqual, 5)
			})
		})
	})
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "erysa.yaml")
	yaml := []byte("addr: \":6060\"\nsession_capacity: 25\naccuracy_floor: 0.4\n")
	if err := os.WriteFile(path, yaml, 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ERYSA_CONFIG", path)

	Convey("Given a YAML config file", t, func() {
		Convey("When loading", func() {
			cfg, err := config.Load()

			Convey("Then file values layer over defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":6060")
				So(cfg.SessionCapacity, ShouldEqual, 25)
				So(cfg.AccuracyFloor, ShouldEqual, 0.4)
				So(cfg.WorkerCount, ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestLoadFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "erysa.yaml")
	yaml := []byte("addr: \":6060\"\nsession_capacity: 25\n")
	if err := os.WriteFile(path, yaml, 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ERYSA_CONFIG", path)
	t.Setenv("ERYSA_ADDR", ":5050")

	Convey("Given both a config file and an env override", t, func() {
		Convey("When loading", func() {
			cfg, err := config.Load()

			Convey("Then env wins over file", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":5050")
				So(cfg.SessionCapacity, ShouldEqual, 25)
			})
		})
	})
}

func TestLoadInvalidCapacity(t *testing.T) {
	t.Setenv("ERYSA_SESSION_CAPACITY", "0")

	Convey("Given a zero session capacity", t, func() {
		_, err := config.Load()

		Convey("Then loading fails with the capacity error", func() {
			So(errors.Is(err, config.ErrInvalidCapacity), ShouldBeTrue)
		})
	})
}

func TestLoadInvalidAttempts(t *testing.T) {
	t.Setenv("ERYSA_DISPATCH_MAX_ATTEMPTS", "0")

	Convey("Given a zero dispatch retry budget", t, func() {
		_, err := config.Load()

		Convey("Then loading fails with the attempts error", func() {
			So(errors.Is(err, config.ErrInvalidAttempts), ShouldBeTrue)
		})
	})
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("ERYSA_CONFIG", "/nonexistent/erysa.yaml")

	Convey("Given a config path that does not exist", t, func() {
		_, err := config.Load()

		Convey("Then loading fails", func() {
			So(err, ShouldNotBeNil)
		})
	})
}
