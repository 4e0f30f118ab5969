package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}

	// Re-initializing must be safe.
	if err := Init(); err != nil {
		t.Fatalf("failed to re-initialize logger: %v", err)
	}
	if Get() == nil {
		t.Fatal("logger is nil after re-initialization")
	}
}

func TestLoggerJSONOutput(t *testing.T) {
	Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(InitWith(&buf, FormatJSON), ShouldBeNil)
		So(SetLevelString("info"), ShouldBeNil)
		defer func() { _ = Init() }()

		Convey("When logging with fields", func() {
			Get().Named("incr").Info(context.Background(), "banana eaten",
				String("userId", "zoe"),
				Int64("total", 3),
				Bool("atomic", false),
				Duration("took", 2*time.Millisecond),
				Error(errors.New("boom")),
			)

			Convey("Then the record carries every field", func() {
				var rec map[string]any
				So(json.Unmarshal(buf.Bytes(), &rec), ShouldBeNil)
				So(rec["msg"], ShouldEqual, "banana eaten")
				So(rec["logger"], ShouldEqual, "incr")
				So(rec["userId"], ShouldEqual, "zoe")
				So(rec["total"], ShouldEqual, float64(3))
				So(rec["atomic"], ShouldEqual, false)
				So(rec["took"], ShouldEqual, "2ms")
				So(rec["source"], ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When logging below the configured level", func() {
			So(SetLevelString("warn"), ShouldBeNil)
			Get().Debug(context.Background(), "hidden")
			Get().Info(context.Background(), "hidden too")

			Convey("Then nothing is written", func() {
				So(buf.Len(), ShouldEqual, 0)
			})
		})

		Convey("When a child logger carries fields", func() {
			Get().With(String("requestId", "abc")).Warn(context.Background(), "slow store")

			Convey("Then they appear on the record", func() {
				So(buf.String(), ShouldContainSubstring, `"requestId":"abc"`)
			})
		})
	})
}

func TestLoggerFormatAndLevel(t *testing.T) {
	Convey("Given the global logger", t, func() {
		var buf bytes.Buffer
		So(InitWith(&buf, FormatText), ShouldBeNil)
		defer func() { _ = Init() }()

		Convey("Then switching to json keeps the output", func() {
			So(SetFormat("json"), ShouldBeNil)
			Get().Info(context.Background(), "switched")
			So(strings.HasPrefix(buf.String(), "{"), ShouldBeTrue)
		})

		Convey("Then unknown formats are rejected", func() {
			So(SetFormat("xml"), ShouldNotBeNil)
			So(InitWith(nil, FormatText), ShouldNotBeNil)
		})

		Convey("Then level strings are parsed case-insensitively", func() {
			So(SetLevelString(" DEBUG "), ShouldBeNil)
			So(SetLevelString("warning"), ShouldBeNil)
			So(SetLevelString("error"), ShouldBeNil)
			So(SetLevelString(""), ShouldBeNil)
			So(SetLevelString("loud"), ShouldNotBeNil)
		})
	})
}

func TestLoggerNamed(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	namedLogger := Named("test")
	if namedLogger == nil {
		t.Fatal("named logger is nil")
	}
	namedLogger.Info(context.Background(), "test message")
}
