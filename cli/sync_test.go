package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"go.viam.com/test"
)

func TestBuildOptions(t *testing.T) {
	opts, err := buildOptions("2024-01-01", "2024-01-07", "out.json", "out.fit", true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, *opts.From, test.ShouldEqual, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	// The end date covers its entire day.
	test.That(t, *opts.To, test.ShouldEqual, time.Date(2024, 1, 7, 23, 59, 59, 0, time.UTC))
	test.That(t, opts.JSONPath, test.ShouldEqual, "out.json")
	test.That(t, opts.FITPath, test.ShouldEqual, "out.fit")
	test.That(t, opts.Upload, test.ShouldBeTrue)
}

func TestBuildOptionsDefaults(t *testing.T) {
	opts, err := buildOptions("", "", "", "", false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, opts.From, test.ShouldBeNil)
	test.That(t, opts.To, test.ShouldBeNil)
}

func TestBuildOptionsBadDates(t *testing.T) {
	_, err := buildOptions("01/02/2024", "", "", "", false)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = buildOptions("2024-01-07", "2024-01-01", "", "", false)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "before")
}

func TestPromptForCode(t *testing.T) {
	var out bytes.Buffer
	code, err := promptForCode(&out, strings.NewReader("  abc123\n"), "https://example.com/auth")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, code, test.ShouldEqual, "abc123")
	test.That(t, out.String(), test.ShouldContainSubstring, "https://example.com/auth")

	_, err = promptForCode(&out, strings.NewReader("\n"), "https://example.com/auth")
	test.That(t, err, test.ShouldNotBeNil)

	_, err = promptForCode(&out, strings.NewReader(""), "https://example.com/auth")
	test.That(t, err, test.ShouldNotBeNil)
}
