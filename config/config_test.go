package config

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestReadSubstitutesEnv(t *testing.T) {
	t.Setenv("TEST_WITHINGS_SECRET", "s3cret")

	path := filepath.Join(t.TempDir(), "config.json")
	test.That(t, os.WriteFile(path, []byte(`{
		"withings": {
			"client_id": "my-client",
			"client_secret": "${TEST_WITHINGS_SECRET}"
		},
		"garmin": {"username": "u", "password": "p"},
		"log_dir": "logs"
	}`), 0o600), test.ShouldBeNil)

	cfg, err := Read(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Withings.ClientID, test.ShouldEqual, "my-client")
	test.That(t, cfg.Withings.ClientSecret, test.ShouldEqual, "s3cret")
	test.That(t, cfg.LogDir, test.ShouldEqual, "logs")

	// Defaults fill in what the file left out.
	test.That(t, cfg.TokenPath, test.ShouldEqual, defaultTokenPath)
	test.That(t, cfg.SessionPath, test.ShouldEqual, defaultSessionPath)
	test.That(t, cfg.Withings.CallbackURL, test.ShouldEqual, defaultCallbackURL)
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nope.json"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("WITHINGS_CLIENT_ID", "env-client")
	t.Setenv("WITHINGS_CLIENT_SECRET", "env-secret")
	t.Setenv("GARMIN_USERNAME", "user")
	t.Setenv("GARMIN_PASSWORD", "pass")

	cfg := FromEnv()
	test.That(t, cfg.Withings.ClientID, test.ShouldEqual, "env-client")
	test.That(t, cfg.Garmin.Username, test.ShouldEqual, "user")
	test.That(t, cfg.Withings.CallbackURL, test.ShouldEqual, defaultCallbackURL)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	test.That(t, os.WriteFile(path, []byte(
		"# comment\n"+
			"\n"+
			"TEST_DOTENV_A=plain\n"+
			"TEST_DOTENV_B=\"quoted value\"\n"+
			"not a pair\n"+
			"TEST_DOTENV_C='single'\n"), 0o600), test.ShouldBeNil)
	// Register with t.Setenv so the vars are restored after the test.
	t.Setenv("TEST_DOTENV_A", "")
	t.Setenv("TEST_DOTENV_B", "")
	t.Setenv("TEST_DOTENV_C", "")

	test.That(t, LoadDotEnv(path), test.ShouldBeNil)
	test.That(t, os.Getenv("TEST_DOTENV_A"), test.ShouldEqual, "plain")
	test.That(t, os.Getenv("TEST_DOTENV_B"), test.ShouldEqual, "quoted value")
	test.That(t, os.Getenv("TEST_DOTENV_C"), test.ShouldEqual, "single")
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	test.That(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")), test.ShouldBeNil)
}
