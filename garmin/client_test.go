package garmin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"

	"github.com/wgsync/wgsync/config"
)

var testConfig = config.Garmin{Username: "user@example.com", Password: "hunter2"}

type fakeGarmin struct {
	srv        *httptest.Server
	logins     int
	uploads    int
	validToken string
	uploadCode int
	lastUpload []byte
}

func newFakeGarmin(t *testing.T) *fakeGarmin {
	t.Helper()
	f := &fakeGarmin{uploadCode: http.StatusCreated}
	mux := http.NewServeMux()
	mux.HandleFunc(loginPath, func(w http.ResponseWriter, r *http.Request) {
		test.That(t, r.ParseForm(), test.ShouldBeNil)
		test.That(t, r.PostForm.Get("username"), test.ShouldEqual, testConfig.Username)
		f.logins++
		f.validToken = fmt.Sprintf("session-%d", f.logins)
		fmt.Fprintf(w, `{"token":%q}`, f.validToken)
	})
	mux.HandleFunc(uploadPath, func(w http.ResponseWriter, r *http.Request) {
		f.uploads++
		if r.Header.Get("Authorization") != "Bearer "+f.validToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		file, _, err := r.FormFile("file")
		test.That(t, err, test.ShouldBeNil)
		f.lastUpload, err = io.ReadAll(file)
		test.That(t, err, test.ShouldBeNil)
		w.WriteHeader(f.uploadCode)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func newTestClient(t *testing.T, fake *fakeGarmin, sessionFile string) *Client {
	t.Helper()
	c, err := NewClient(testConfig, sessionFile, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	c.baseURL = fake.srv.URL
	return c
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(config.Garmin{}, filepath.Join(t.TempDir(), "session.json"), golog.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestUploadLogsInFirst(t *testing.T) {
	fake := newFakeGarmin(t)
	sessionFile := filepath.Join(t.TempDir(), "session.json")
	c := newTestClient(t, fake, sessionFile)

	payload := []byte{0x0E, 0x10, '.', 'F', 'I', 'T'}
	test.That(t, c.Upload(context.Background(), payload, "withings_sync.fit"), test.ShouldBeNil)
	test.That(t, fake.logins, test.ShouldEqual, 1)
	test.That(t, fake.uploads, test.ShouldEqual, 1)
	test.That(t, fake.lastUpload, test.ShouldResemble, payload)

	// The session was persisted for the next run.
	data, err := os.ReadFile(sessionFile)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldContainSubstring, "session-1")
}

func TestUploadReusesPersistedSession(t *testing.T) {
	fake := newFakeGarmin(t)
	sessionFile := filepath.Join(t.TempDir(), "session.json")

	first := newTestClient(t, fake, sessionFile)
	test.That(t, first.Upload(context.Background(), []byte("fit"), "a.fit"), test.ShouldBeNil)

	second := newTestClient(t, fake, sessionFile)
	test.That(t, second.Upload(context.Background(), []byte("fit"), "b.fit"), test.ShouldBeNil)
	test.That(t, fake.logins, test.ShouldEqual, 1)
	test.That(t, fake.uploads, test.ShouldEqual, 2)
}

func TestUploadRetriesStaleSession(t *testing.T) {
	fake := newFakeGarmin(t)
	sessionFile := filepath.Join(t.TempDir(), "session.json")
	c := newTestClient(t, fake, sessionFile)

	// A token the server will reject until the client logs in again.
	c.token = "stale-token"
	fake.validToken = "something-else"

	test.That(t, c.Upload(context.Background(), []byte("fit"), "a.fit"), test.ShouldBeNil)
	test.That(t, fake.logins, test.ShouldEqual, 1)
	test.That(t, fake.uploads, test.ShouldEqual, 2)
}

func TestUploadConflictIsSuccess(t *testing.T) {
	fake := newFakeGarmin(t)
	c := newTestClient(t, fake, filepath.Join(t.TempDir(), "session.json"))
	fake.uploadCode = http.StatusConflict

	test.That(t, c.Upload(context.Background(), []byte("fit"), "a.fit"), test.ShouldBeNil)
}

func TestUploadServerError(t *testing.T) {
	fake := newFakeGarmin(t)
	c := newTestClient(t, fake, filepath.Join(t.TempDir(), "session.json"))
	fake.uploadCode = http.StatusInternalServerError

	err := c.Upload(context.Background(), []byte("fit"), "a.fit")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "status 500")
}
