package withings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"go.viam.com/test"
	"golang.org/x/time/rate"

	"github.com/wgsync/wgsync/config"
)

var testConfig = config.Withings{
	ClientID:     "client-id",
	ClientSecret: "client-secret",
	CallbackURL:  "http://localhost:8080/callback",
}

// fakeWithings is an httptest server speaking the enveloped token endpoint
// and the getmeas endpoint.
type fakeWithings struct {
	srv         *httptest.Server
	tokenCalls  []string // grant_type of each token request
	measForms   []map[string]string
	measPayload string
}

func newFakeWithings(t *testing.T) *fakeWithings {
	t.Helper()
	f := &fakeWithings{measPayload: `{"status":0,"body":{"measuregrps":[]}}`}
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		test.That(t, r.ParseForm(), test.ShouldBeNil)
		test.That(t, r.PostForm.Get("action"), test.ShouldEqual, "requesttoken")
		grant := r.PostForm.Get("grant_type")
		f.tokenCalls = append(f.tokenCalls, grant)
		fmt.Fprintf(w, `{"status":0,"body":{
			"access_token":"at-%d","refresh_token":"rt-%d","expires_in":10800,"userid":363
		}}`, len(f.tokenCalls), len(f.tokenCalls))
	})
	mux.HandleFunc(getmeasPath, func(w http.ResponseWriter, r *http.Request) {
		test.That(t, r.ParseForm(), test.ShouldBeNil)
		form := map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		f.measForms = append(f.measForms, form)
		fmt.Fprint(w, f.measPayload)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func newTestClient(t *testing.T, fake *fakeWithings) *Client {
	t.Helper()
	c, err := NewClient(testConfig, filepath.Join(t.TempDir(), "tokens.json"), golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	c.baseURL = fake.srv.URL
	c.limiter = rate.NewLimiter(rate.Inf, 1)
	return c
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(config.Withings{}, filepath.Join(t.TempDir(), "tokens.json"), golog.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestAuthCodeURL(t *testing.T) {
	fake := newFakeWithings(t)
	c := newTestClient(t, fake)

	u := c.AuthCodeURL()
	test.That(t, u, test.ShouldContainSubstring, "response_type=code")
	test.That(t, u, test.ShouldContainSubstring, "client_id=client-id")
	test.That(t, u, test.ShouldContainSubstring, "scope=user.metrics")
}

func TestMeasurementsRequiresAuthorization(t *testing.T) {
	fake := newFakeWithings(t)
	c := newTestClient(t, fake)

	test.That(t, c.NeedsAuthorization(), test.ShouldBeTrue)
	_, err := c.Measurements(context.Background(), time.Unix(0, 0), time.Unix(1, 0))
	test.That(t, errors.Is(err, ErrNotAuthorized), test.ShouldBeTrue)
}

func TestAuthorizeThenFetch(t *testing.T) {
	fake := newFakeWithings(t)
	fake.measPayload = `{"status":0,"body":{"measuregrps":[
		{"date":1704153600,"measures":[
			{"value":120,"type":10,"unit":0},
			{"value":80,"type":9,"unit":0},
			{"value":72,"type":11,"unit":0}
		]},
		{"date":1704067200,"measures":[
			{"value":82300,"type":1,"unit":-3},
			{"value":235,"type":6,"unit":-1},
			{"value":370,"type":12,"unit":-1}
		]}
	]}}`
	c := newTestClient(t, fake)

	test.That(t, c.Authorize(context.Background(), "auth-code"), test.ShouldBeNil)
	test.That(t, c.NeedsAuthorization(), test.ShouldBeFalse)

	groups, err := c.Measurements(context.Background(),
		time.Unix(1704000000, 0), time.Unix(1704200000, 0))
	test.That(t, err, test.ShouldBeNil)

	// Exchange, then a refresh ahead of the data fetch.
	test.That(t, fake.tokenCalls, test.ShouldResemble, []string{"authorization_code", "refresh_token"})
	test.That(t, fake.measForms[0]["action"], test.ShouldEqual, "getmeas")
	test.That(t, fake.measForms[0]["access_token"], test.ShouldEqual, "at-2")
	test.That(t, fake.measForms[0]["startdate"], test.ShouldEqual, "1704000000")

	// Groups come back oldest first regardless of API order.
	test.That(t, len(groups), test.ShouldEqual, 2)
	test.That(t, groups[0].Timestamp.Unix(), test.ShouldEqual, int64(1704067200))
	test.That(t, *groups[0].Weight, test.ShouldEqual, 82.3)
	test.That(t, *groups[0].FatRatio, test.ShouldEqual, 23.5)
	test.That(t, groups[0].Systolic, test.ShouldBeNil)
	test.That(t, *groups[1].Systolic, test.ShouldEqual, 120.0)
	test.That(t, *groups[1].Diastolic, test.ShouldEqual, 80.0)
	test.That(t, *groups[1].HeartRate, test.ShouldEqual, 72.0)
}

func TestMeasurementsDropsUnknownOnlyGroups(t *testing.T) {
	fake := newFakeWithings(t)
	// Skin temperature only; no field of ours maps to it.
	fake.measPayload = `{"status":0,"body":{"measuregrps":[
		{"date":1704067200,"measures":[{"value":365,"type":73,"unit":-1}]}
	]}}`
	c := newTestClient(t, fake)
	test.That(t, c.Authorize(context.Background(), "auth-code"), test.ShouldBeNil)

	groups, err := c.Measurements(context.Background(), time.Unix(0, 0), time.Unix(1704200000, 0))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, groups, test.ShouldBeEmpty)
}

func TestMeasurementsAPIError(t *testing.T) {
	fake := newFakeWithings(t)
	fake.measPayload = `{"status":401,"error":"invalid token"}`
	c := newTestClient(t, fake)
	test.That(t, c.Authorize(context.Background(), "auth-code"), test.ShouldBeNil)

	_, err := c.Measurements(context.Background(), time.Unix(0, 0), time.Unix(1, 0))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "status 401")
}

func TestHeightPicksLatest(t *testing.T) {
	fake := newFakeWithings(t)
	fake.measPayload = `{"status":0,"body":{"measuregrps":[
		{"date":1104067200,"measures":[{"value":178,"type":4,"unit":-2}]},
		{"date":1704067200,"measures":[{"value":180,"type":4,"unit":-2}]}
	]}}`
	c := newTestClient(t, fake)
	test.That(t, c.Authorize(context.Background(), "auth-code"), test.ShouldBeNil)

	height, ok, err := c.Height(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, height, test.ShouldEqual, 1.8)

	form := fake.measForms[len(fake.measForms)-1]
	test.That(t, form["meastype"], test.ShouldEqual, "4")
}

func TestLastSyncBookmark(t *testing.T) {
	fake := newFakeWithings(t)
	c := newTestClient(t, fake)

	mock := clock.NewMock()
	mock.Set(time.Unix(1704067200, 0))
	c.clock = mock

	// No bookmark yet: default to 24h before now.
	test.That(t, c.LastSync().Unix(), test.ShouldEqual, int64(1704067200-86400))

	test.That(t, c.SetLastSync(mock.Now()), test.ShouldBeNil)
	test.That(t, c.LastSync().Unix(), test.ShouldEqual, int64(1704067200))

	// The bookmark survives a fresh client on the same token file.
	again, err := NewClient(testConfig, c.store.path, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, again.LastSync().Unix(), test.ShouldEqual, int64(1704067200))
}
