// Package withings is a client for the Withings measure API. It handles the
// OAuth2 authorization-code flow (with Withings' nonstandard enveloped token
// endpoint), persists tokens between runs, and normalizes measure groups
// into the measurement model.
package withings
