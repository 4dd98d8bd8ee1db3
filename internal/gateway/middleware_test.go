// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/actstream/actstream/internal/config"
)

func TestRejectsWithoutForwardedProto(t *testing.T) {
	f := newTestGateway(t)

	req := f.signedRequest(http.MethodPost, "/v1/", "", nil, f.keys[0])
	req.Header.Del("X-Forwarded-Proto")

	assertDetails(t, f.serve(req), http.StatusUnauthorized, msgMissingProto)
}

func TestRejectsWithoutAuthorization(t *testing.T) {
	f := newTestGateway(t)

	req := f.signedRequest(http.MethodPost, "/v1/", "", nil, f.keys[0])
	req.Header.Del("Authorization")

	assertDetails(t, f.serve(req), http.StatusUnauthorized, msgNotProvided)
}

func TestRejectsWithoutContentType(t *testing.T) {
	f := newTestGateway(t)

	// A missing Content-Type is reported before the remote address is
	// even looked at.
	req := f.signedRequest(http.MethodPost, "/v1/", "", nil, f.keys[0])
	req.Header.Del("Content-Type")
	req.Header.Set("X-Forwarded-For", "9.9.9.9, 8.8.8.8")

	assertDetails(t, f.serve(req), http.StatusUnauthorized, msgMissingContentType)
}

func TestRejectsRemoteAddressesOutsideWhitelist(t *testing.T) {
	f := newTestGateway(t)

	// One entry means no proxy ahead of us, so there is nothing to trust.
	req := f.signedRequest(http.MethodPost, "/v1/", "", nil, f.keys[0])
	req.Header.Set("X-Forwarded-For", whitelistedIP)
	assertDetails(t, f.serve(req), http.StatusUnauthorized, msgIncorrect)

	// The leftmost entry is client-controlled and never trusted, even
	// when it carries a whitelisted address.
	req = f.signedRequest(http.MethodPost, "/v1/", "", nil, f.keys[0])
	req.Header.Set("X-Forwarded-For", whitelistedIP+", 9.9.9.9, 127.0.0.1")
	assertDetails(t, f.serve(req), http.StatusUnauthorized, msgIncorrect)

	req = f.signedRequest(http.MethodPost, "/v1/", "", nil, f.keys[0])
	req.Header.Del("X-Forwarded-For")
	assertDetails(t, f.serve(req), http.StatusUnauthorized, msgIncorrect)
}

func TestAcceptsWhitelistedSecondFromLastHop(t *testing.T) {
	f := newTestGateway(t)

	req := f.signedRequest(http.MethodPost, "/v1/", "", nil, f.keys[0])
	req.Header.Set("X-Forwarded-For", "6.6.6.6, "+whitelistedIP+", 127.0.0.1")

	assert.Equal(t, http.StatusOK, f.serve(req).Code)
}

func TestRejectsUnknownKeyID(t *testing.T) {
	f := newTestGateway(t)
	pair := config.KeyPair{KeyID: "incoming-some-id-4", SecretKey: "incoming-some-secret-1"}

	rec := f.serve(f.signedRequest(http.MethodPost, "/v1/", "", nil, pair))

	assertDetails(t, rec, http.StatusUnauthorized, msgIncorrect)
}

func TestRejectsWrongSecret(t *testing.T) {
	f := newTestGateway(t)
	pair := config.KeyPair{KeyID: f.keys[0].KeyID, SecretKey: f.keys[1].SecretKey}

	rec := f.serve(f.signedRequest(http.MethodPost, "/v1/", "", nil, pair))

	assertDetails(t, rec, http.StatusUnauthorized, msgIncorrect)
}

func TestRejectsReplayedNonce(t *testing.T) {
	f := newTestGateway(t)
	ts := f.clock.Now().Unix()

	first := f.signedRequestAt(http.MethodPost, "/v1/", "", nil, f.keys[0], ts, "fixed-nonce")
	require.Equal(t, http.StatusOK, f.serve(first).Code)

	replayed := f.signedRequestAt(http.MethodPost, "/v1/", "", nil, f.keys[0], ts, "fixed-nonce")
	assertDetails(t, f.serve(replayed), http.StatusUnauthorized, msgIncorrect)

	// Nonces are scoped per key, so another caller may reuse the value.
	otherKey := f.signedRequestAt(http.MethodPost, "/v1/", "", nil, f.keys[2], ts, "fixed-nonce")
	assert.Equal(t, http.StatusOK, f.serve(otherKey).Code)
}

func TestTimestampSkewBoundary(t *testing.T) {
	f := newTestGateway(t)
	now := f.clock.Now().Unix()

	past := f.signedRequestAt(http.MethodPost, "/v1/", "", nil, f.keys[0], now-60, "skew-nonce-1")
	assert.Equal(t, http.StatusOK, f.serve(past).Code)

	tooOld := f.signedRequestAt(http.MethodPost, "/v1/", "", nil, f.keys[0], now-61, "skew-nonce-2")
	assertDetails(t, f.serve(tooOld), http.StatusUnauthorized, msgIncorrect)

	future := f.signedRequestAt(http.MethodPost, "/v1/", "", nil, f.keys[0], now+60, "skew-nonce-3")
	assert.Equal(t, http.StatusOK, f.serve(future).Code)

	tooNew := f.signedRequestAt(http.MethodPost, "/v1/", "", nil, f.keys[0], now+61, "skew-nonce-4")
	assertDetails(t, f.serve(tooNew), http.StatusUnauthorized, msgIncorrect)
}

func TestContentTypeParticipatesInSignature(t *testing.T) {
	f := newTestGateway(t)

	req := f.signedRequest(http.MethodPost, "/v1/", "", nil, f.keys[0])
	req.Header.Set("Content-Type", "text/plain")

	assertDetails(t, f.serve(req), http.StatusUnauthorized, msgIncorrect)
}

func TestForbidsMethodsOutsidePermissions(t *testing.T) {
	f := newTestGateway(t)

	get := f.signedRequest(http.MethodGet, "/v1/", "", nil, f.keys[2])
	assertDetails(t, f.serve(get), http.StatusForbidden, msgNotAuthorized)

	post := f.signedRequest(http.MethodPost, "/v1/", "", nil, f.keys[1])
	assertDetails(t, f.serve(post), http.StatusForbidden, msgNotAuthorized)
}

func TestRecoveredPanicsReturnJSON500(t *testing.T) {
	reporter := &recordingReporter{}
	wrapped := recoverPanics(zap.NewNop(), reporter)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://"+testHost+"/v1/", nil))

	assertDetails(t, rec, http.StatusInternalServerError, msgUnknownError)
	assert.Equal(t, 1, reporter.count())
}
