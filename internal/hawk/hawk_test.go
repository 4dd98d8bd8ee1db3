// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

package hawk

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCredentials = []Credential{
	{KeyID: "incoming-some-id-1", Secret: "incoming-some-secret-1"},
	{KeyID: "incoming-some-id-3", Secret: "incoming-some-secret-3"},
}

func mustParse(t *testing.T, raw string) *url.URL {
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestHeaderKnownVector(t *testing.T) {
	cred := Credential{KeyID: "feed-some-id", Secret: "feed-some-secret"}
	header := Header(cred, "GET", mustParse(t, "http://localhost:8081/feed.json"), "", nil, 1326542401, "c29tZX")

	assert.Equal(t,
		`Hawk mac="JlJEla+MjEvHdbp9EAXenxXNvwf48YdbANMJ8LDfHpc=", `+
			`hash="B0weSUXsMcb5UhL41FZbrUJCAotzSI3HawE1NPLRUz8=", `+
			`id="feed-some-id", ts="1326542401", nonce="c29tZX"`,
		header)
}

func TestPayloadHashEmpty(t *testing.T) {
	// Canonical hash of an empty body with an empty content type.
	assert.Equal(t, "B0weSUXsMcb5UhL41FZbrUJCAotzSI3HawE1NPLRUz8=", PayloadHash("", nil))
}

func TestAuthenticateKnownVector(t *testing.T) {
	header := `Hawk mac="yvsFbBdFfLoKHj6VAPdnX77C2SHBSDrzW6SHy9gGfIM=", ` +
		`hash="Oy1VTfwkDyNHkXFU1x6ETjhM3o6FCewFVJrAkAHQHhU=", ` +
		`id="incoming-some-id-1", ts="1326542401", nonce="c29tZX"`

	cred, nonce, err := Authenticate(header, "POST", mustParse(t, "http://127.0.0.1:8080/v1/"),
		"application/json", []byte(`{"size": "1"}`), testCredentials, time.Unix(1326542401, 0))
	require.NoError(t, err)
	assert.Equal(t, "incoming-some-id-1", cred.KeyID)
	assert.Equal(t, "c29tZX", nonce)
}

func TestRoundTrip(t *testing.T) {
	cred := testCredentials[0]
	u := mustParse(t, "https://example.com/v1/abc?x=1")
	body := []byte(`{"query": {}}`)
	ts := int64(1326542401)

	header := Header(cred, "GET", u, "application/json", body, ts, "bm9uY2U")
	got, nonce, err := Authenticate(header, "GET", u, "application/json", body, testCredentials, time.Unix(ts, 0))
	require.NoError(t, err)
	assert.Equal(t, cred, got)
	assert.Equal(t, "bm9uY2U", nonce)
}

func TestAuthenticateRejections(t *testing.T) {
	cred := testCredentials[0]
	u := mustParse(t, "http://127.0.0.1:8080/v1/")
	ts := int64(1326542401)
	now := time.Unix(ts, 0)
	valid := Header(cred, "POST", u, "application/json", []byte("{}"), ts, "c29tZX")

	tests := []struct {
		name        string
		header      string
		method      string
		contentType string
		body        []byte
		now         time.Time
		err         error
	}{
		{
			name:   "not hawk",
			header: "Bearer abc",
			err:    ErrHeaderFormat,
		},
		{
			name:   "junk between fields",
			header: strings.Replace(valid, `", hash`, `", bad,hash`, 1),
			err:    ErrHeaderFormat,
		},
		{
			name:   "missing nonce field",
			header: strings.Replace(valid, `, nonce="c29tZX"`, "", 1),
			err:    ErrMissingField,
		},
		{
			name:   "non numeric timestamp",
			header: strings.Replace(valid, `ts="1326542401"`, `ts="132654240x"`, 1),
			err:    ErrHeaderFormat,
		},
		{
			name:   "unknown key id",
			header: strings.Replace(valid, "incoming-some-id-1", "stranger", 1),
			err:    ErrUnknownID,
		},
		{
			name: "tampered body",
			body: []byte(`{"evil": true}`),
			err:  ErrInvalidHash,
		},
		{
			name:        "content type not covered",
			contentType: "text/plain",
			err:         ErrInvalidHash,
		},
		{
			name: "sixty one seconds of skew",
			now:  time.Unix(ts+61, 0),
			err:  ErrStaleTimestamp,
		},
		{
			name:   "wrong method",
			method: "GET",
			err:    ErrInvalidMAC,
		},
		{
			name:   "tampered mac",
			header: strings.Replace(valid, `mac="`, `mac="AAAA`, 1),
			err:    ErrInvalidMAC,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			header := test.header
			if header == "" {
				header = valid
			}
			method := test.method
			if method == "" {
				method = "POST"
			}
			contentType := test.contentType
			if contentType == "" {
				contentType = "application/json"
			}
			body := test.body
			if body == nil {
				body = []byte("{}")
			}
			at := test.now
			if at.IsZero() {
				at = now
			}
			_, _, err := Authenticate(header, method, u, contentType, body, testCredentials, at)
			assert.ErrorIs(t, err, test.err)
		})
	}
}

func TestSkewBoundary(t *testing.T) {
	cred := testCredentials[0]
	u := mustParse(t, "http://127.0.0.1:8080/v1/")
	ts := int64(1326542401)
	header := Header(cred, "GET", u, "", nil, ts, "c29tZX")

	_, _, err := Authenticate(header, "GET", u, "", nil, testCredentials, time.Unix(ts+60, 0))
	assert.NoError(t, err, "sixty seconds of skew is accepted")

	_, _, err = Authenticate(header, "GET", u, "", nil, testCredentials, time.Unix(ts-60, 0))
	assert.NoError(t, err, "skew is symmetric")

	_, _, err = Authenticate(header, "GET", u, "", nil, testCredentials, time.Unix(ts+61, 0))
	assert.ErrorIs(t, err, ErrStaleTimestamp)
}

func TestNewHeaderProducesVerifiableRequests(t *testing.T) {
	cred := testCredentials[0]
	u := mustParse(t, "http://localhost:8081/feed.json")

	header, err := NewHeader(cred, "GET", u, "", nil)
	require.NoError(t, err)

	_, nonce, err := Authenticate(header, "GET", u, "", nil, testCredentials, time.Now())
	require.NoError(t, err)
	assert.Len(t, nonce, 6)
}
