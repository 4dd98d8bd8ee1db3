// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

package sigv4

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSigner(now time.Time) *Signer {
	return &Signer{
		AccessKeyID:     "some-id",
		SecretAccessKey: "some-secret",
		Region:          "us-east-2",
		Service:         "es",
		Now:             func() time.Time { return now },
	}
}

func newRequest(t *testing.T, method, url, contentType string, body []byte) *http.Request {
	req, err := http.NewRequest(method, url, strings.NewReader(string(body)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	return req
}

func TestSignBulkRequest(t *testing.T) {
	payload := []byte(`{"index":{"_id":"a","_index":"activities__feed_id__first__date__x","_type":"_doc"}}` + "\n" +
		`{"id":"a"}` + "\n")
	req := newRequest(t, http.MethodPost, "http://127.0.0.1:9200/_bulk", "application/x-ndjson", payload)

	signer := testSigner(time.Date(2012, 1, 14, 12, 0, 1, 0, time.UTC))
	require.NoError(t, signer.SignRequest(req, payload))

	assert.Equal(t, "20120114T120001Z", req.Header.Get("X-Amz-Date"))
	assert.Equal(t,
		"AWS4-HMAC-SHA256 Credential=some-id/20120114/us-east-2/es/aws4_request, "+
			"SignedHeaders=content-type;host;x-amz-date, "+
			"Signature=e3e9ef3a8d6ddf4fe95e4485f2ed19440fe10233e0e2a230f0d1028ab662cb04",
		req.Header.Get("Authorization"))
}

func TestSignSearchRequestWithQueryString(t *testing.T) {
	payload := []byte(`{"size": "1"}`)
	req := newRequest(t, http.MethodGet, "http://127.0.0.1:9200/activities/_search?scroll=15s", "application/json", payload)

	signer := testSigner(time.Date(2012, 1, 15, 12, 0, 2, 0, time.UTC))
	require.NoError(t, signer.SignRequest(req, payload))

	assert.Equal(t,
		"AWS4-HMAC-SHA256 Credential=some-id/20120115/us-east-2/es/aws4_request, "+
			"SignedHeaders=content-type;host;x-amz-date, "+
			"Signature=d20d3d63f2e1ce40f7d8079fae7b32b790c1728c60ecd1eaad66d01eb71bb087",
		req.Header.Get("Authorization"))
}

func TestSignEmptyContentTypeParticipates(t *testing.T) {
	req := newRequest(t, http.MethodGet, "http://127.0.0.1:9200/_aliases", "", nil)

	signer := testSigner(time.Date(2012, 1, 14, 12, 0, 1, 0, time.UTC))
	require.NoError(t, signer.SignRequest(req, nil))

	assert.Equal(t,
		"AWS4-HMAC-SHA256 Credential=some-id/20120114/us-east-2/es/aws4_request, "+
			"SignedHeaders=content-type;host;x-amz-date, "+
			"Signature=8eb4ee4bd7acf5273f886da9a1f529e5e3779082b6714776fd9225aea9ba8b8a",
		req.Header.Get("Authorization"))
}

func TestSignaturesDifferAcrossDays(t *testing.T) {
	payload := []byte("{}")
	day1 := newRequest(t, http.MethodGet, "http://127.0.0.1:9200/_aliases", "application/json", payload)
	day2 := newRequest(t, http.MethodGet, "http://127.0.0.1:9200/_aliases", "application/json", payload)

	require.NoError(t, testSigner(time.Date(2012, 1, 14, 12, 0, 1, 0, time.UTC)).SignRequest(day1, payload))
	require.NoError(t, testSigner(time.Date(2012, 1, 15, 12, 0, 1, 0, time.UTC)).SignRequest(day2, payload))

	assert.NotEqual(t, day1.Header.Get("Authorization"), day2.Header.Get("Authorization"))
	assert.Contains(t, day1.Header.Get("Authorization"), "/20120114/")
	assert.Contains(t, day2.Header.Get("Authorization"), "/20120115/")
}
