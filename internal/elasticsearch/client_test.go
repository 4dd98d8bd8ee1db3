// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

package elasticsearch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type headerSigner struct {
	header string
	value  string
	body   []byte
}

func (s *headerSigner) SignRequest(req *http.Request, body []byte) error {
	s.body = body
	req.Header.Set(s.header, s.value)
	return nil
}

type failingSigner struct{}

func (failingSigner) SignRequest(*http.Request, []byte) error {
	return errors.New("no credentials")
}

func TestClientSignsEveryRequest(t *testing.T) {
	var receivedAuth string
	testServer := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		receivedAuth = req.Header.Get("Authorization")
		res.Write([]byte(`{}`))
	}))
	defer testServer.Close()

	signer := &headerSigner{header: "Authorization", value: "AWS4-HMAC-SHA256 Credential=test"}
	c := &Client{Client: testServer.Client(), Endpoint: testServer.URL, Signer: signer}
	err := c.CreateIndex(context.Background(), "activities__feed_id__first__date__20180101t000000__aaaaaaaa")
	require.NoError(t, err)

	assert.Equal(t, "AWS4-HMAC-SHA256 Credential=test", receivedAuth)
	assert.Equal(t, []byte("{}"), signer.body)
}

func TestClientSignerFailureAbortsRequest(t *testing.T) {
	requested := false
	testServer := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		requested = true
	}))
	defer testServer.Close()

	c := &Client{Client: testServer.Client(), Endpoint: testServer.URL, Signer: failingSigner{}}
	err := c.CreateIndex(context.Background(), "activities__feed_id__first__date__20180101t000000__aaaaaaaa")
	require.ErrorContains(t, err, "no credentials")
	assert.False(t, requested)
}

func TestClientReportsStatusAndBody(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		res.WriteHeader(http.StatusInternalServerError)
		res.Write([]byte(`{"error":"broken"}`))
	}))
	defer testServer.Close()

	c := &Client{Client: testServer.Client(), Endpoint: testServer.URL}
	err := c.RefreshIndex(context.Background(), "activities__feed_id__first__date__20180101t000000__aaaaaaaa")
	require.ErrorContains(t, err, "status code: 500")
	require.ErrorContains(t, err, `{"error":"broken"}`)

	var resErr ResponseError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, http.StatusInternalServerError, resErr.StatusCode)
	assert.Equal(t, []byte(`{"error":"broken"}`), resErr.Body)
}

func TestClientHonorsContextCancellation(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		res.Write([]byte(`{}`))
	}))
	defer testServer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &Client{Client: testServer.Client(), Endpoint: testServer.URL}
	err := c.RefreshIndex(ctx, "activities__feed_id__first__date__20180101t000000__aaaaaaaa")
	require.ErrorIs(t, err, context.Canceled)
}
