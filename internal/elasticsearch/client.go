// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

// Package elasticsearch is a minimal REST client for the search backend.
// Every request is built explicitly and signed before sending: the wire
// bytes (bulk NDJSON, alias actions, proxied search bodies) are part of
// the service contract, so nothing here is delegated to a higher-level
// client library.
package elasticsearch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// Alias is the logical name readers query. The ingester repoints it at
// fresh indices with an atomic swap.
const Alias = "activities"

// RequestSigner signs one outgoing request in place. The body is passed
// separately because the signature covers the payload hash.
type RequestSigner interface {
	SignRequest(req *http.Request, body []byte) error
}

// ResponseError carries the backend status and body alongside the error.
type ResponseError struct {
	Err        error
	StatusCode int
	Body       []byte
}

func (r ResponseError) Error() string {
	return r.Err.Error()
}

func NewResponseError(err error, code int, body []byte) ResponseError {
	return ResponseError{
		Err:        err,
		StatusCode: code,
		Body:       body,
	}
}

// Client talks to one search backend endpoint.
type Client struct {
	// Http client.
	Client *http.Client
	// Backend base URL, e.g. http://127.0.0.1:9200.
	Endpoint string
	// Signer for every outgoing request; nil sends unsigned requests.
	Signer RequestSigner
}

// request issues one signed request and returns the raw status and body.
// The content type participates in the signature, so it must be final
// before the call.
func (c *Client) request(ctx context.Context, method, path, rawQuery, contentType string, body []byte) (int, []byte, error) {
	url := c.Endpoint + path
	if rawQuery != "" {
		url += "?" + rawQuery
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", contentType)
	if c.Signer != nil {
		if err := c.Signer.SignRequest(req, body); err != nil {
			return 0, nil, fmt.Errorf("signing %s %s: %w", method, path, err)
		}
	}
	res, err := c.Client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()
	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading response of %s %s: %w", method, path, err)
	}
	return res.StatusCode, resBody, nil
}

// requireSuccess converts a non-2xx response into a ResponseError.
func requireSuccess(op string, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	return NewResponseError(fmt.Errorf("%s failed, status code: %d, body: %s", op, status, body), status, body)
}
