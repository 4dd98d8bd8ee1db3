// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

// Package sigv4 signs HTTP requests with AWS Signature Version 4 for the
// search backend. The canonical request always covers the header set
// content-type, host and x-amz-date; the Content-Type value used for
// signing is the one the request actually carries.
package sigv4

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"
)

const (
	algorithm     = "AWS4-HMAC-SHA256"
	signedHeaders = "content-type;host;x-amz-date"
	amzDateFormat = "20060102T150405Z"
	dateFormat    = "20060102"
)

// Signer holds the static signing inputs. Service is "es" for the search
// backend. Now is overridable for tests and defaults to time.Now.
type Signer struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Service         string
	Now             func() time.Time
}

// SignRequest computes the signature over the request line, the signed
// headers and the payload, then sets the X-Amz-Date and Authorization
// headers in place. The request's Content-Type header must already be in
// its final form.
func (s *Signer) SignRequest(req *http.Request, body []byte) error {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	instant := now().UTC()
	amzDate := instant.Format(amzDateFormat)
	dateStamp := instant.Format(dateFormat)

	host := req.Host
	if host == "" {
		host = req.URL.Host
	}
	contentType := req.Header.Get("Content-Type")

	payloadHash := hex.EncodeToString(hashSHA256(body))
	canonicalRequest := req.Method + "\n" +
		req.URL.Path + "\n" +
		req.URL.RawQuery + "\n" +
		"content-type:" + contentType + "\n" +
		"host:" + host + "\n" +
		"x-amz-date:" + amzDate + "\n" +
		"\n" +
		signedHeaders + "\n" +
		payloadHash

	credentialScope := dateStamp + "/" + s.Region + "/" + s.Service + "/aws4_request"
	stringToSign := algorithm + "\n" +
		amzDate + "\n" +
		credentialScope + "\n" +
		hex.EncodeToString(hashSHA256([]byte(canonicalRequest)))

	signature := hex.EncodeToString(hmacSHA256(s.signingKey(dateStamp), []byte(stringToSign)))

	req.Header.Set("X-Amz-Date", amzDate)
	req.Header.Set("Authorization", fmt.Sprintf(
		"%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		algorithm, s.AccessKeyID, credentialScope, signedHeaders, signature))
	return nil
}

// signingKey derives the per-day key with the standard four-step HMAC
// chain: AWS4+secret -> date -> region -> service -> aws4_request.
func (s *Signer) signingKey(dateStamp string) []byte {
	key := hmacSHA256([]byte("AWS4"+s.SecretAccessKey), []byte(dateStamp))
	key = hmacSHA256(key, []byte(s.Region))
	key = hmacSHA256(key, []byte(s.Service))
	return hmacSHA256(key, []byte("aws4_request"))
}

func hmacSHA256(key, message []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return mac.Sum(nil)
}

func hashSHA256(data []byte) []byte {
	digest := sha256.Sum256(data)
	return digest[:]
}
