// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

// Package hawk implements the Hawk-style MAC scheme used both to sign
// outbound feed requests and to verify inbound API requests. The MAC is
// HMAC-SHA-256 over the request timestamp, nonce, method, path, host, port
// and payload hash; the payload hash covers content type and body.
package hawk

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Authentication failure reasons. Callers present them all as the same
// credential error; the distinction is for logs and tests.
var (
	ErrHeaderFormat   = errors.New("invalid authorization header")
	ErrMissingField   = errors.New("missing required header field")
	ErrUnknownID      = errors.New("unidentified access key id")
	ErrInvalidHash    = errors.New("invalid payload hash")
	ErrStaleTimestamp = errors.New("stale timestamp")
	ErrInvalidMAC     = errors.New("invalid mac")
)

// MaxSkew is the largest accepted difference between the header timestamp
// and the verifier's clock. Exactly MaxSkew is still accepted.
const MaxSkew = 60 * time.Second

// Credential is one key pair. The same shape serves outbound feed
// credentials and inbound API credentials.
type Credential struct {
	KeyID  string
	Secret string
}

var (
	fieldPattern  = regexp.MustCompile(`^[a-z]+="[^"]*"$`)
	digitsPattern = regexp.MustCompile(`^\d+$`)
)

// PayloadHash returns the base64 SHA-256 of the canonical payload string,
// which covers the content type and the body.
func PayloadHash(contentType string, body []byte) string {
	h := sha256.New()
	h.Write([]byte("hawk.1.payload\n"))
	h.Write([]byte(contentType))
	h.Write([]byte("\n"))
	h.Write(body)
	h.Write([]byte("\n"))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func mac(secret, ts, nonce, method, path, host, port, payloadHash string) string {
	message := "hawk.1.header\n" +
		ts + "\n" +
		nonce + "\n" +
		method + "\n" +
		path + "\n" +
		host + "\n" +
		port + "\n" +
		payloadHash + "\n" +
		"\n"
	m := hmac.New(sha256.New, []byte(secret))
	m.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(m.Sum(nil))
}

// hostPort splits a URL into host and port, defaulting the port from the
// scheme when the URL carries none.
func hostPort(u *url.URL) (string, string) {
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		if u.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}
	return host, port
}

func resource(u *url.URL) string {
	path := u.Path
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path
}

// Header builds the Authorization header value for the given instant and
// nonce. Outbound callers normally use NewHeader instead.
func Header(cred Credential, method string, u *url.URL, contentType string, body []byte, ts int64, nonce string) string {
	host, port := hostPort(u)
	payloadHash := PayloadHash(contentType, body)
	signature := mac(cred.Secret, strconv.FormatInt(ts, 10), nonce, method, resource(u), host, port, payloadHash)
	return fmt.Sprintf(`Hawk mac="%s", hash="%s", id="%s", ts="%d", nonce="%s"`,
		signature, payloadHash, cred.KeyID, ts, nonce)
}

// NewHeader is Header at the current time with a fresh random nonce.
func NewHeader(cred Credential, method string, u *url.URL, contentType string, body []byte) (string, error) {
	nonce, err := newNonce()
	if err != nil {
		return "", err
	}
	return Header(cred, method, u, contentType, body, time.Now().Unix(), nonce), nil
}

func newNonce() (string, error) {
	raw := make([]byte, 5)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw)[:6], nil
}

// Authenticate verifies an Authorization header against the request it
// claims to sign. The URL must already carry the scheme the client signed
// (for inbound requests, the X-Forwarded-Proto value). It returns the
// matched credential and the request nonce for replay tracking. Key id,
// payload hash and MAC comparisons are constant time.
func Authenticate(header, method string, u *url.URL, contentType string, body []byte, credentials []Credential, now time.Time) (Credential, string, error) {
	fields, err := parseHeader(header)
	if err != nil {
		return Credential{}, "", err
	}
	for _, required := range []string{"id", "ts", "nonce", "mac", "hash"} {
		if _, ok := fields[required]; !ok {
			return Credential{}, "", ErrMissingField
		}
	}
	if !digitsPattern.MatchString(fields["ts"]) {
		return Credential{}, "", ErrHeaderFormat
	}

	var matched *Credential
	for i := range credentials {
		if hmac.Equal([]byte(credentials[i].KeyID), []byte(fields["id"])) && matched == nil {
			matched = &credentials[i]
		}
	}
	if matched == nil {
		return Credential{}, "", ErrUnknownID
	}

	payloadHash := PayloadHash(contentType, body)
	if !hmac.Equal([]byte(payloadHash), []byte(fields["hash"])) {
		return Credential{}, "", ErrInvalidHash
	}

	ts, err := strconv.ParseInt(fields["ts"], 10, 64)
	if err != nil {
		return Credential{}, "", ErrHeaderFormat
	}
	skew := now.Unix() - ts
	if skew < 0 {
		skew = -skew
	}
	if time.Duration(skew)*time.Second > MaxSkew {
		return Credential{}, "", ErrStaleTimestamp
	}

	host, port := hostPort(u)
	expected := mac(matched.Secret, fields["ts"], fields["nonce"], method, resource(u), host, port, payloadHash)
	if !hmac.Equal([]byte(expected), []byte(fields["mac"])) {
		return Credential{}, "", ErrInvalidMAC
	}
	return *matched, fields["nonce"], nil
}

func parseHeader(header string) (map[string]string, error) {
	rest, ok := strings.CutPrefix(header, "Hawk ")
	if !ok {
		return nil, ErrHeaderFormat
	}
	fields := map[string]string{}
	for _, part := range strings.Split(rest, ", ") {
		if !fieldPattern.MatchString(part) {
			return nil, ErrHeaderFormat
		}
		name, value, _ := strings.Cut(part, "=")
		fields[name] = strings.Trim(value, `"`)
	}
	return fields, nil
}
