// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/actstream/actstream/internal/config"
	"github.com/actstream/actstream/internal/hawk"
	"github.com/actstream/actstream/internal/keyvalue"
	"github.com/actstream/actstream/internal/reporting"
)

// nonceExpire bounds the replay window: a (key id, nonce) pair is
// rejected if presented again within it, and the MAC timestamp skew check
// rejects anything older.
const nonceExpire = 120 * time.Second

// Caller identifies an authenticated client for the rest of the request.
type Caller struct {
	KeyID       string
	Permissions []string
}

type callerContextKey struct{}

func withCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

func callerFrom(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerContextKey{}).(Caller)
	return caller, ok
}

// authenticator guards the /v1 routes. Requests arrive through a trusted
// proxy, so the scheme the client signed is in X-Forwarded-Proto and the
// client's own address is second from last in X-Forwarded-For.
type authenticator struct {
	credentials []hawk.Credential
	permissions map[string][]string
	whitelist   map[string]struct{}
	store       keyvalue.Store
	logger      *zap.Logger
	reporter    reporting.Reporter
	now         func() time.Time
}

func newAuthenticator(keyPairs []config.KeyPair, ipWhitelist []string, store keyvalue.Store,
	logger *zap.Logger, reporter reporting.Reporter, now func() time.Time) *authenticator {
	a := &authenticator{
		permissions: make(map[string][]string, len(keyPairs)),
		whitelist:   make(map[string]struct{}, len(ipWhitelist)),
		store:       store,
		logger:      logger,
		reporter:    reporter,
		now:         now,
	}
	for _, pair := range keyPairs {
		a.credentials = append(a.credentials, hawk.Credential{KeyID: pair.KeyID, Secret: pair.SecretKey})
		a.permissions[pair.KeyID] = pair.Permissions
	}
	for _, ip := range ipWhitelist {
		a.whitelist[ip] = struct{}{}
	}
	return a
}

func (a *authenticator) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		if len(req.Header.Values("X-Forwarded-Proto")) == 0 {
			a.logger.Warn("Failed authentication: no X-Forwarded-Proto header passed")
			writeDetails(res, http.StatusUnauthorized, msgMissingProto)
			return
		}
		if len(req.Header.Values("Authorization")) == 0 {
			writeDetails(res, http.StatusUnauthorized, msgNotProvided)
			return
		}
		contentTypes := req.Header.Values("Content-Type")
		if len(contentTypes) == 0 {
			writeDetails(res, http.StatusUnauthorized, msgMissingContentType)
			return
		}

		if !a.remoteWhitelisted(req) {
			a.logger.Warn("Failed authentication: X-Forwarded-For remote is not whitelisted",
				zap.String("x_forwarded_for", req.Header.Get("X-Forwarded-For")))
			writeDetails(res, http.StatusUnauthorized, msgIncorrect)
			return
		}

		body, err := io.ReadAll(req.Body)
		if err != nil {
			a.serverError(res, err)
			return
		}
		req.Body = io.NopCloser(bytes.NewReader(body))

		signedURL := &url.URL{
			Scheme:   req.Header.Get("X-Forwarded-Proto"),
			Host:     req.Host,
			Path:     req.URL.Path,
			RawQuery: req.URL.RawQuery,
		}
		cred, nonce, err := hawk.Authenticate(req.Header.Get("Authorization"), req.Method, signedURL,
			contentTypes[0], body, a.credentials, a.now())
		if err != nil {
			a.logger.Warn("Failed authentication", zap.Error(err))
			writeDetails(res, http.StatusUnauthorized, msgIncorrect)
			return
		}

		fresh, err := a.store.SetIfNotExists(req.Context(), keyvalue.NonceKey(cred.KeyID, nonce), []byte("1"), nonceExpire)
		if err != nil {
			a.serverError(res, err)
			return
		}
		if !fresh {
			a.logger.Warn("Failed authentication: nonce already seen", zap.String("key_id", cred.KeyID))
			writeDetails(res, http.StatusUnauthorized, msgIncorrect)
			return
		}

		caller := Caller{KeyID: cred.KeyID, Permissions: a.permissions[cred.KeyID]}
		next.ServeHTTP(res, req.WithContext(withCaller(req.Context(), caller)))
	})
}

// remoteWhitelisted trusts the second-from-last X-Forwarded-For entry,
// the client address as appended by the platform edge. The leftmost
// entries are caller-controlled and never trusted.
func (a *authenticator) remoteWhitelisted(req *http.Request) bool {
	entries := strings.Split(req.Header.Get("X-Forwarded-For"), ",")
	if len(entries) < 2 {
		return false
	}
	_, ok := a.whitelist[strings.TrimSpace(entries[len(entries)-2])]
	return ok
}

func (a *authenticator) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		caller, ok := callerFrom(req.Context())
		if !ok || !slices.Contains(caller.Permissions, req.Method) {
			writeDetails(res, http.StatusForbidden, msgNotAuthorized)
			return
		}
		next.ServeHTTP(res, req)
	})
}

func (a *authenticator) serverError(res http.ResponseWriter, err error) {
	a.logger.Error("About to return 500", zap.Error(err))
	a.reporter.CaptureException(err)
	writeDetails(res, http.StatusInternalServerError, msgUnknownError)
}

// recoverPanics converts anything escaping a handler into the opaque 500
// body, reporting it once.
func recoverPanics(logger *zap.Logger, reporter reporting.Reporter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
			defer func() {
				if recovered := recover(); recovered != nil {
					err := fmt.Errorf("panic serving %s %s: %v", req.Method, req.URL.Path, recovered)
					logger.Error("About to return 500", zap.Error(err))
					reporter.CaptureException(err)
					writeDetails(res, http.StatusInternalServerError, msgUnknownError)
				}
			}()
			next.ServeHTTP(res, req)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: res, status: http.StatusOK}
			next.ServeHTTP(recorder, req)
			logger.Info("Request served",
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Int("status", recorder.status),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("x_forwarded_for", req.Header.Get("X-Forwarded-For")))
		})
	}
}
