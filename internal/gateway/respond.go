// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"encoding/json"
	"net/http"
)

const serverName = "activity-stream"

// Messages returned to callers. The wording is part of the API contract.
const (
	msgMissingProto       = "The X-Forwarded-Proto header was not set."
	msgNotProvided        = "Authentication credentials were not provided."
	msgMissingContentType = "Content-Type header was not set. It must be set for authentication, even if as the empty string."
	msgIncorrect          = "Incorrect authentication credentials."
	msgNotAuthorized      = "You are not authorized to perform this action."
	msgUnknownError       = "An unknown error occurred."
	msgScrollNotFound     = "Scroll ID not found."
	msgNotFound           = "Not Found."
)

func writeJSON(res http.ResponseWriter, status int, body any) {
	res.Header().Set("Server", serverName)
	res.Header().Set("Content-Type", "application/json; charset=utf-8")
	res.WriteHeader(status)
	_ = json.NewEncoder(res).Encode(body)
}

// writeDetails writes the {"details": ...} error shape every non-2xx JSON
// response uses.
func writeDetails(res http.ResponseWriter, status int, details string) {
	writeJSON(res, status, map[string]string{"details": details})
}

// writeRaw proxies a backend reply byte for byte.
func writeRaw(res http.ResponseWriter, status int, contentType string, body []byte) {
	res.Header().Set("Server", serverName)
	res.Header().Set("Content-Type", contentType)
	res.WriteHeader(status)
	_, _ = res.Write(body)
}
