// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

// Package env documents the environment variables the binaries read.
package env

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const longTemplate = `
All configuration is provided through environment variables; there are no
configuration files and no command line options for settings. Nested
settings are written with a double underscore between segments, and list
entries carry a zero-based index segment. For example:

environment variable                  setting
------------------------------------------------------------------
ELASTICSEARCH__AWS_ACCESS_KEY_ID      elasticsearch.aws_access_key_id
FEEDS__0__UNIQUE_ID                   unique_id of the first feed

The variables read at startup:
%s
`

// Command creates the `env` command.
func Command() *cobra.Command {
	fs := new(pflag.FlagSet)
	fs.String("PORT", "",
		"Port for the HTTP server to listen on. Required.")
	fs.String("REDIS_URI", "",
		"URI of the Redis deployment, e.g. redis://localhost:6379. Required.")
	fs.String("ELASTICSEARCH__HOST", "",
		"Hostname of the Elasticsearch domain. Required.")
	fs.String("ELASTICSEARCH__PORT", "",
		"Port of the Elasticsearch domain. Required.")
	fs.String("ELASTICSEARCH__PROTOCOL", "",
		"Protocol to reach the domain over, http or https. Required.")
	fs.String("ELASTICSEARCH__REGION", "",
		"AWS region the domain runs in, used for request signing. Required.")
	fs.String("ELASTICSEARCH__AWS_ACCESS_KEY_ID", "",
		"Access key id Elasticsearch requests are signed with. Required.")
	fs.String("ELASTICSEARCH__AWS_SECRET_ACCESS_KEY", "",
		"Secret access key Elasticsearch requests are signed with. Required.")
	fs.String("SENTRY__DSN", "",
		"Sentry DSN. Error reporting is disabled when empty.")
	fs.String("SENTRY__ENVIRONMENT", "",
		"Environment tag attached to Sentry events.")
	fs.String("FEEDS__0__TYPE", "",
		"Adapter for the first feed, activity_stream or zendesk.")
	fs.String("FEEDS__0__UNIQUE_ID", "",
		"Identifier of the first feed: lowercase letters, digits and underscores.")
	fs.String("FEEDS__0__SEED", "",
		"URL of the first page of the first feed.")
	fs.String("FEEDS__0__ACCESS_KEY_ID", "",
		"Key id presented to activity_stream feeds.")
	fs.String("FEEDS__0__SECRET_ACCESS_KEY", "",
		"Secret key presented to activity_stream feeds.")
	fs.String("FEEDS__0__API_EMAIL", "",
		"Account email presented to zendesk feeds.")
	fs.String("FEEDS__0__API_KEY", "",
		"API token presented to zendesk feeds.")
	fs.String("FEEDS__0__POLLING_PAGE_INTERVAL", "",
		"Seconds to sleep between pages of the first feed. Adapter default when unset.")
	fs.String("FEEDS__0__POLLING_SEED_INTERVAL", "",
		"Seconds to sleep after a full pass over the first feed. Adapter default when unset.")
	fs.String("INCOMING_ACCESS_KEY_PAIRS__0__KEY_ID", "",
		"Key id of the first incoming API credential.")
	fs.String("INCOMING_ACCESS_KEY_PAIRS__0__SECRET_KEY", "",
		"Secret of the first incoming API credential.")
	fs.String("INCOMING_ACCESS_KEY_PAIRS__0__PERMISSIONS__0", "",
		"HTTP method the first credential may use, e.g. GET or POST.")
	fs.String("INCOMING_IP_WHITELIST__0", "",
		"Client IP address allowed through the API, as reported by the platform edge.")
	long := fmt.Sprintf(longTemplate, strings.ReplaceAll(fs.FlagUsagesWrapped(0), "      --", "\n"))
	return &cobra.Command{
		Use:   "env",
		Short: "Help about environment variables.",
		Long:  long,
		Run: func(cmd *cobra.Command, _ /* args */ []string) {
			fmt.Fprint(cmd.OutOrStdout(), long)
		},
	}
}
