// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

// Package config loads the service configuration from environment
// variables. All settings arrive through the environment; there is no
// configuration file.
package config

import (
	"fmt"
	"net"

	"github.com/asaskevich/govalidator"
	"github.com/spf13/viper"
)

// Feed types recognised in FEEDS__i__TYPE.
const (
	FeedTypeActivityStream = "activity_stream"
	FeedTypeZendesk        = "zendesk"
)

// Config is the full runtime configuration shared by the gateway and the
// ingester.
type Config struct {
	Port                   string        `mapstructure:"port" valid:"required"`
	Elasticsearch          Elasticsearch `mapstructure:"elasticsearch"`
	RedisURI               string        `mapstructure:"redis_uri" valid:"required"`
	Sentry                 Sentry        `mapstructure:"sentry"`
	Feeds                  []Feed        `mapstructure:"feeds"`
	IncomingAccessKeyPairs []KeyPair     `mapstructure:"incoming_access_key_pairs"`
	IncomingIPWhitelist    []string      `mapstructure:"incoming_ip_whitelist"`
}

// Elasticsearch holds the search backend endpoint and signing credentials.
type Elasticsearch struct {
	Host               string `mapstructure:"host" valid:"required"`
	Port               string `mapstructure:"port" valid:"required"`
	Protocol           string `mapstructure:"protocol" valid:"required,in(http|https)"`
	Region             string `mapstructure:"region" valid:"required"`
	AWSAccessKeyID     string `mapstructure:"aws_access_key_id" valid:"required"`
	AWSSecretAccessKey string `mapstructure:"aws_secret_access_key" valid:"required"`
}

// Endpoint returns the base URL of the search backend.
func (e Elasticsearch) Endpoint() string {
	return e.Protocol + "://" + net.JoinHostPort(e.Host, e.Port)
}

// Sentry is optional; an empty DSN disables error reporting.
type Sentry struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

// Feed is one upstream source. Type selects the adapter; the credential
// fields required depend on it. The polling intervals are seconds and
// optional; each adapter has defaults suited to its upstream's rate
// limits.
type Feed struct {
	Type                string   `mapstructure:"type" valid:"required"`
	UniqueID            string   `mapstructure:"unique_id" valid:"required,matches(^[a-z0-9_]+$)"`
	Seed                string   `mapstructure:"seed" valid:"required"`
	AccessKeyID         string   `mapstructure:"access_key_id"`
	SecretAccessKey     string   `mapstructure:"secret_access_key"`
	APIEmail            string   `mapstructure:"api_email"`
	APIKey              string   `mapstructure:"api_key"`
	PollingPageInterval *float64 `mapstructure:"polling_page_interval"`
	PollingSeedInterval *float64 `mapstructure:"polling_seed_interval"`
}

// KeyPair is one incoming API credential.
type KeyPair struct {
	KeyID       string   `mapstructure:"key_id" valid:"required"`
	SecretKey   string   `mapstructure:"secret_key" valid:"required"`
	Permissions []string `mapstructure:"permissions"`
}

// FromEnviron parses and validates the configuration from an environment
// in the os.Environ "KEY=value" form.
func FromEnviron(environ []string) (*Config, error) {
	v := viper.New()
	if err := v.MergeConfigMap(Normalize(environ)); err != nil {
		return nil, fmt.Errorf("merging environment: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if _, err := govalidator.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	seen := make(map[string]struct{}, len(c.Feeds))
	for _, feed := range c.Feeds {
		if _, dup := seen[feed.UniqueID]; dup {
			return fmt.Errorf("duplicate feed unique_id %q", feed.UniqueID)
		}
		seen[feed.UniqueID] = struct{}{}
		if err := feed.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (f Feed) validate() error {
	switch f.Type {
	case FeedTypeActivityStream:
		if f.AccessKeyID == "" || f.SecretAccessKey == "" {
			return fmt.Errorf("feed %q: activity_stream feeds need ACCESS_KEY_ID and SECRET_ACCESS_KEY", f.UniqueID)
		}
	case FeedTypeZendesk:
		if f.APIEmail == "" || f.APIKey == "" {
			return fmt.Errorf("feed %q: zendesk feeds need API_EMAIL and API_KEY", f.UniqueID)
		}
	default:
		return fmt.Errorf("feed %q: unknown feed type %q", f.UniqueID, f.Type)
	}
	if f.PollingPageInterval != nil && *f.PollingPageInterval < 0 {
		return fmt.Errorf("feed %q: POLLING_PAGE_INTERVAL must not be negative", f.UniqueID)
	}
	if f.PollingSeedInterval != nil && *f.PollingSeedInterval < 0 {
		return fmt.Errorf("feed %q: POLLING_SEED_INTERVAL must not be negative", f.UniqueID)
	}
	return nil
}

// FeedIDs returns the unique ids of all configured feeds, in order.
func (c *Config) FeedIDs() []string {
	ids := make([]string, 0, len(c.Feeds))
	for _, feed := range c.Feeds {
		ids = append(ids, feed.UniqueID)
	}
	return ids
}
