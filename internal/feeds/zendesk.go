// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

package feeds

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/actstream/actstream/internal/config"
	"github.com/actstream/actstream/internal/elasticsearch"
)

// The upstream API is severely rate limited, so this feed polls slowly.
const (
	zendeskPageInterval = 30 * time.Second
	zendeskSeedInterval = 900 * time.Second
)

// companyNumberRegex extracts the company registration number that agents
// paste into ticket descriptions. Tickets without one produce no
// activities.
var companyNumberRegex = regexp.MustCompile(`Company number:\s*(\d+)`)

// zendeskFeed reads a ticket export and reshapes each ticket into a
// normalised activity keyed on the company it mentions.
type zendeskFeed struct {
	uniqueID     string
	seed         string
	apiEmail     string
	apiKey       string
	pageInterval time.Duration
	seedInterval time.Duration
}

func newZendeskFeed(cfg config.Feed) *zendeskFeed {
	return &zendeskFeed{
		uniqueID:     cfg.UniqueID,
		seed:         cfg.Seed,
		apiEmail:     cfg.APIEmail,
		apiKey:       cfg.APIKey,
		pageInterval: interval(cfg.PollingPageInterval, zendeskPageInterval),
		seedInterval: interval(cfg.PollingSeedInterval, zendeskSeedInterval),
	}
}

func (f *zendeskFeed) UniqueID() string            { return f.uniqueID }
func (f *zendeskFeed) Seed() string                { return f.seed }
func (f *zendeskFeed) PageInterval() time.Duration { return f.pageInterval }
func (f *zendeskFeed) SeedInterval() time.Duration { return f.seedInterval }

// AuthHeaders uses the upstream's token flavour of HTTP Basic: the
// username is "<email>/token" and the password is the API key.
func (f *zendeskFeed) AuthHeaders(string) (http.Header, error) {
	token := base64.StdEncoding.EncodeToString([]byte(f.apiEmail + "/token:" + f.apiKey))
	return http.Header{"Authorization": []string{"Basic " + token}}, nil
}

type zendeskPage struct {
	Tickets []struct {
		ID          int64  `json:"id"`
		CreatedAt   string `json:"created_at"`
		Description string `json:"description"`
	} `json:"tickets"`
	NextPage string `json:"next_page"`
}

func (f *zendeskFeed) ConvertToBulk(page []byte, indexName string) ([]elasticsearch.BulkItem, error) {
	var parsed zendeskPage
	if err := json.Unmarshal(page, &parsed); err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}
	var items []elasticsearch.BulkItem
	for _, ticket := range parsed.Tickets {
		match := companyNumberRegex.FindStringSubmatch(ticket.Description)
		if match == nil {
			continue
		}
		ticketID := "dit:zendesk:Ticket:" + strconv.FormatInt(ticket.ID, 10)
		activityID := ticketID + ":Create"
		items = append(items, elasticsearch.BulkItem{
			Action: elasticsearch.NewIndexAction(indexName, activityID),
			Source: map[string]any{
				"id":              activityID,
				"type":            "Create",
				"published":       ticket.CreatedAt,
				"dit:application": "zendesk",
				"actor": map[string]any{
					"type":                     []string{"Organization", "dit:company"},
					"dit:companiesHouseNumber": match[1],
				},
				"object": map[string]any{
					"type": []string{"Document", "dit:zendesk:Ticket"},
					"id":   ticketID,
				},
			},
		})
	}
	return items, nil
}

func (f *zendeskFeed) NextHref(page []byte) string {
	var parsed zendeskPage
	if err := json.Unmarshal(page, &parsed); err != nil {
		return ""
	}
	return parsed.NextPage
}
