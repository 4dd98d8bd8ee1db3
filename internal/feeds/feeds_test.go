// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

package feeds

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actstream/actstream/internal/config"
)

func TestFromConfig(t *testing.T) {
	feed, err := FromConfig(activityStreamConfig())
	require.NoError(t, err)
	assert.IsType(t, &activityStreamFeed{}, feed)
	assert.Equal(t, "first", feed.UniqueID())
	assert.Equal(t, "http://localhost:8081/feed.json", feed.Seed())

	feed, err = FromConfig(zendeskConfig())
	require.NoError(t, err)
	assert.IsType(t, &zendeskFeed{}, feed)

	_, err = FromConfig(config.Feed{Type: "carrier_pigeon", UniqueID: "third"})
	require.ErrorContains(t, err, `unknown feed type "carrier_pigeon"`)
}

func TestFromConfigs(t *testing.T) {
	feeds, err := FromConfigs([]config.Feed{activityStreamConfig(), zendeskConfig()})
	require.NoError(t, err)
	require.Len(t, feeds, 2)
	assert.Equal(t, "first", feeds[0].UniqueID())
	assert.Equal(t, "second", feeds[1].UniqueID())

	_, err = FromConfigs([]config.Feed{activityStreamConfig(), {Type: "nope", UniqueID: "third"}})
	require.ErrorContains(t, err, `feed "third"`)
}
