// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"sort"
	"strconv"
	"strings"
)

const separator = "__"

// Normalize converts double-underscore-delimited environment variables into
// a nested structure. Each KEY__SUB segment introduces a level; a level whose
// keys are all numeric becomes an ordered slice instead of a map. Map keys
// are lowercased so they line up with mapstructure tags.
//
// PORT=8080 FEEDS__1__UNIQUE_ID=a FEEDS__2__UNIQUE_ID=b becomes
// {"port": "8080", "feeds": [{"unique_id": "a"}, {"unique_id": "b"}]}.
func Normalize(environ []string) map[string]any {
	flat := make(map[string]string, len(environ))
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		flat[key] = value
	}
	nested, ok := nest(flat).(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return nested
}

func nest(flat map[string]string) any {
	entries := map[string]any{}
	groups := map[string]map[string]string{}
	for key, value := range flat {
		head, rest, found := strings.Cut(key, separator)
		if !found {
			entries[key] = value
			continue
		}
		group, ok := groups[head]
		if !ok {
			group = map[string]string{}
			groups[head] = group
		}
		group[rest] = value
	}
	for head, group := range groups {
		entries[head] = nest(group)
	}

	if len(entries) > 0 && allKeysNumeric(entries) {
		return orderedValues(entries)
	}
	lowered := make(map[string]any, len(entries))
	for key, value := range entries {
		lowered[strings.ToLower(key)] = value
	}
	return lowered
}

func allKeysNumeric(entries map[string]any) bool {
	for key := range entries {
		if _, err := strconv.Atoi(key); err != nil {
			return false
		}
	}
	return true
}

func orderedValues(entries map[string]any) []any {
	type indexed struct {
		n   int
		key string
	}
	keys := make([]indexed, 0, len(entries))
	for key := range entries {
		n, _ := strconv.Atoi(key)
		keys = append(keys, indexed{n: n, key: key})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].n < keys[j].n })
	values := make([]any, 0, len(keys))
	for _, k := range keys {
		values = append(values, entries[k.key])
	}
	return values
}
