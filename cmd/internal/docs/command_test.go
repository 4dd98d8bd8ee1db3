// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

package docs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommand(t *testing.T) {
	tests := []struct {
		file string
		flag string
		err  string
	}{
		{file: "docs.md"},
		{file: "docs.1", flag: "--format=man"},
		{file: "docs.rst", flag: "--format=rst"},
		{file: "docs.yaml", flag: "--format=yaml"},
		{flag: "--format=foo", err: `unsupported format "foo", supported formats: [md man rst yaml]`},
	}
	for _, test := range tests {
		t.Run(test.flag, func(t *testing.T) {
			dir := t.TempDir()
			v := viper.New()
			cmd := Command(v)
			cmd.ParseFlags([]string{test.flag, "--dir=" + dir})
			err := cmd.Execute()
			if test.err != "" {
				require.Error(t, err)
				assert.Equal(t, test.err, err.Error())
				return
			}
			require.NoError(t, err)
			content, err := os.ReadFile(filepath.Join(dir, test.file))
			require.NoError(t, err)
			assert.True(t, strings.Contains(string(content), "documentation"))
		})
	}
}
