// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

// Package docs generates command documentation.
package docs

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
	"github.com/spf13/viper"
)

const (
	formatFlag = "format"
	dirFlag    = "dir"
)

var formats = []string{"md", "man", "rst", "yaml"}

// Command creates the `docs` command. It writes documentation for every
// command reachable from the root into the chosen directory.
func Command(v *viper.Viper) *cobra.Command {
	c := &cobra.Command{
		Use:   "docs",
		Short: "Generate command documentation.",
		Long:  `Generate markdown, man, rst or yaml documentation for the command tree.`,
		RunE: func(cmd *cobra.Command, _ /* args */ []string) error {
			root := cmd
			for root.Parent() != nil {
				root = root.Parent()
			}
			dir := v.GetString(dirFlag)
			switch format := v.GetString(formatFlag); format {
			case "md":
				return doc.GenMarkdownTree(root, dir)
			case "man":
				header := &doc.GenManHeader{Title: root.Use, Section: "1"}
				return doc.GenManTree(root, header, dir)
			case "rst":
				return doc.GenReSTTree(root, dir)
			case "yaml":
				return doc.GenYamlTree(root, dir)
			default:
				return fmt.Errorf("unsupported format %q, supported formats: %v", format, formats)
			}
		},
	}
	c.Flags().String(formatFlag, formats[0], fmt.Sprintf("Supported formats: %v.", formats))
	c.Flags().String(dirFlag, "./", "Directory to write the documentation into.")
	v.BindPFlags(c.Flags())
	return c
}
