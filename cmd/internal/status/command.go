// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

// Package status probes the health check endpoint of a running instance.
package status

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const hostPortFlag = "status.http.host-port"

// Command returns a status subcommand. It fetches /check from a running
// instance, prints the report, and exits non-zero when the instance is
// unreachable or reports itself down.
func Command(v *viper.Viper, defaultPort string) *cobra.Command {
	c := &cobra.Command{
		Use:   "status",
		Short: "Print the status.",
		Long:  `Print the health check report of a running instance, exit non-zero on any error.`,
		RunE: func(cmd *cobra.Command, _ /* args */ []string) error {
			hostPort := v.GetString(hostPortFlag)
			if hostPort == "" || hostPort == ":" {
				return fmt.Errorf("no host:port to check, set --%s or PORT", hostPortFlag)
			}
			url := checkURL(hostPort)
			resp, err := http.Get(url)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(body))
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("unexpected status code %v from %v", resp.StatusCode, url)
			}
			if first, _, _ := strings.Cut(string(body), "\n"); !strings.HasPrefix(first, "__UP__") {
				return fmt.Errorf("instance at %v reports down", url)
			}
			return nil
		},
	}
	c.Flags().AddGoFlagSet(flags(&flag.FlagSet{}, defaultPort))
	v.BindPFlags(c.Flags())
	return c
}

func flags(flagSet *flag.FlagSet, defaultPort string) *flag.FlagSet {
	flagSet.String(hostPortFlag, ":"+defaultPort,
		"The host:port (e.g. 127.0.0.1:8080 or :8080) of the instance to check.")
	return flagSet
}

func checkURL(hostPort string) string {
	if strings.HasPrefix(hostPort, ":") {
		hostPort = "127.0.0.1" + hostPort
	}
	return "http://" + hostPort + "/check"
}
