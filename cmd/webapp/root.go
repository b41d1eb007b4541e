// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "webapp",
		Short:        "A web app which signs users in with ADFS using OpenID Connect",
		SilenceUsage: true,
	}
	cmd.AddCommand(newServeCommand())
	return cmd
}
