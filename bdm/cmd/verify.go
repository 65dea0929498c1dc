/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/sap/go-generics/slices"
	"github.com/spf13/cobra"

	"github.com/sap/besu-devnet-manager/bdm/internal/release"
	"github.com/sap/besu-devnet-manager/pkg/verify"
)

const verifyUsage = `Verify a deployed network

Waits until all objects of the release are ready, and then runs a set of
consistency checks against the RPC endpoints of the network nodes (chain id,
peer count, validator set, block production).`

type verifyOptions struct {
	timeout time.Duration
	nodes   string
	skipRPC bool
}

func newVerifyCmd() *cobra.Command {
	options := &verifyOptions{}

	cmd := &cobra.Command{
		Use:          "verify NAME",
		Short:        "Verify network",
		Long:         verifyUsage,
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			name := args[0]
			namespace := c.Flag("namespace").Value.String()

			clnt, err := getClient(c.Flag("kubeconfig").Value.String())
			if err != nil {
				return err
			}

			releaseClient := release.NewClient(fullName, clnt)

			rel, err := releaseClient.Get(context.TODO(), namespace, name)
			if err != nil {
				return err
			}
			if rel.Network == nil {
				return fmt.Errorf("release %s/%s has no stored network definition", rel.GetNamespace(), rel.GetName())
			}

			verifier, err := verify.NewVerifier(clnt, namespace, name, rel.Network, verify.Options{
				Nodes:   options.nodes,
				SkipRPC: options.skipRPC,
			})
			if err != nil {
				return err
			}

			ctx := context.TODO()
			if options.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, options.timeout)
				defer cancel()
			}

			if err := verifier.Verify(ctx, rel.Inventory); err != nil {
				return err
			}

			fmt.Printf("Release %s/%s successfully verified\n", rel.GetNamespace(), rel.GetName())

			return nil
		},
		ValidArgsFunction: func(c *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			if clnt, err := getClient(c.Flag("kubeconfig").Value.String()); err == nil {
				releaseClient := release.NewClient(fullName, clnt)
				namespace := c.Flag("namespace").Value.String()
				if namespace == "" {
					namespace = "default"
				}
				ctx, cancel := context.WithTimeout(context.TODO(), 3*time.Second)
				defer cancel()
				if releases, err := releaseClient.List(ctx, namespace); err == nil {
					return slices.Collect(releases, func(release *release.Release) string { return release.GetName() }), cobra.ShellCompDirectiveNoFileComp
				}
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
	}

	flags := cmd.Flags()
	flags.DurationVar(&options.timeout, "timeout", 5*time.Minute, "Time to wait for the verification to complete")
	flags.StringVar(&options.nodes, "nodes", "", "Restrict node level checks to nodes matching this glob pattern")
	flags.BoolVar(&options.skipRPC, "skip-rpc", false, "Skip the RPC level checks; only wait for object readiness")

	return cmd
}
