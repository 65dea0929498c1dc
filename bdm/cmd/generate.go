/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sap/go-generics/slices"
	"github.com/spf13/cobra"

	"github.com/sap/besu-devnet-manager/bdm/internal/manifests"
	"github.com/sap/besu-devnet-manager/pkg/artifacts"
	"github.com/sap/besu-devnet-manager/pkg/identity"
	"github.com/sap/besu-devnet-manager/pkg/network"
)

const generateUsage = `Generate network artifacts (keys, genesis, node configs) from a network definition`

const manifestsFile = "manifests.yaml"

type generateOptions struct {
	networkFile string
	outputDir   string
	force       bool
	manifests   bool
}

func newGenerateCmd() *cobra.Command {
	options := &generateOptions{}

	cmd := &cobra.Command{
		Use:          "generate",
		Short:        "Generate network artifacts",
		Long:         generateUsage,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			namespace := c.Flag("namespace").Value.String()

			net, err := network.Load(options.networkFile)
			if err != nil {
				return err
			}
			manifests.RebasePaths(net, filepath.Dir(options.networkFile))

			outputDir := options.outputDir
			if outputDir == "" {
				outputDir = net.Name
			}

			identities, err := identity.Generate(slices.Collect(net.Nodes(), func(node network.Node) string { return node.Name }))
			if err != nil {
				return err
			}

			if err := artifacts.Write(outputDir, net, identities, artifacts.Options{Namespace: namespace, Force: options.force}); err != nil {
				return err
			}

			if options.manifests {
				// rendered with revision 1, as a fresh deployment would be
				objects, err := manifests.Generate(context.TODO(), nil, namespace, net, identities, 1)
				if err != nil {
					return err
				}
				if err := manifests.WriteManifests(filepath.Join(outputDir, manifestsFile), objects); err != nil {
					return err
				}
			}

			fmt.Printf("Artifacts for network %s written to %s\n", net.Name, outputDir)

			return nil
		},
		ValidArgsFunction: func(c *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&options.networkFile, "file", "f", "network.yaml", "Path to the network definition file")
	flags.StringVarP(&options.outputDir, "output", "o", "", "Output directory (defaults to the network name)")
	flags.BoolVar(&options.force, "force", false, "Overwrite an existing, non-empty output directory")
	flags.BoolVar(&options.manifests, "manifests", false, "Additionally render the Kubernetes manifests into "+manifestsFile)

	return cmd
}
