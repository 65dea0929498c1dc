/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package cmd

import (
	"context"
	"time"

	"github.com/sap/go-generics/slices"
	"github.com/spf13/cobra"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/cli-runtime/pkg/genericclioptions"
)

const (
	fullName  = "bdm.cs.sap.com"
	shortName = "bdm"
)

const rootUsage = `A Hyperledger Besu devnet manager

Common actions for bdm:
- bdm generate           Generate network artifacts (keys, genesis, node configs)
- bdm up                 Deploy a generated network to a Kubernetes cluster
- bdm down               Remove a deployed network from the cluster
- bdm status             Show the status of a deployed network
- bdm ls                 List deployed networks
- bdm verify             Verify that a deployed network is ready and producing blocks
`

func newRootCmd() *cobra.Command {
	configFlags := genericclioptions.NewConfigFlags(true)
	configFlags.Namespace = ref("default")

	cmd := &cobra.Command{
		Use:          shortName,
		Short:        "A Hyperledger Besu devnet manager",
		Long:         rootUsage,
		SilenceUsage: true,
	}

	cmd.Flags().SortFlags = false
	configFlags.AddFlags(cmd.PersistentFlags())

	if err := cmd.RegisterFlagCompletionFunc("namespace", func(c *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if clnt, err := getClient(c.Flag("kubeconfig").Value.String()); err == nil {
			namespaceList := &corev1.NamespaceList{}
			ctx, cancel := context.WithTimeout(context.TODO(), 3*time.Second)
			defer cancel()
			if err := clnt.List(ctx, namespaceList); err == nil {
				return slices.Collect(namespaceList.Items, func(namespace corev1.Namespace) string { return namespace.Name }), cobra.ShellCompDirectiveNoFileComp
			}
		}
		return nil, cobra.ShellCompDirectiveDefault
	}); err != nil {
		panic(err)
	}

	cmd.AddCommand(
		newVersionCmd(),
		newGenerateCmd(),
		newUpCmd(),
		newDownCmd(),
		newStatusCmd(),
		newListCmd(),
		newVerifyCmd(),
	)

	return cmd
}

func Execute() error {
	return newRootCmd().Execute()
}
