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

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/sap/besu-devnet-manager/bdm/internal/backoff"
	"github.com/sap/besu-devnet-manager/bdm/internal/manifests"
	"github.com/sap/besu-devnet-manager/bdm/internal/release"
	"github.com/sap/besu-devnet-manager/internal/metrics"
	"github.com/sap/besu-devnet-manager/pkg/applier"
	"github.com/sap/besu-devnet-manager/pkg/artifacts"
	"github.com/sap/besu-devnet-manager/pkg/network"
)

const upUsage = `Deploy a generated network to a Kubernetes cluster`

type upOptions struct {
	setValues       []string
	valuesFiles     []string
	timeout         time.Duration
	createNamespace bool
}

func newUpCmd() *cobra.Command {
	options := &upOptions{}

	cmd := &cobra.Command{
		Use:          "up NAME DIR",
		Short:        "Deploy network",
		Long:         upUsage,
		SilenceUsage: true,
		Args:         cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) (err error) {
			name := args[0]
			artifactsDir := args[1]
			namespace := c.Flag("namespace").Value.String()

			net, identities, err := artifacts.Read(artifactsDir)
			if err != nil {
				return err
			}
			if net.Name != name {
				return fmt.Errorf("network %s in %s does not match release name %s", net.Name, artifactsDir, name)
			}
			manifests.RebasePaths(net, artifactsDir)
			if err := manifests.ApplyValuesFiles(net, options.valuesFiles); err != nil {
				return err
			}
			if err := network.ApplySetValues(net, options.setValues); err != nil {
				return err
			}

			clnt, err := getClient(c.Flag("kubeconfig").Value.String())
			if err != nil {
				return err
			}

			missingNamespacesPolicy := applier.MissingNamespacesPolicyDoNotCreate
			if options.createNamespace {
				missingNamespacesPolicy = applier.MissingNamespacesPolicyCreate
			}
			applr := applier.NewApplier(fullName, clnt, applier.ApplierOptions{
				UpdatePolicy:            ref(applier.UpdatePolicySsaOverride),
				MissingNamespacesPolicy: &missingNamespacesPolicy,
				Metrics: applier.ApplierMetrics{
					ReadCounter:   metrics.OperationCounter(name, "read"),
					CreateCounter: metrics.OperationCounter(name, "create"),
					UpdateCounter: metrics.OperationCounter(name, "update"),
					DeleteCounter: metrics.OperationCounter(name, "delete"),
				},
			})

			releaseClient := release.NewClient(fullName, clnt)

			ownerId := fullName + "/" + namespace + "/" + name

			rel, err := releaseClient.Get(context.TODO(), namespace, name)
			if err != nil {
				if apierrors.IsNotFound(err) {
					rel, err = releaseClient.Create(context.TODO(), namespace, name)
					if err != nil {
						return err
					}
				} else {
					return err
				}
			}

			if rel.IsDeleting() {
				return fmt.Errorf("release %s/%s is being deleted; updates are not allowed in this state", rel.GetNamespace(), rel.GetName())
			}

			rel.Revision += 1
			rel.Network = net

			objects, err := manifests.Generate(context.TODO(), clnt, namespace, net, identities, rel.Revision)
			if err != nil {
				return err
			}

			backoff := backoff.New()

			var timeout <-chan time.Time
			if options.timeout > 0 {
				timeout = time.After(options.timeout)
			}

			defer func() {
				if err != nil {
					rel.State = release.StateError
				}
				if updateErr := releaseClient.Update(context.TODO(), rel); updateErr != nil {
					err = utilerrors.NewAggregate([]error{err, updateErr})
				}
			}()

			for {
				rel.State = release.StateProcessing
				done, err := applr.Apply(context.TODO(), &rel.Inventory, objects, namespace, ownerId, rel.Revision)
				if err != nil && !isEphemeralError(err) {
					return err
				}
				if err == nil && done {
					rel.State = release.StateReady
					break
				}
				if err := releaseClient.Update(context.TODO(), rel); err != nil {
					return err
				}
				select {
				case <-time.After(backoff.Next()):
				case <-timeout:
					return fmt.Errorf("timeout applying release %s/%s", rel.GetNamespace(), rel.GetName())
				}
			}

			fmt.Printf("Release %s/%s successfully applied\n", rel.GetNamespace(), rel.GetName())

			return nil
		},
		ValidArgsFunction: func(c *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveDefault
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
			return nil, cobra.ShellCompDirectiveDefault
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVar(&options.setValues, "set", nil, "Override network settings (path=value; can be repeated)")
	flags.StringArrayVar(&options.valuesFiles, "values", nil, "Path to a YAML file with network setting overrides (can be repeated, values will be merged in order of appearance)")
	flags.DurationVar(&options.timeout, "timeout", 10*time.Minute, "Time to wait for the operation to complete")
	flags.BoolVar(&options.createNamespace, "create-namespace", false, "Create the target namespace if it does not exist")

	return cmd
}
