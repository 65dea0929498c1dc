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

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/sap/besu-devnet-manager/bdm/internal/backoff"
	"github.com/sap/besu-devnet-manager/bdm/internal/release"
	"github.com/sap/besu-devnet-manager/internal/metrics"
	"github.com/sap/besu-devnet-manager/pkg/applier"
)

const downUsage = `Tear down a deployed network and remove all its objects from the cluster`

type downOptions struct {
	timeout time.Duration
}

func newDownCmd() *cobra.Command {
	options := &downOptions{}

	cmd := &cobra.Command{
		Use:          "down NAME",
		Short:        "Tear down network",
		Long:         downUsage,
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) (err error) {
			name := args[0]
			namespace := c.Flag("namespace").Value.String()

			clnt, err := getClient(c.Flag("kubeconfig").Value.String())
			if err != nil {
				return err
			}

			applr := applier.NewApplier(fullName, clnt, applier.ApplierOptions{
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
				return err
			}

			if ok, msg, err := applr.IsDeletionAllowed(context.TODO(), &rel.Inventory, ownerId); err != nil {
				return err
			} else if !ok {
				return fmt.Errorf("deletion of release %s/%s is not allowed: %s", rel.GetNamespace(), rel.GetName(), msg)
			}

			if err := releaseClient.Delete(context.TODO(), rel); err != nil {
				return err
			}

			rel, err = releaseClient.Get(context.TODO(), namespace, name)
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
				rel.State = release.StateDeleting
				done, err := applr.Delete(context.TODO(), &rel.Inventory, ownerId)
				if err != nil && !isEphemeralError(err) {
					return err
				}
				if err == nil && done {
					break
				}
				if err := releaseClient.Update(context.TODO(), rel); err != nil {
					return err
				}
				select {
				case <-time.After(backoff.Next()):
				case <-timeout:
					return fmt.Errorf("timeout deleting release %s/%s", rel.GetNamespace(), rel.GetName())
				}
			}

			fmt.Printf("Release %s/%s successfully deleted\n", rel.GetNamespace(), rel.GetName())

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
	flags.DurationVar(&options.timeout, "timeout", 10*time.Minute, "Time to wait for the operation to complete")

	return cmd
}
