/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/sap/go-generics/slices"

	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/sap/besu-devnet-manager/bdm/internal/release"
	"github.com/sap/besu-devnet-manager/internal/clientfactory"
	"github.com/sap/besu-devnet-manager/pkg/applier"
	"github.com/sap/besu-devnet-manager/pkg/cluster"
)

func ref[T any](x T) *T {
	return &x
}

func must[T any](x T, err error) T {
	if err != nil {
		panic(err)
	}
	return x
}

func getClient(kubeConfigPath string) (cluster.Client, error) {
	if kubeConfigPath == "" {
		kubeConfigPath = os.Getenv("KUBECONFIG")
	}
	if kubeConfigPath == "" {
		return nil, fmt.Errorf("no kubeconfig was specified")
	}
	kubeConfig, err := os.ReadFile(kubeConfigPath)
	if err != nil {
		return nil, err
	}
	config, err := clientcmd.RESTConfigFromKubeConfig(kubeConfig)
	if err != nil {
		return nil, err
	}
	scheme := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(apiextensionsv1.AddToScheme(scheme))
	return clientfactory.NewClientFor(config, scheme, fullName)
}

func isEphemeralError(err error) bool {
	if apierrors.IsConflict(err) {
		return true
	}
	return false
}

func formatTimestamp(t time.Time) string {
	d := time.Since(t)
	if d > 24*time.Hour {
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	} else if d > time.Hour {
		return fmt.Sprintf("%dh", d/time.Hour)
	} else if d > time.Minute {
		return fmt.Sprintf("%dm", d/time.Minute)
	} else {
		return fmt.Sprintf("%ds", d/time.Second)
	}
}

type releaseDetails struct {
	Namespace           string          `json:"namespace"`
	Name                string          `json:"name"`
	Revision            int64           `json:"revision"`
	State               string          `json:"state"`
	ChainID             int64           `json:"chainId,omitempty"`
	Nodes               int64           `json:"nodes,omitempty"`
	NumAllObjects       int64           `json:"numAllObjects"`
	NumReadyObjects     int64           `json:"numReadyObjects"`
	NumCompletedObjects int64           `json:"numCompletedObjects"`
	CreatedAt           string          `json:"createdAt"`
	LastUpdatedAt       string          `json:"lastUpdatedAt"`
	Objects             []objectDetails `json:"objects,omitempty"`
}

type objectDetails struct {
	Type      string `json:"type"`
	Namespace string `json:"namespace,omitempty"`
	Name      string `json:"name"`
	Phase     string `json:"phase,omitempty"`
	Status    string `json:"status,omitempty"`
}

func getReleaseDetails(release *release.Release, withObjects bool) *releaseDetails {
	details := &releaseDetails{
		Namespace:           release.GetNamespace(),
		Name:                release.GetName(),
		Revision:            release.Revision,
		State:               string(release.State),
		NumAllObjects:       int64(len(release.Inventory)),
		NumReadyObjects:     int64(slices.Count(release.Inventory, func(item *applier.InventoryItem) bool { return item.Phase == applier.PhaseReady })),
		NumCompletedObjects: int64(slices.Count(release.Inventory, func(item *applier.InventoryItem) bool { return item.Phase == applier.PhaseCompleted })),
	}
	if t := release.GetCreationTimestamp(); t != nil {
		details.CreatedAt = formatTimestamp(*t)
	}
	if t := release.GetUpdateTimestamp(); t != nil {
		details.LastUpdatedAt = formatTimestamp(*t)
	}
	if release.Network != nil {
		details.ChainID = release.Network.ChainID
		details.Nodes = int64(len(release.Network.Nodes()))
	}
	if withObjects {
		details.Objects = slices.Collect(release.Inventory, func(item *applier.InventoryItem) objectDetails {
			return objectDetails{
				Type:      item.GroupVersionKind().GroupKind().String(),
				Namespace: item.Namespace,
				Name:      item.Name,
				Phase:     string(item.Phase),
				Status:    string(item.Status),
			}
		})
	}
	return details
}
