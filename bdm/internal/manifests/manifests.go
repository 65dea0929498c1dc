/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package manifests

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"sigs.k8s.io/controller-runtime/pkg/client"
	kyaml "sigs.k8s.io/yaml"

	"github.com/sap/besu-devnet-manager/internal/chart"
	"github.com/sap/besu-devnet-manager/pkg/cluster"
	"github.com/sap/besu-devnet-manager/pkg/identity"
	"github.com/sap/besu-devnet-manager/pkg/manifests"
	"github.com/sap/besu-devnet-manager/pkg/manifests/besu"
	"github.com/sap/besu-devnet-manager/pkg/manifests/paladin"
	"github.com/sap/besu-devnet-manager/pkg/network"
	"github.com/sap/besu-devnet-manager/pkg/types"
)

// Generate renders all Kubernetes objects of a network: the Besu node
// manifests (including extra manifest templates, if any), plus the Paladin
// chart when enabled. The client may be nil; then rendering happens offline.
func Generate(ctx context.Context, clnt cluster.Client, namespace string, net *network.Network, identities identity.Set, revision int64) ([]client.Object, error) {
	ctx = manifests.NewContextWithRevision(ctx, revision)

	besuGenerator, err := besu.NewGenerator(net, identities, clnt)
	if err != nil {
		return nil, err
	}
	objects, err := besuGenerator.Generate(ctx, namespace, net.Name, types.UnstructurableMap(nil))
	if err != nil {
		return nil, err
	}

	if net.Paladin != nil && net.Paladin.Enabled {
		puller, err := chart.NewPuller()
		if err != nil {
			return nil, err
		}
		chrt, err := puller.Get(ctx, net.Paladin.Repository, net.Paladin.Chart, net.Paladin.Version)
		if err != nil {
			return nil, err
		}
		paladinObjects, err := paladin.NewGenerator(chrt, net.Paladin, clnt).Generate(ctx, namespace, net.Name, nil)
		if err != nil {
			return nil, err
		}
		objects = append(objects, paladinObjects...)
	}

	return objects, nil
}

// RebasePaths makes the relative file references of a network definition
// (the extra manifests directory, Paladin values files) absolute, against
// the given base directory. Users write those paths relative to the network
// definition file, not relative to where bdm happens to be invoked.
func RebasePaths(net *network.Network, baseDir string) {
	if net.ExtraManifests != "" && !filepath.IsAbs(net.ExtraManifests) {
		net.ExtraManifests = filepath.Join(baseDir, net.ExtraManifests)
	}
	if net.Paladin != nil {
		for i, path := range net.Paladin.ValuesFiles {
			if !filepath.IsAbs(path) {
				net.Paladin.ValuesFiles[i] = filepath.Join(baseDir, path)
			}
		}
	}
}

// ApplyValuesFiles merges the given YAML files into the network definition,
// in order of appearance; later files win. The merged network is defaulted
// and validated again.
func ApplyValuesFiles(net *network.Network, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	merged := net.ToUnstructured()
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "error reading values file %s", path)
		}
		var values map[string]any
		if err := kyaml.Unmarshal(raw, &values); err != nil {
			return errors.Wrapf(err, "error parsing values file %s", path)
		}
		manifests.MergeMapInto(merged, values)
	}
	rawMerged, err := json.Marshal(merged)
	if err != nil {
		return errors.Wrap(err, "error marshalling network definition")
	}
	overridden := &network.Network{}
	if err := kyaml.UnmarshalStrict(rawMerged, overridden); err != nil {
		return errors.Wrap(err, "error applying values files")
	}
	overridden.Default()
	if err := overridden.Validate(); err != nil {
		return err
	}
	*net = *overridden
	return nil
}

// WriteManifests writes the objects as a multi-document YAML stream.
func WriteManifests(path string, objects []client.Object) error {
	var buf bytes.Buffer
	for _, object := range objects {
		raw, err := kyaml.Marshal(object)
		if err != nil {
			return errors.Wrap(err, "error marshalling object")
		}
		buf.WriteString("---\n")
		buf.Write(raw)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
