/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package artifacts

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"

	"github.com/sap/besu-devnet-manager/pkg/besuconf"
	"github.com/sap/besu-devnet-manager/pkg/genesis"
	"github.com/sap/besu-devnet-manager/pkg/identity"
	"github.com/sap/besu-devnet-manager/pkg/network"
)

// File and directory names below the artifacts directory.
const (
	NetworkFile     = "network.yaml"
	GenesisFile     = "genesis.json"
	StaticNodesFile = "static-nodes.json"
	ConfigFile      = "config.toml"
	NodesDir        = "nodes"
)

// Options for writing an artifacts directory.
type Options struct {
	// Namespace used in the static peer hostnames.
	Namespace string
	// Overwrite an existing, non-empty artifacts directory.
	Force bool
}

// Write produces the artifacts tree for the given network:
//
//	network.yaml
//	genesis.json
//	static-nodes.json
//	nodes/<name>/{key,key.pub,address,config.toml,static-nodes.json}
//
// An existing non-empty directory is refused unless options.Force is set.
func Write(dir string, net *network.Network, identities identity.Set, options Options) error {
	if entries, err := os.ReadDir(dir); err == nil && len(entries) > 0 && !options.Force {
		return fmt.Errorf("output directory %s exists and is not empty (use --force to overwrite)", dir)
	} else if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "error reading output directory %s", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "error creating output directory %s", dir)
	}

	rawNetwork, err := yaml.Marshal(net)
	if err != nil {
		return errors.Wrap(err, "error marshalling network definition")
	}
	if err := os.WriteFile(filepath.Join(dir, NetworkFile), rawNetwork, 0o644); err != nil {
		return errors.Wrapf(err, "error writing %s", NetworkFile)
	}

	g, err := genesis.ForNetwork(net, identities)
	if err != nil {
		return err
	}
	if err := g.WriteFile(filepath.Join(dir, GenesisFile)); err != nil {
		return err
	}

	staticNodes, err := besuconf.StaticNodes(net, identities, "", options.Namespace)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, StaticNodesFile), staticNodes, 0o644); err != nil {
		return errors.Wrapf(err, "error writing %s", StaticNodesFile)
	}

	if err := identities.Write(dir); err != nil {
		return err
	}
	for _, node := range net.Nodes() {
		nodeDir := filepath.Join(dir, NodesDir, node.Name)
		config, err := besuconf.ForNode(net, node).Marshal()
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(nodeDir, ConfigFile), config, 0o644); err != nil {
			return errors.Wrapf(err, "error writing %s for node %s", ConfigFile, node.Name)
		}
		nodeStaticNodes, err := besuconf.StaticNodes(net, identities, node.Name, options.Namespace)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(nodeDir, StaticNodesFile), nodeStaticNodes, 0o644); err != nil {
			return errors.Wrapf(err, "error writing %s for node %s", StaticNodesFile, node.Name)
		}
	}

	return nil
}

// Read loads network and identities back from an artifacts directory
// written by Write.
func Read(dir string) (*network.Network, identity.Set, error) {
	raw, err := os.ReadFile(filepath.Join(dir, NetworkFile))
	if err != nil {
		return nil, nil, errors.Wrapf(err, "error reading network definition from %s", dir)
	}
	// the stored definition is already resolved; no environment substitution here
	net := &network.Network{}
	if err := yaml.UnmarshalStrict(raw, net); err != nil {
		return nil, nil, errors.Wrapf(err, "error parsing network definition from %s", dir)
	}
	net.Default()
	if err := net.Validate(); err != nil {
		return nil, nil, err
	}
	nodes := net.Nodes()
	names := make([]string, len(nodes))
	for i, node := range nodes {
		names[i] = node.Name
	}
	identities, err := identity.Load(dir, names)
	if err != nil {
		return nil, nil, err
	}
	return net, identities, nil
}

