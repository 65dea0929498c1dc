/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package besuconf

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/sap/besu-devnet-manager/pkg/identity"
	"github.com/sap/besu-devnet-manager/pkg/network"
)

// In-container paths; the statefulset templates mount the generated
// ConfigMaps, the node key Secret and the data volume at these locations.
const (
	DataPath        = "/opt/besu/data"
	ConfigPath      = "/etc/besu/config/config.toml"
	StaticNodesPath = "/etc/besu/config/static-nodes.json"
	GenesisPath     = "/etc/besu/genesis/genesis.json"
	KeyPath         = "/etc/besu/keys/key"
)

// Well-known Besu ports.
const (
	P2PPort     = 30303
	RPCHTTPPort = 8545
	RPCWSPort   = 8546
	MetricsPort = 9545
)

// Config is the Besu TOML configuration of one node. Discovery is disabled;
// peers are wired statically through the static nodes file.
type Config struct {
	Identity           string   `toml:"identity"`
	DataPath           string   `toml:"data-path"`
	GenesisFile        string   `toml:"genesis-file"`
	NodePrivateKeyFile string   `toml:"node-private-key-file"`
	StaticNodesFile    string   `toml:"static-nodes-file"`
	DiscoveryEnabled   bool     `toml:"discovery-enabled"`
	P2PHost            string   `toml:"p2p-host"`
	P2PPort            int      `toml:"p2p-port"`
	RPCHTTPEnabled     bool     `toml:"rpc-http-enabled"`
	RPCHTTPHost        string   `toml:"rpc-http-host"`
	RPCHTTPPort        int      `toml:"rpc-http-port"`
	RPCHTTPAPI         []string `toml:"rpc-http-api"`
	RPCWSEnabled       bool     `toml:"rpc-ws-enabled"`
	RPCWSHost          string   `toml:"rpc-ws-host"`
	RPCWSPort          int      `toml:"rpc-ws-port"`
	HostAllowlist      []string `toml:"host-allowlist"`
	MinGasPrice        int64    `toml:"min-gas-price"`
	MetricsEnabled     bool     `toml:"metrics-enabled"`
	MetricsHost        string   `toml:"metrics-host"`
	MetricsPort        int      `toml:"metrics-port"`
	Logging            string   `toml:"logging,omitempty"`
}

// ForNode returns the effective configuration of the given node.
func ForNode(net *network.Network, node network.Node) Config {
	return Config{
		Identity:           node.Name,
		DataPath:           DataPath,
		GenesisFile:        GenesisPath,
		NodePrivateKeyFile: KeyPath,
		StaticNodesFile:    StaticNodesPath,
		DiscoveryEnabled:   false,
		P2PHost:            "0.0.0.0",
		P2PPort:            P2PPort,
		RPCHTTPEnabled:     true,
		RPCHTTPHost:        "0.0.0.0",
		RPCHTTPPort:        RPCHTTPPort,
		RPCHTTPAPI:         net.RPC.APIs,
		RPCWSEnabled:       true,
		RPCWSHost:          "0.0.0.0",
		RPCWSPort:          RPCWSPort,
		HostAllowlist:      net.RPC.HostAllowlist,
		MinGasPrice:        0,
		MetricsEnabled:     true,
		MetricsHost:        "0.0.0.0",
		MetricsPort:        MetricsPort,
		Logging:            strings.ToUpper(net.LogLevel),
	}
}

// Marshal renders the configuration as TOML.
func (c Config) Marshal() ([]byte, error) {
	raw, err := toml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "error marshalling node configuration")
	}
	return raw, nil
}

// PeerHost returns the stable in-cluster hostname of a node; each node is a
// single-replica statefulset fronted by a headless service of the same name.
func PeerHost(networkName string, nodeName string, namespace string) string {
	return fmt.Sprintf("%s-%s-0.%s-%s.%s.svc.cluster.local", networkName, nodeName, networkName, nodeName, namespace)
}

// StaticNodes renders the static-nodes.json document for the given node:
// the enode URLs of all peers except the node itself. With an empty self,
// all nodes are included (the reference copy at the artifacts root).
func StaticNodes(net *network.Network, identities identity.Set, self string, namespace string) ([]byte, error) {
	enodes := make([]string, 0, net.Validators+net.Members)
	for _, node := range net.Nodes() {
		if node.Name == self {
			continue
		}
		id := identities.Find(node.Name)
		if id == nil {
			return nil, fmt.Errorf("no identity for node %s", node.Name)
		}
		enodes = append(enodes, id.EnodeURL(PeerHost(net.Name, node.Name, namespace), P2PPort))
	}
	raw, err := json.MarshalIndent(enodes, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "error marshalling static nodes")
	}
	return append(raw, '\n'), nil
}
