/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package network

import (
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/sap/besu-devnet-manager/pkg/types"
)

// Network is the declarative description of a Besu development network.
// It is what users author (usually as network.yaml), and what all other
// packages derive their output from: node identities, the QBFT genesis,
// per-node Besu configuration and the Kubernetes manifests.
type Network struct {
	// Name of the network; used as prefix for all generated object names,
	// and as the release name. Must be a DNS label.
	Name string `json:"name"`
	// Chain id of the network. Defaults to 1337.
	ChainID int64 `json:"chainId,omitempty"`
	// Number of validator nodes. Defaults to 3.
	Validators int `json:"validators,omitempty"`
	// Number of non-validating member nodes. Defaults to 0.
	Members int `json:"members,omitempty"`
	// QBFT block period in seconds. Defaults to 2.
	BlockPeriodSeconds int `json:"blockPeriodSeconds,omitempty"`
	// QBFT empty block period in seconds; zero means that empty blocks
	// are produced at the regular block period.
	EmptyBlockPeriodSeconds int `json:"emptyBlockPeriodSeconds,omitempty"`
	// QBFT epoch length (number of blocks after which votes are reset).
	// Defaults to 30000.
	EpochLength int `json:"epochLength,omitempty"`
	// QBFT round request timeout in seconds. Defaults to 10.
	RequestTimeoutSeconds int `json:"requestTimeoutSeconds,omitempty"`
	// Block gas limit. Defaults to 30000000.
	GasLimit uint64 `json:"gasLimit,omitempty"`
	// Besu container image. Defaults to hyperledger/besu:latest.
	Image string `json:"image,omitempty"`
	// Image pull policy for the Besu containers.
	ImagePullPolicy string `json:"imagePullPolicy,omitempty"`
	// Besu log level (TRACE, DEBUG, INFO, WARN, ERROR, FATAL).
	LogLevel string `json:"logLevel,omitempty"`
	// Size of the per-node data volume. Defaults to 1Gi.
	StorageSize string `json:"storageSize,omitempty"`
	// Storage class of the per-node data volume; empty means cluster default.
	StorageClassName string `json:"storageClassName,omitempty"`
	// Resource requests and limits for the Besu containers.
	Resources *corev1.ResourceRequirements `json:"resources,omitempty"`
	// JSON-RPC settings shared by all nodes.
	RPC RPC `json:"rpc,omitempty"`
	// Accounts to be prefunded in the genesis alloc; keys are hex addresses,
	// values are balances in wei (decimal or 0x-prefixed hex).
	FundedAccounts map[string]string `json:"fundedAccounts,omitempty"`
	// Per-node overrides, keyed by node name (such as validator-0).
	NodeOverrides []NodeOverride `json:"nodeOverrides,omitempty"`
	// Path to a directory with additional manifest templates, rendered and
	// deployed along with the built-in ones.
	ExtraManifests string `json:"extraManifests,omitempty"`
	// Optional Paladin deployment, installed from its Helm chart.
	Paladin *Paladin `json:"paladin,omitempty"`
}

var _ types.Unstructurable = &Network{}

// RPC models the JSON-RPC surface of the Besu nodes.
type RPC struct {
	// Enabled JSON-RPC APIs. Defaults to ETH,NET,QBFT,WEB3,ADMIN.
	APIs []string `json:"apis,omitempty"`
	// Besu host allowlist. Defaults to ["*"].
	HostAllowlist []string `json:"hostAllowlist,omitempty"`
}

// NodeOverride carries per-node deviations from the network-wide settings.
type NodeOverride struct {
	// Name of the node the override applies to (for example validator-1).
	Name string `json:"name"`
	// Container image overriding the network-wide one.
	Image string `json:"image,omitempty"`
	// Resources overriding the network-wide ones.
	Resources *corev1.ResourceRequirements `json:"resources,omitempty"`
	// Additional Besu command line arguments.
	ExtraArgs []string `json:"extraArgs,omitempty"`
}

// Paladin describes an optional Paladin installation; the chart is treated
// as opaque and rendered as-is.
type Paladin struct {
	// Whether to deploy Paladin.
	Enabled bool `json:"enabled,omitempty"`
	// Chart repository; an https:// repository URL or an oci:// reference.
	Repository string `json:"repository,omitempty"`
	// Chart name within the repository.
	Chart string `json:"chart,omitempty"`
	// Chart version; empty means latest.
	Version string `json:"version,omitempty"`
	// Chart values.
	Values map[string]any `json:"values,omitempty"`
	// Paths to additional values files; merged in order, before Values.
	ValuesFiles []string `json:"valuesFiles,omitempty"`
}

// Role of a node in the network.
type Role string

const (
	RoleValidator Role = "validator"
	RoleMember    Role = "member"
)

// Node is one effective node of the network, as expanded by Nodes();
// it is derived, not user-written.
type Node struct {
	Name      string                       `json:"name"`
	Index     int                          `json:"index"`
	Role      Role                         `json:"role"`
	Image     string                       `json:"image"`
	Resources *corev1.ResourceRequirements `json:"resources,omitempty"`
	ExtraArgs []string                     `json:"extraArgs,omitempty"`
}

// IsValidator returns true for validator nodes.
func (n Node) IsValidator() bool {
	return n.Role == RoleValidator
}

// ToUnstructured converts the network into a string-keyed map.
func (n *Network) ToUnstructured() map[string]any {
	result, err := runtime.DefaultUnstructuredConverter.ToUnstructured(n)
	if err != nil {
		panic(err)
	}
	return result
}
