/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package network

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/drone/envsubst"
	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/apimachinery/pkg/util/validation"
	"sigs.k8s.io/yaml"
)

const (
	defaultChainID               = 1337
	defaultValidators            = 3
	defaultBlockPeriodSeconds    = 2
	defaultEpochLength           = 30000
	defaultRequestTimeoutSeconds = 10
	defaultGasLimit              = 30_000_000
	defaultImage                 = "hyperledger/besu:latest"
	defaultStorageSize           = "1Gi"
)

// Load reads a network definition from the given path; see Read.
func Load(path string) (*Network, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading network definition %s", path)
	}
	network, err := Read(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "error loading network definition %s", path)
	}
	return network, nil
}

// Read parses a network definition. References to environment variables
// ($VAR or ${VAR}) are substituted first; unset variables expand to the
// empty string. Unknown fields are rejected. The returned network is
// defaulted and validated.
func Read(raw []byte) (*Network, error) {
	expanded, err := envsubst.EvalEnv(string(raw))
	if err != nil {
		return nil, errors.Wrap(err, "error substituting environment variables")
	}
	network := &Network{}
	if err := yaml.UnmarshalStrict([]byte(expanded), network); err != nil {
		return nil, errors.Wrap(err, "error parsing network definition")
	}
	network.Default()
	if err := network.Validate(); err != nil {
		return nil, err
	}
	return network, nil
}

// Default applies defaults to unset fields.
func (n *Network) Default() {
	if n.ChainID == 0 {
		n.ChainID = defaultChainID
	}
	if n.Validators == 0 {
		n.Validators = defaultValidators
	}
	if n.BlockPeriodSeconds == 0 {
		n.BlockPeriodSeconds = defaultBlockPeriodSeconds
	}
	if n.EpochLength == 0 {
		n.EpochLength = defaultEpochLength
	}
	if n.RequestTimeoutSeconds == 0 {
		n.RequestTimeoutSeconds = defaultRequestTimeoutSeconds
	}
	if n.GasLimit == 0 {
		n.GasLimit = defaultGasLimit
	}
	if n.Image == "" {
		n.Image = defaultImage
	}
	if n.StorageSize == "" {
		n.StorageSize = defaultStorageSize
	}
	if len(n.RPC.APIs) == 0 {
		n.RPC.APIs = []string{"ETH", "NET", "QBFT", "WEB3", "ADMIN"}
	}
	if len(n.RPC.HostAllowlist) == 0 {
		n.RPC.HostAllowlist = []string{"*"}
	}
}

// Validate checks the network definition; all problems found are returned
// as one aggregated error.
func (n *Network) Validate() error {
	var errs []error

	if n.Name == "" {
		errs = append(errs, fmt.Errorf("network name must not be empty"))
	} else if msgs := validation.IsDNS1123Label(n.Name); len(msgs) > 0 {
		errs = append(errs, fmt.Errorf("invalid network name %s: %s", n.Name, strings.Join(msgs, ", ")))
	}
	if n.ChainID <= 0 {
		errs = append(errs, fmt.Errorf("chain id must be positive (got %d)", n.ChainID))
	}
	if n.Validators < 1 {
		errs = append(errs, fmt.Errorf("at least one validator is required (got %d)", n.Validators))
	}
	if n.Members < 0 {
		errs = append(errs, fmt.Errorf("number of members must not be negative (got %d)", n.Members))
	}
	if n.BlockPeriodSeconds < 1 {
		errs = append(errs, fmt.Errorf("block period must be at least one second (got %d)", n.BlockPeriodSeconds))
	}
	if n.EmptyBlockPeriodSeconds < 0 {
		errs = append(errs, fmt.Errorf("empty block period must not be negative (got %d)", n.EmptyBlockPeriodSeconds))
	} else if n.EmptyBlockPeriodSeconds > 0 && n.EmptyBlockPeriodSeconds < n.BlockPeriodSeconds {
		errs = append(errs, fmt.Errorf("empty block period (%d) must not be smaller than the block period (%d)", n.EmptyBlockPeriodSeconds, n.BlockPeriodSeconds))
	}
	if n.EpochLength < 1 {
		errs = append(errs, fmt.Errorf("epoch length must be positive (got %d)", n.EpochLength))
	}
	if n.RequestTimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("request timeout must be at least one second (got %d)", n.RequestTimeoutSeconds))
	}
	if n.GasLimit == 0 {
		errs = append(errs, fmt.Errorf("gas limit must be positive"))
	}
	if n.Image == "" {
		errs = append(errs, fmt.Errorf("image must not be empty"))
	}
	switch n.ImagePullPolicy {
	case "", "Always", "IfNotPresent", "Never":
	default:
		errs = append(errs, fmt.Errorf("invalid image pull policy %s", n.ImagePullPolicy))
	}
	if n.LogLevel != "" && !isValidLogLevel(n.LogLevel) {
		errs = append(errs, fmt.Errorf("invalid log level %s", n.LogLevel))
	}
	if _, err := resource.ParseQuantity(n.StorageSize); err != nil {
		errs = append(errs, errors.Wrapf(err, "invalid storage size %s", n.StorageSize))
	}
	for address, balance := range n.FundedAccounts {
		if !common.IsHexAddress(address) {
			errs = append(errs, fmt.Errorf("invalid funded account address %s", address))
		}
		if !isValidBalance(balance) {
			errs = append(errs, fmt.Errorf("invalid balance %s for funded account %s", balance, address))
		}
	}
	errs = append(errs, n.validateNodeOverrides()...)
	if n.Paladin != nil && n.Paladin.Enabled {
		if n.Paladin.Repository == "" {
			errs = append(errs, fmt.Errorf("paladin chart repository must not be empty"))
		} else if !strings.HasPrefix(n.Paladin.Repository, "https://") && !strings.HasPrefix(n.Paladin.Repository, "http://") && !strings.HasPrefix(n.Paladin.Repository, "oci://") {
			errs = append(errs, fmt.Errorf("invalid paladin chart repository %s (must be an https:// or oci:// reference)", n.Paladin.Repository))
		}
		if n.Paladin.Chart == "" {
			errs = append(errs, fmt.Errorf("paladin chart name must not be empty"))
		}
	}

	// derived workload names (such as <network>-<node>-config) must remain valid DNS labels
	if n.Name != "" && len(validation.IsDNS1123Label(n.Name)) == 0 && n.Validators >= 1 && n.Members >= 0 {
		for _, node := range n.Nodes() {
			if msgs := validation.IsDNS1123Label(fmt.Sprintf("%s-%s-config", n.Name, node.Name)); len(msgs) > 0 {
				errs = append(errs, fmt.Errorf("network name %s is too long for node %s: %s", n.Name, node.Name, strings.Join(msgs, ", ")))
				break
			}
		}
	}

	if len(errs) > 0 {
		return multierror.Append(nil, errs...)
	}
	return nil
}

func (n *Network) validateNodeOverrides() []error {
	var errs []error
	names := make(map[string]bool)
	for _, node := range n.Nodes() {
		names[node.Name] = true
	}
	seen := make(map[string]bool)
	for _, override := range n.NodeOverrides {
		if seen[override.Name] {
			errs = append(errs, fmt.Errorf("duplicate node override %s", override.Name))
			continue
		}
		seen[override.Name] = true
		if !names[override.Name] {
			errs = append(errs, fmt.Errorf("node override %s does not match any node", override.Name))
		}
	}
	return errs
}

// Nodes expands the network into its effective node list; validators come
// first, then members, each in index order. The validator order determines
// the genesis validator set.
func (n *Network) Nodes() []Node {
	nodes := make([]Node, 0, n.Validators+n.Members)
	for i := 0; i < n.Validators; i++ {
		nodes = append(nodes, n.node(RoleValidator, i))
	}
	for i := 0; i < n.Members; i++ {
		nodes = append(nodes, n.node(RoleMember, i))
	}
	return nodes
}

func (n *Network) node(role Role, index int) Node {
	node := Node{
		Name:      fmt.Sprintf("%s-%d", role, index),
		Index:     index,
		Role:      role,
		Image:     n.Image,
		Resources: n.Resources,
	}
	for _, override := range n.NodeOverrides {
		if override.Name != node.Name {
			continue
		}
		if override.Image != "" {
			node.Image = override.Image
		}
		if override.Resources != nil {
			node.Resources = override.Resources
		}
		node.ExtraArgs = override.ExtraArgs
	}
	return node
}

// ApplySetValues applies --set style overrides (path=value, with dots
// addressing nested fields, such as paladin.values.image.tag=latest) to the
// given network. Scalars are coerced to numbers or booleans where possible.
// The overridden network is defaulted and validated again; unknown paths
// are rejected.
func ApplySetValues(network *Network, values []string) error {
	if len(values) == 0 {
		return nil
	}
	unstructured := network.ToUnstructured()
	for _, value := range values {
		path, rawValue, found := strings.Cut(value, "=")
		if !found || path == "" {
			return fmt.Errorf("invalid override %s (expected path=value)", value)
		}
		setNestedValue(unstructured, strings.Split(path, "."), coerceScalar(rawValue))
	}
	raw, err := json.Marshal(unstructured)
	if err != nil {
		return errors.Wrap(err, "error marshalling network definition")
	}
	overridden := &Network{}
	if err := yaml.UnmarshalStrict(raw, overridden); err != nil {
		return errors.Wrap(err, "error applying overrides")
	}
	overridden.Default()
	if err := overridden.Validate(); err != nil {
		return err
	}
	*network = *overridden
	return nil
}

func setNestedValue(values map[string]any, path []string, value any) {
	if len(path) == 1 {
		values[path[0]] = value
		return
	}
	next, ok := values[path[0]].(map[string]any)
	if !ok {
		next = make(map[string]any)
		values[path[0]] = next
	}
	setNestedValue(next, path[1:], value)
}

func coerceScalar(s string) any {
	if value, err := cast.ToInt64E(s); err == nil {
		return value
	}
	if value, err := cast.ToFloat64E(s); err == nil {
		return value
	}
	if value, err := cast.ToBoolE(s); err == nil {
		return value
	}
	return s
}

func isValidLogLevel(level string) bool {
	switch strings.ToUpper(level) {
	case "TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL":
		return true
	}
	return false
}

func isValidBalance(balance string) bool {
	s := balance
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	if s == "" {
		return false
	}
	value, ok := new(big.Int).SetString(s, base)
	return ok && value.Sign() >= 0
}
