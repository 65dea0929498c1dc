/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

// Package verify implements the verification stage of a network release: it
// waits for all inventory objects to become ready, and then runs JSON-RPC
// checks against the Besu nodes through port-forwarded connections.
package verify

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gobwas/glob"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	apitypes "k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/sap/besu-devnet-manager/internal/backoff"
	"github.com/sap/besu-devnet-manager/internal/portforward"
	"github.com/sap/besu-devnet-manager/pkg/applier"
	"github.com/sap/besu-devnet-manager/pkg/cluster"
	"github.com/sap/besu-devnet-manager/pkg/genesis"
	"github.com/sap/besu-devnet-manager/pkg/network"
	"github.com/sap/besu-devnet-manager/pkg/status"
)

// Must match the name the command line client passes to the applier.
const fullName = "bdm.cs.sap.com"

// Besu's JSON-RPC HTTP port, as rendered into the node services.
const rpcPort = 8545

// EndpointFunc resolves the JSON-RPC endpoint of a node pod. The returned
// cleanup function releases the connection; it is never nil on success.
type EndpointFunc func(ctx context.Context, pod string, port uint16) (string, func(), error)

// Options tunes a verification run.
type Options struct {
	// Nodes restricts the JSON-RPC checks to nodes whose name matches this glob; all nodes are checked if empty.
	Nodes string
	// SkipRPC reduces the verification to the inventory readiness wait.
	SkipRPC bool
	// Endpoint overrides how node RPC endpoints are resolved; if nil, a port-forward tunnel to the node pod is opened.
	Endpoint EndpointFunc
}

// Verifier checks that a deployed network release is ready and live.
type Verifier struct {
	clnt      cluster.Client
	namespace string
	name      string
	network   *network.Network
	analyzer  status.StatusAnalyzer
	backoff   *backoff.Backoff
	nodes     glob.Glob
	skipRPC   bool
	endpoint  EndpointFunc
}

func NewVerifier(clnt cluster.Client, namespace string, name string, net *network.Network, options Options) (*Verifier, error) {
	verifier := &Verifier{
		clnt:      clnt,
		namespace: namespace,
		name:      name,
		network:   net,
		analyzer:  status.NewStatusAnalyzer(fullName),
		backoff:   backoff.NewBackoff(500*time.Millisecond, 10*time.Second),
		skipRPC:   options.SkipRPC,
		endpoint:  options.Endpoint,
	}
	if options.Nodes != "" {
		nodes, err := glob.Compile(options.Nodes)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid node selector %s", options.Nodes)
		}
		verifier.nodes = nodes
	}
	if verifier.endpoint == nil {
		verifier.endpoint = verifier.forward
	}
	return verifier, nil
}

// Verify waits for the inventory to become ready, and then checks all
// selected nodes over JSON-RPC (unless SkipRPC is set).
func (v *Verifier) Verify(ctx context.Context, inventory []*applier.InventoryItem) error {
	if err := v.WaitReady(ctx, inventory); err != nil {
		return err
	}
	if v.skipRPC {
		return nil
	}
	return v.CheckNodes(ctx)
}

// WaitReady blocks until all inventory objects are ready, or until the
// context expires. Completed objects (such as purged chart hooks) and
// objects scheduled for deletion are skipped.
func (v *Verifier) WaitReady(ctx context.Context, inventory []*applier.InventoryItem) error {
	log := log.FromContext(ctx)

	for {
		pending, err := v.checkInventory(ctx, inventory)
		if err != nil {
			return err
		}
		if pending == "" {
			return nil
		}
		log.V(1).Info("waiting for inventory readiness", "pending", pending)
		select {
		case <-time.After(v.backoff.Next(v.name, "readiness")):
		case <-ctx.Done():
			return errors.Errorf("timeout waiting for readiness of %s", pending)
		}
	}
}

// checkInventory returns a description of the first object that is not ready,
// or the empty string if all objects are ready.
func (v *Verifier) checkInventory(ctx context.Context, inventory []*applier.InventoryItem) (string, error) {
	for _, item := range inventory {
		switch item.Phase {
		case applier.PhaseCompleted, applier.PhaseScheduledForDeletion, applier.PhaseDeleting:
			continue
		}
		object := &unstructured.Unstructured{}
		object.SetGroupVersionKind(item.GroupVersionKind())
		if err := v.clnt.Get(ctx, apitypes.NamespacedName{Namespace: item.Namespace, Name: item.Name}, object); err != nil {
			if apierrors.IsNotFound(err) {
				return fmt.Sprintf("%s (not found)", item), nil
			}
			return "", errors.Wrapf(err, "error reading object %s", item)
		}
		objectStatus, err := v.analyzer.ComputeStatus(object)
		if err != nil {
			return "", errors.Wrapf(err, "error computing status of object %s", item)
		}
		if objectStatus != status.CurrentStatus {
			return fmt.Sprintf("%s (%s)", item, objectStatus), nil
		}
	}
	return "", nil
}

// CheckNodes runs the JSON-RPC checks (chain id, peer count, validator set,
// block production) against all selected nodes. Node failures do not stop the
// remaining nodes from being checked; all failures are reported together.
func (v *Verifier) CheckNodes(ctx context.Context) error {
	validators, err := v.expectedValidators(ctx)
	if err != nil {
		return err
	}

	nodes := v.network.Nodes()
	expectedPeers := len(nodes) - 1

	var errs *multierror.Error
	for _, node := range nodes {
		if v.nodes != nil && !v.nodes.Match(node.Name) {
			continue
		}
		if err := v.checkNode(ctx, node, validators, expectedPeers); err != nil {
			errs = multierror.Append(errs, errors.Wrapf(err, "node %s", node.Name))
		}
	}
	return errs.ErrorOrNil()
}

// The genesis validator set is read back from the cluster rather than from
// local artifacts, so that verify works without the generate output at hand.
func (v *Verifier) expectedValidators(ctx context.Context) ([]common.Address, error) {
	configMap := &corev1.ConfigMap{}
	if err := v.clnt.Get(ctx, apitypes.NamespacedName{Namespace: v.namespace, Name: v.name + "-genesis"}, configMap); err != nil {
		return nil, errors.Wrap(err, "error reading genesis configmap")
	}
	gen, err := genesis.Read([]byte(configMap.Data["genesis.json"]))
	if err != nil {
		return nil, errors.Wrap(err, "error parsing genesis.json")
	}
	validators, err := gen.Validators()
	if err != nil {
		return nil, errors.Wrap(err, "error decoding genesis validator set")
	}
	return validators, nil
}

func (v *Verifier) checkNode(ctx context.Context, node network.Node, validators []common.Address, expectedPeers int) error {
	log := log.FromContext(ctx)

	pod := fmt.Sprintf("%s-%s-0", v.name, node.Name)
	endpoint, cleanup, err := v.endpoint(ctx, pod, rpcPort)
	if err != nil {
		return errors.Wrap(err, "error resolving rpc endpoint")
	}
	defer cleanup()

	rpcClient, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return errors.Wrapf(err, "error dialing rpc endpoint %s", endpoint)
	}
	defer rpcClient.Close()
	ethClient := ethclient.NewClient(rpcClient)

	var initialHeight uint64

	checks := []struct {
		name string
		run  func(ctx context.Context) error
	}{
		{"chain-id", func(ctx context.Context) error {
			chainId, err := ethClient.ChainID(ctx)
			if err != nil {
				return err
			}
			if chainId.Cmp(big.NewInt(v.network.ChainID)) != 0 {
				return errors.Errorf("unexpected chain id %s (expected %d)", chainId, v.network.ChainID)
			}
			return nil
		}},
		{"peer-count", func(ctx context.Context) error {
			peers, err := ethClient.PeerCount(ctx)
			if err != nil {
				return err
			}
			if int(peers) < expectedPeers {
				return errors.Errorf("connected to %d peers (expected at least %d)", peers, expectedPeers)
			}
			return nil
		}},
		{"validator-set", func(ctx context.Context) error {
			var got []common.Address
			if err := rpcClient.CallContext(ctx, &got, "qbft_getValidatorsByBlockNumber", "latest"); err != nil {
				return err
			}
			if !sameAddressSet(got, validators) {
				return errors.Errorf("validator set %s does not match the genesis validator set %s", formatAddresses(got), formatAddresses(validators))
			}
			return nil
		}},
		{"block-height", func(ctx context.Context) error {
			height, err := ethClient.BlockNumber(ctx)
			if err != nil {
				return err
			}
			initialHeight = height
			return nil
		}},
		{"block-production", func(ctx context.Context) error {
			height, err := ethClient.BlockNumber(ctx)
			if err != nil {
				return err
			}
			if height <= initialHeight {
				return errors.Errorf("chain head not advancing (still at block %d)", height)
			}
			return nil
		}},
	}

	for _, check := range checks {
		if err := v.retry(ctx, node.Name, check.name, check.run); err != nil {
			return errors.Wrapf(err, "%s check failed", check.name)
		}
		log.V(1).Info("check passed", "node", node.Name, "check", check.name)
	}
	return nil
}

// retry runs check until it succeeds, backing off between attempts; once the
// context expires, the last check error is returned.
func (v *Verifier) retry(ctx context.Context, item string, activity string, check func(ctx context.Context) error) error {
	for {
		err := check(ctx)
		if err == nil {
			v.backoff.Forget(item)
			return nil
		}
		select {
		case <-time.After(v.backoff.Next(item, activity)):
		case <-ctx.Done():
			return err
		}
	}
}

func (v *Verifier) forward(ctx context.Context, pod string, port uint16) (string, func(), error) {
	tunnel, err := portforward.New(ctx, v.clnt.Config(), v.namespace, pod, port)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("http://127.0.0.1:%d", tunnel.LocalPort()), tunnel.Close, nil
}

func sameAddressSet(got []common.Address, want []common.Address) bool {
	if len(got) != len(want) {
		return false
	}
	seen := make(map[common.Address]bool, len(got))
	for _, address := range got {
		seen[address] = true
	}
	for _, address := range want {
		if !seen[address] {
			return false
		}
	}
	return true
}

func formatAddresses(addresses []common.Address) string {
	hex := make([]string, len(addresses))
	for i, address := range addresses {
		hex[i] = address.Hex()
	}
	return fmt.Sprintf("%v", hex)
}
