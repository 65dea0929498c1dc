/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package besu

import (
	"context"
	"embed"

	"github.com/pkg/errors"

	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/sap/besu-devnet-manager/pkg/besuconf"
	"github.com/sap/besu-devnet-manager/pkg/cluster"
	"github.com/sap/besu-devnet-manager/pkg/genesis"
	"github.com/sap/besu-devnet-manager/pkg/identity"
	"github.com/sap/besu-devnet-manager/pkg/manifests"
	"github.com/sap/besu-devnet-manager/pkg/manifests/kustomize"
	"github.com/sap/besu-devnet-manager/pkg/network"
	"github.com/sap/besu-devnet-manager/pkg/types"
)

//go:embed all:templates
var templates embed.FS

// Generator produces the Kubernetes manifests of a Besu network: per node a
// headless Service, a StatefulSet, a Secret with the node key and a ConfigMap
// with the node configuration, plus one network-scoped ConfigMap carrying the
// genesis. Configuration objects are annotated with apply order zero and the
// workloads with apply order one, so that all mounted content exists before
// the first pod starts.
type Generator struct {
	network        *network.Network
	identities     identity.Set
	generator      *kustomize.KustomizeGenerator
	extraGenerator *kustomize.KustomizeGenerator
}

var _ manifests.Generator = &Generator{}

// NewGenerator creates a generator for the given network and node identities.
// The client may be nil; then rendering happens offline, and template functions
// depending on the cluster (such as lookup) return empty results.
// If the network references an extra manifests directory, it is rendered with
// the same machinery, after the built-in templates.
func NewGenerator(net *network.Network, identities identity.Set, clnt cluster.Client) (*Generator, error) {
	generator, err := kustomize.NewKustomizeGenerator(templates, "templates", clnt, kustomize.KustomizeGeneratorOptions{})
	if err != nil {
		return nil, err
	}

	g := &Generator{
		network:    net,
		identities: identities,
		generator:  generator,
	}

	if net.ExtraManifests != "" {
		extraGenerator, err := kustomize.NewKustomizeGenerator(nil, net.ExtraManifests, clnt, kustomize.KustomizeGeneratorOptions{})
		if err != nil {
			return nil, errors.Wrapf(err, "error reading extra manifests (%s)", net.ExtraManifests)
		}
		g.extraGenerator = extraGenerator
	}

	return g, nil
}

// Generate resource descriptors. The supplied parameters appear to the
// templates under the values key; the network, the node list (including keys
// and rendered per-node configuration) and the genesis document are provided
// by the generator itself.
func (g *Generator) Generate(ctx context.Context, namespace string, name string, parameters types.Unstructurable) ([]client.Object, error) {
	data, err := g.buildParameters(namespace, parameters.ToUnstructured())
	if err != nil {
		return nil, err
	}

	objects, err := g.generator.Generate(ctx, namespace, name, data)
	if err != nil {
		return nil, errors.Wrap(err, "error rendering node manifests")
	}

	if g.extraGenerator != nil {
		extraObjects, err := g.extraGenerator.Generate(ctx, namespace, name, data)
		if err != nil {
			return nil, errors.Wrapf(err, "error rendering extra manifests (%s)", g.network.ExtraManifests)
		}
		objects = append(objects, extraObjects...)
	}

	return objects, nil
}

func (g *Generator) buildParameters(namespace string, values map[string]any) (types.UnstructurableMap, error) {
	gen, err := genesis.ForNetwork(g.network, g.identities)
	if err != nil {
		return nil, err
	}
	rawGenesis, err := gen.Marshal()
	if err != nil {
		return nil, err
	}
	rawStaticNodes, err := besuconf.StaticNodes(g.network, g.identities, "", namespace)
	if err != nil {
		return nil, err
	}

	nodes := g.network.Nodes()
	nodeData := make([]map[string]any, 0, len(nodes))
	for _, node := range nodes {
		id := g.identities.Find(node.Name)
		if id == nil {
			return nil, errors.Errorf("no identity for node %s", node.Name)
		}
		rawConfig, err := besuconf.ForNode(g.network, node).Marshal()
		if err != nil {
			return nil, err
		}
		rawNodeStaticNodes, err := besuconf.StaticNodes(g.network, g.identities, node.Name, namespace)
		if err != nil {
			return nil, err
		}
		nodeData = append(nodeData, map[string]any{
			"name":        node.Name,
			"index":       node.Index,
			"role":        string(node.Role),
			"validator":   node.IsValidator(),
			"address":     id.Address.Hex(),
			"enodeId":     id.EnodeID(),
			"image":       node.Image,
			"extraArgs":   node.ExtraArgs,
			"resources":   node.Resources,
			"key":         id.PrivateKeyHex(),
			"config":      string(rawConfig),
			"staticNodes": string(rawNodeStaticNodes),
		})
	}

	return types.UnstructurableMap{
		"network":     g.network.ToUnstructured(),
		"nodes":       nodeData,
		"genesis":     string(rawGenesis),
		"staticNodes": string(rawStaticNodes),
		"ports": map[string]any{
			"p2p":     besuconf.P2PPort,
			"rpcHttp": besuconf.RPCHTTPPort,
			"rpcWs":   besuconf.RPCWSPort,
			"metrics": besuconf.MetricsPort,
		},
		"paths": map[string]any{
			"config": besuconf.ConfigPath,
			"data":   besuconf.DataPath,
		},
		"minPeers": len(nodes) - 1,
		"values":   values,
	}, nil
}
