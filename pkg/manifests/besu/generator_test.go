/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package besu_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/sap/go-generics/slices"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/controller-runtime/pkg/client"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sap/besu-devnet-manager/pkg/genesis"
	"github.com/sap/besu-devnet-manager/pkg/identity"
	"github.com/sap/besu-devnet-manager/pkg/manifests/besu"
	"github.com/sap/besu-devnet-manager/pkg/network"
	"github.com/sap/besu-devnet-manager/pkg/types"
)

const networkManifest = `
name: devnet
validators: 3
members: 1
blockPeriodSeconds: 1
fundedAccounts:
  "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266": "1000000000000000000000"
resources:
  requests:
    cpu: 250m
    memory: 512Mi
nodeOverrides:
  - name: member-0
    image: hyperledger/besu:24.12.0
    extraArgs:
      - --sync-min-peers=2
`

const extraManifest = `
apiVersion: v1
kind: ConfigMap
metadata:
  name: {{ name }}-faucet
  annotations:
    bdm.cs.sap.com/apply-order: "1"
data:
  chainId: {{ .network.chainId | quote }}
  rpcHost: {{ (index .nodes 0).name }}:{{ .ports.rpcHttp }}
  replicas: {{ .values.replicas | quote }}
`

var _ = Describe("testing: generator.go", func() {
	var net *network.Network
	var identities identity.Set

	BeforeEach(func() {
		var err error
		net, err = network.Read([]byte(networkManifest))
		Expect(err).NotTo(HaveOccurred())
		identities, err = identity.Generate(slices.Collect(net.Nodes(), func(node network.Node) string { return node.Name }))
		Expect(err).NotTo(HaveOccurred())
	})

	Context("rendering the built-in templates", func() {
		var objects []client.Object

		BeforeEach(func() {
			generator, err := besu.NewGenerator(net, identities, nil)
			Expect(err).NotTo(HaveOccurred())
			objects, err = generator.Generate(context.TODO(), "blockchain", net.Name, types.UnstructurableMap{})
			Expect(err).NotTo(HaveOccurred())
		})

		It("should produce the genesis config map plus a secret, config map, service and stateful set per node", func() {
			Expect(objects).To(HaveLen(1 + 4*4))
			Expect(findObject(objects, "ConfigMap", "devnet-genesis")).NotTo(BeNil())
			for _, name := range []string{"validator-0", "validator-1", "validator-2", "member-0"} {
				Expect(findObject(objects, "Secret", "devnet-"+name+"-key")).NotTo(BeNil())
				Expect(findObject(objects, "ConfigMap", "devnet-"+name+"-config")).NotTo(BeNil())
				Expect(findObject(objects, "Service", "devnet-"+name)).NotTo(BeNil())
				Expect(findObject(objects, "StatefulSet", "devnet-"+name)).NotTo(BeNil())
			}
		})

		It("should order all configuration before the workloads, and leave namespaces empty", func() {
			for _, object := range objects {
				var expectedOrder string
				if object.GetObjectKind().GroupVersionKind().Kind == "StatefulSet" {
					expectedOrder = "1"
				} else {
					expectedOrder = "0"
				}
				Expect(object.GetAnnotations()).To(HaveKeyWithValue("bdm.cs.sap.com/apply-order", expectedOrder))
				Expect(object.GetNamespace()).To(BeEmpty())
			}
		})

		It("should store a genesis that decodes back to the validator addresses", func() {
			configMap := findObject(objects, "ConfigMap", "devnet-genesis")
			data, found, err := unstructured.NestedStringMap(configMap.Object, "data")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())

			g, err := genesis.Read([]byte(data["genesis.json"]))
			Expect(err).NotTo(HaveOccurred())
			Expect(g.Config.ChainID).To(Equal(int64(1337)))
			Expect(g.Config.QBFT.BlockPeriodSeconds).To(Equal(1))
			Expect(g.Alloc).To(HaveKey("f39fd6e51aad88f6f4ce6ab8827279cfffb92266"))
			validators, err := g.Validators()
			Expect(err).NotTo(HaveOccurred())
			Expect(validators).To(Equal(identities[:3].Addresses()))

			var staticNodes []string
			Expect(json.Unmarshal([]byte(data["static-nodes.json"]), &staticNodes)).To(Succeed())
			Expect(staticNodes).To(HaveLen(4))
		})

		It("should render the node configuration with cluster-local peers", func() {
			configMap := findObject(objects, "ConfigMap", "devnet-member-0-config")
			data, found, err := unstructured.NestedStringMap(configMap.Object, "data")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())

			var config map[string]any
			Expect(toml.Unmarshal([]byte(data["config.toml"]), &config)).To(Succeed())
			Expect(config).To(HaveKeyWithValue("identity", "member-0"))
			Expect(config).To(HaveKeyWithValue("genesis-file", "/etc/besu/genesis/genesis.json"))
			Expect(config).To(HaveKeyWithValue("discovery-enabled", false))

			var staticNodes []string
			Expect(json.Unmarshal([]byte(data["static-nodes.json"]), &staticNodes)).To(Succeed())
			Expect(staticNodes).To(HaveLen(3))
			for _, enode := range staticNodes {
				Expect(enode).To(ContainSubstring(".blockchain.svc.cluster.local:30303"))
				Expect(enode).NotTo(ContainSubstring(identities.Find("member-0").EnodeID()))
			}
		})

		It("should store the node key in the secret", func() {
			secret := findObject(objects, "Secret", "devnet-validator-1-key")
			key, found, err := unstructured.NestedString(secret.Object, "stringData", "key")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(key).To(Equal(identities.Find("validator-1").PrivateKeyHex()))
		})

		It("should expose all well-known ports on the headless service", func() {
			service := findObject(objects, "Service", "devnet-validator-0")
			clusterIP, _, err := unstructured.NestedString(service.Object, "spec", "clusterIP")
			Expect(err).NotTo(HaveOccurred())
			Expect(clusterIP).To(Equal("None"))
			ports, found, err := unstructured.NestedSlice(service.Object, "spec", "ports")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(slices.Collect(ports, func(port any) float64 { return port.(map[string]any)["port"].(float64) })).
				To(ConsistOf(float64(30303), float64(8545), float64(8546), float64(9545)))
		})

		It("should wire the stateful set to the generated configuration", func() {
			statefulSet := findObject(objects, "StatefulSet", "devnet-validator-0")
			containers, found, err := unstructured.NestedSlice(statefulSet.Object, "spec", "template", "spec", "containers")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(containers).To(HaveLen(1))
			container := containers[0].(map[string]any)
			Expect(container["image"]).To(Equal("hyperledger/besu:latest"))
			Expect(container["args"]).To(ConsistOf("--config-file=/etc/besu/config/config.toml"))
			cpu, _, err := unstructured.NestedString(container, "resources", "requests", "cpu")
			Expect(err).NotTo(HaveOccurred())
			Expect(cpu).To(Equal("250m"))
			readinessPath, _, err := unstructured.NestedString(container, "readinessProbe", "httpGet", "path")
			Expect(err).NotTo(HaveOccurred())
			Expect(readinessPath).To(Equal("/readiness?minPeers=3"))

			volumeClaimTemplates, found, err := unstructured.NestedSlice(statefulSet.Object, "spec", "volumeClaimTemplates")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(volumeClaimTemplates).To(HaveLen(1))
			requestedStorage, _, err := unstructured.NestedString(volumeClaimTemplates[0].(map[string]any), "spec", "resources", "requests", "storage")
			Expect(err).NotTo(HaveOccurred())
			Expect(requestedStorage).To(Equal("1Gi"))
		})

		It("should honor node overrides", func() {
			statefulSet := findObject(objects, "StatefulSet", "devnet-member-0")
			containers, _, err := unstructured.NestedSlice(statefulSet.Object, "spec", "template", "spec", "containers")
			Expect(err).NotTo(HaveOccurred())
			container := containers[0].(map[string]any)
			Expect(container["image"]).To(Equal("hyperledger/besu:24.12.0"))
			Expect(container["args"]).To(ConsistOf("--config-file=/etc/besu/config/config.toml", "--sync-min-peers=2"))
		})

		It("should vary the pod checksum with the node content", func() {
			checksums := make(map[string]bool)
			for _, name := range []string{"validator-0", "validator-1", "validator-2", "member-0"} {
				statefulSet := findObject(objects, "StatefulSet", "devnet-"+name)
				checksum, found, err := unstructured.NestedString(statefulSet.Object, "spec", "template", "metadata", "annotations", "checksum/config")
				Expect(err).NotTo(HaveOccurred())
				Expect(found).To(BeTrue())
				Expect(checksum).To(MatchRegexp("^[0-9a-f]{64}$"))
				checksums[checksum] = true
			}
			Expect(checksums).To(HaveLen(4))
		})
	})

	Context("rendering extra manifests", func() {
		BeforeEach(func() {
			extraDir := GinkgoT().TempDir()
			Expect(os.WriteFile(filepath.Join(extraDir, "faucet.yaml"), []byte(extraManifest), 0o644)).To(Succeed())
			net.ExtraManifests = extraDir
		})

		It("should append the rendered extra objects", func() {
			generator, err := besu.NewGenerator(net, identities, nil)
			Expect(err).NotTo(HaveOccurred())
			objects, err := generator.Generate(context.TODO(), "blockchain", net.Name, types.UnstructurableMap{"replicas": 2})
			Expect(err).NotTo(HaveOccurred())

			configMap := findObject(objects, "ConfigMap", "devnet-faucet")
			Expect(configMap).NotTo(BeNil())
			data, _, err := unstructured.NestedStringMap(configMap.Object, "data")
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(HaveKeyWithValue("chainId", "1337"))
			Expect(data).To(HaveKeyWithValue("rpcHost", "validator-0:8545"))
			Expect(data).To(HaveKeyWithValue("replicas", "2"))
		})
	})

	Context("with missing identities", func() {
		It("should refuse to generate", func() {
			generator, err := besu.NewGenerator(net, identities[:2], nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = generator.Generate(context.TODO(), "blockchain", net.Name, types.UnstructurableMap{})
			Expect(err).To(MatchError(ContainSubstring("no identity for node")))
		})
	})
})

func findObject(objects []client.Object, kind string, name string) *unstructured.Unstructured {
	for _, object := range objects {
		if object.GetObjectKind().GroupVersionKind().Kind == kind && object.GetName() == name {
			return object.(*unstructured.Unstructured)
		}
	}
	return nil
}
