/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package besuconf_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pelletier/go-toml/v2"

	"github.com/sap/besu-devnet-manager/pkg/besuconf"
	"github.com/sap/besu-devnet-manager/pkg/identity"
	"github.com/sap/besu-devnet-manager/pkg/network"
)

var _ = Describe("testing: besuconf.go", func() {
	var net *network.Network

	BeforeEach(func() {
		net = &network.Network{Name: "testnet"}
		net.Default()
	})

	Context("ForNode()/Marshal()", func() {
		It("should render the expected TOML", func() {
			nodes := net.Nodes()
			config := besuconf.ForNode(net, nodes[0])
			raw, err := config.Marshal()
			Expect(err).NotTo(HaveOccurred())

			parsed := map[string]any{}
			Expect(toml.Unmarshal(raw, &parsed)).To(Succeed())
			Expect(parsed).To(HaveKeyWithValue("identity", "validator-0"))
			Expect(parsed).To(HaveKeyWithValue("data-path", "/opt/besu/data"))
			Expect(parsed).To(HaveKeyWithValue("genesis-file", "/etc/besu/genesis/genesis.json"))
			Expect(parsed).To(HaveKeyWithValue("node-private-key-file", "/etc/besu/keys/key"))
			Expect(parsed).To(HaveKeyWithValue("static-nodes-file", "/etc/besu/config/static-nodes.json"))
			Expect(parsed).To(HaveKeyWithValue("discovery-enabled", false))
			Expect(parsed).To(HaveKeyWithValue("p2p-host", "0.0.0.0"))
			Expect(parsed).To(HaveKeyWithValue("p2p-port", int64(30303)))
			Expect(parsed).To(HaveKeyWithValue("rpc-http-enabled", true))
			Expect(parsed).To(HaveKeyWithValue("rpc-http-port", int64(8545)))
			Expect(parsed).To(HaveKeyWithValue("rpc-ws-port", int64(8546)))
			Expect(parsed).To(HaveKeyWithValue("min-gas-price", int64(0)))
			Expect(parsed).To(HaveKeyWithValue("metrics-port", int64(9545)))
			Expect(parsed["rpc-http-api"]).To(Equal([]any{"ETH", "NET", "QBFT", "WEB3", "ADMIN"}))
			Expect(parsed["host-allowlist"]).To(Equal([]any{"*"}))
			Expect(parsed).NotTo(HaveKey("logging"))
		})

		It("should carry the network log level", func() {
			net.LogLevel = "debug"
			config := besuconf.ForNode(net, net.Nodes()[0])
			raw, err := config.Marshal()
			Expect(err).NotTo(HaveOccurred())
			parsed := map[string]any{}
			Expect(toml.Unmarshal(raw, &parsed)).To(Succeed())
			Expect(parsed).To(HaveKeyWithValue("logging", "DEBUG"))
		})
	})

	Context("StaticNodes()", func() {
		var identities identity.Set

		BeforeEach(func() {
			var err error
			identities, err = identity.Generate([]string{"validator-0", "validator-1", "validator-2"})
			Expect(err).NotTo(HaveOccurred())
		})

		It("should exclude the node itself", func() {
			raw, err := besuconf.StaticNodes(net, identities, "validator-0", "besu-devnet")
			Expect(err).NotTo(HaveOccurred())
			var enodes []string
			Expect(json.Unmarshal(raw, &enodes)).To(Succeed())
			Expect(enodes).To(HaveLen(2))
			Expect(enodes[0]).To(Equal(identities[1].EnodeURL("testnet-validator-1-0.testnet-validator-1.besu-devnet.svc.cluster.local", 30303)))
			Expect(enodes[1]).To(Equal(identities[2].EnodeURL("testnet-validator-2-0.testnet-validator-2.besu-devnet.svc.cluster.local", 30303)))
		})

		It("should include all nodes for an empty self", func() {
			raw, err := besuconf.StaticNodes(net, identities, "", "besu-devnet")
			Expect(err).NotTo(HaveOccurred())
			var enodes []string
			Expect(json.Unmarshal(raw, &enodes)).To(Succeed())
			Expect(enodes).To(HaveLen(3))
		})

		It("should fail for a missing identity", func() {
			net.Members = 1
			_, err := besuconf.StaticNodes(net, identities, "", "besu-devnet")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("member-0"))
		})
	})
})
