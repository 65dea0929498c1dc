/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package artifacts_test

import (
	"encoding/json"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sap/besu-devnet-manager/pkg/artifacts"
	"github.com/sap/besu-devnet-manager/pkg/genesis"
	"github.com/sap/besu-devnet-manager/pkg/identity"
	"github.com/sap/besu-devnet-manager/pkg/network"
)

var _ = Describe("testing: artifacts.go", func() {
	var dir string
	var net *network.Network
	var identities identity.Set

	BeforeEach(func() {
		dir = filepath.Join(GinkgoT().TempDir(), "testnet")
		net = &network.Network{Name: "testnet", Members: 1}
		net.Default()
		nodes := net.Nodes()
		names := make([]string, len(nodes))
		for i, node := range nodes {
			names[i] = node.Name
		}
		var err error
		identities, err = identity.Generate(names)
		Expect(err).NotTo(HaveOccurred())
	})

	Context("Write()", func() {
		It("should produce the full artifacts tree", func() {
			Expect(artifacts.Write(dir, net, identities, artifacts.Options{Namespace: "besu-devnet"})).To(Succeed())

			for _, file := range []string{"network.yaml", "genesis.json", "static-nodes.json"} {
				_, err := os.Stat(filepath.Join(dir, file))
				Expect(err).NotTo(HaveOccurred(), "missing %s", file)
			}
			for _, node := range []string{"validator-0", "validator-1", "validator-2", "member-0"} {
				for _, file := range []string{"key", "key.pub", "address", "config.toml", "static-nodes.json"} {
					_, err := os.Stat(filepath.Join(dir, "nodes", node, file))
					Expect(err).NotTo(HaveOccurred(), "missing %s for %s", file, node)
				}
			}
		})

		It("should write a genesis whose validator set matches the validator identities", func() {
			Expect(artifacts.Write(dir, net, identities, artifacts.Options{Namespace: "besu-devnet"})).To(Succeed())
			raw, err := os.ReadFile(filepath.Join(dir, "genesis.json"))
			Expect(err).NotTo(HaveOccurred())
			g, err := genesis.Read(raw)
			Expect(err).NotTo(HaveOccurred())
			decoded, err := g.Validators()
			Expect(err).NotTo(HaveOccurred())
			// validators only; the member identity is not part of the set
			Expect(decoded).To(Equal(identity.Set(identities[:3]).Addresses()))
		})

		It("should exclude each node from its own static nodes", func() {
			Expect(artifacts.Write(dir, net, identities, artifacts.Options{Namespace: "besu-devnet"})).To(Succeed())
			raw, err := os.ReadFile(filepath.Join(dir, "nodes", "validator-0", "static-nodes.json"))
			Expect(err).NotTo(HaveOccurred())
			var enodes []string
			Expect(json.Unmarshal(raw, &enodes)).To(Succeed())
			Expect(enodes).To(HaveLen(3))
			for _, enode := range enodes {
				Expect(enode).NotTo(ContainSubstring("testnet-validator-0-0."))
			}
		})

		It("should refuse to overwrite without force", func() {
			Expect(artifacts.Write(dir, net, identities, artifacts.Options{Namespace: "besu-devnet"})).To(Succeed())
			err := artifacts.Write(dir, net, identities, artifacts.Options{Namespace: "besu-devnet"})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("--force"))
			Expect(artifacts.Write(dir, net, identities, artifacts.Options{Namespace: "besu-devnet", Force: true})).To(Succeed())
		})
	})

	Context("Read()", func() {
		It("should load network and identities back", func() {
			Expect(artifacts.Write(dir, net, identities, artifacts.Options{Namespace: "besu-devnet"})).To(Succeed())
			loadedNet, loadedIdentities, err := artifacts.Read(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(loadedNet.Name).To(Equal("testnet"))
			Expect(loadedNet.Validators).To(Equal(3))
			Expect(loadedNet.Members).To(Equal(1))
			Expect(loadedIdentities).To(HaveLen(4))
			Expect(loadedIdentities.Addresses()).To(Equal(identities.Addresses()))
		})

		It("should fail on a missing directory", func() {
			_, _, err := artifacts.Read(filepath.Join(dir, "missing"))
			Expect(err).To(HaveOccurred())
		})
	})
})
