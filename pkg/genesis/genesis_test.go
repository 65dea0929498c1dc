/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package genesis_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ethereum/go-ethereum/common"

	"github.com/sap/besu-devnet-manager/pkg/genesis"
	"github.com/sap/besu-devnet-manager/pkg/identity"
	"github.com/sap/besu-devnet-manager/pkg/network"
)

var _ = Describe("testing: genesis.go", func() {
	var net *network.Network
	var validators []common.Address

	BeforeEach(func() {
		net = &network.Network{Name: "testnet"}
		net.Default()
		validators = []common.Address{
			common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
			common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"),
			common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"),
		}
	})

	Context("ExtraData()", func() {
		It("should encode the canonical single-validator extra data", func() {
			raw, err := genesis.ExtraData(validators[:1])
			Expect(err).NotTo(HaveOccurred())
			expected := "f83a" +
				"a0" + strings.Repeat("00", 32) +
				"d594f39fd6e51aad88f6f4ce6ab8827279cfffb92266" +
				"c080c0"
			Expect(common.Bytes2Hex(raw)).To(Equal(expected))
		})

		It("should round-trip the validator set", func() {
			raw, err := genesis.ExtraData(validators)
			Expect(err).NotTo(HaveOccurred())
			decoded, err := genesis.DecodeExtraData(raw)
			Expect(err).NotTo(HaveOccurred())
			Expect(decoded).To(Equal(validators))
		})
	})

	Context("DecodeExtraData()", func() {
		It("should reject garbage", func() {
			_, err := genesis.DecodeExtraData([]byte{0x01, 0x02, 0x03})
			Expect(err).To(HaveOccurred())
		})
	})

	Context("Build()", func() {
		It("should assemble the chain configuration", func() {
			g, err := genesis.Build(net, validators)
			Expect(err).NotTo(HaveOccurred())
			Expect(g.Config.ChainID).To(Equal(int64(1337)))
			Expect(g.Config.LondonBlock).To(Equal(int64(0)))
			Expect(g.Config.ZeroBaseFee).To(BeTrue())
			Expect(g.Config.QBFT.BlockPeriodSeconds).To(Equal(2))
			Expect(g.Config.QBFT.EpochLength).To(Equal(30000))
			Expect(g.Config.QBFT.RequestTimeoutSeconds).To(Equal(10))
			Expect(g.Nonce).To(Equal("0x0"))
			Expect(g.Timestamp).To(Equal("0x0"))
			Expect(g.GasLimit).To(Equal("0x1c9c380"))
			Expect(g.Difficulty).To(Equal("0x1"))
			Expect(g.MixHash).To(Equal(genesis.MixHash))
			Expect(g.Coinbase).To(Equal("0x0000000000000000000000000000000000000000"))
		})

		It("should prefund validators and configured accounts", func() {
			net.FundedAccounts = map[string]string{
				"0xf17F52151EbEF6C7334FAD080c5704D77216b732": "0xad78ebc5ac6200000",
			}
			g, err := genesis.Build(net, validators)
			Expect(err).NotTo(HaveOccurred())
			Expect(g.Alloc).To(HaveLen(4))
			Expect(g.Alloc).To(HaveKeyWithValue("f39fd6e51aad88f6f4ce6ab8827279cfffb92266", genesis.Account{Balance: genesis.DefaultBalance}))
			Expect(g.Alloc).To(HaveKeyWithValue("f17f52151ebef6c7334fad080c5704d77216b732", genesis.Account{Balance: "0xad78ebc5ac6200000"}))
		})

		It("should decode its own validator set", func() {
			g, err := genesis.Build(net, validators)
			Expect(err).NotTo(HaveOccurred())
			decoded, err := g.Validators()
			Expect(err).NotTo(HaveOccurred())
			Expect(decoded).To(Equal(validators))
		})

		It("should refuse an empty validator set", func() {
			_, err := genesis.Build(net, nil)
			Expect(err).To(HaveOccurred())
		})
	})

	Context("ForNetwork()", func() {
		It("should build from the validator identities only", func() {
			net.Members = 2
			nodes := net.Nodes()
			names := make([]string, len(nodes))
			for i, node := range nodes {
				names[i] = node.Name
			}
			identities, err := identity.Generate(names)
			Expect(err).NotTo(HaveOccurred())
			g, err := genesis.ForNetwork(net, identities)
			Expect(err).NotTo(HaveOccurred())
			decoded, err := g.Validators()
			Expect(err).NotTo(HaveOccurred())
			expected, err := genesis.ValidatorAddresses(net, identities)
			Expect(err).NotTo(HaveOccurred())
			Expect(decoded).To(Equal(expected))
			Expect(expected).To(HaveLen(3))
		})

		It("should fail for missing identities", func() {
			identities, err := identity.Generate([]string{"validator-0"})
			Expect(err).NotTo(HaveOccurred())
			_, err = genesis.ForNetwork(net, identities)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("validator-1"))
		})
	})

	Context("Marshal()/Read()", func() {
		It("should omit a zero empty block period", func() {
			g, err := genesis.Build(net, validators)
			Expect(err).NotTo(HaveOccurred())
			raw, err := g.Marshal()
			Expect(err).NotTo(HaveOccurred())
			Expect(string(raw)).NotTo(ContainSubstring("emptyblockperiodseconds"))
			Expect(string(raw)).To(ContainSubstring("\"londonBlock\": 0"))
			Expect(string(raw)).To(ContainSubstring("\"zeroBaseFee\": true"))
		})

		It("should keep a non-zero empty block period", func() {
			net.EmptyBlockPeriodSeconds = 60
			g, err := genesis.Build(net, validators)
			Expect(err).NotTo(HaveOccurred())
			raw, err := g.Marshal()
			Expect(err).NotTo(HaveOccurred())
			Expect(string(raw)).To(ContainSubstring("\"emptyblockperiodseconds\": 60"))
		})

		It("should round-trip through Read", func() {
			g, err := genesis.Build(net, validators)
			Expect(err).NotTo(HaveOccurred())
			raw, err := g.Marshal()
			Expect(err).NotTo(HaveOccurred())
			parsed, err := genesis.Read(raw)
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed).To(Equal(g))
			decoded, err := parsed.Validators()
			Expect(err).NotTo(HaveOccurred())
			Expect(decoded).To(Equal(validators))
		})
	})
})
