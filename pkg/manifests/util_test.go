/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package manifests_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sap/besu-devnet-manager/pkg/manifests"
)

func jsonUnmarshal(s string) map[string]any {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		panic(err)
	}
	return m
}

var _ = Describe("testing: util.go", func() {
	DescribeTable("testing: MergeMaps()",
		func(x string, y string, expected string) {
			var _x, _y map[string]any
			if x != "" {
				_x = jsonUnmarshal(x)
			}
			if y != "" {
				_y = jsonUnmarshal(y)
			}
			merged := manifests.MergeMaps(_x, _y)
			Expect(merged).To(Equal(jsonUnmarshal(expected)))
			if x != "" {
				Expect(_x).To(Equal(jsonUnmarshal(x)))
			}
			if y != "" {
				Expect(_y).To(Equal(jsonUnmarshal(y)))
			}
		},
		Entry(nil, "", "", `{}`),
		Entry(nil, `{"chainId":1337}`, "", `{"chainId":1337}`),
		Entry(nil, "", `{"chainId":1337}`, `{"chainId":1337}`),
		Entry(nil, `{"chainId":1337}`, `{"chainId":2024}`, `{"chainId":2024}`),
		Entry(nil, `{"besu":{"logging":"INFO"}}`, `{"besu":{"logging":"DEBUG"}}`, `{"besu":{"logging":"DEBUG"}}`),
		Entry(nil, `{"besu":{"logging":"INFO"}}`, `{"besu":{"image":"hyperledger/besu:24.12.2"}}`, `{"besu":{"logging":"INFO","image":"hyperledger/besu:24.12.2"}}`),
		Entry(nil, `{"besu":{"logging":"INFO"}}`, `{"besu":"disabled"}`, `{"besu":"disabled"}`),
		Entry(nil, `{"besu":"disabled"}`, `{"besu":{"logging":"INFO"}}`, `{"besu":{"logging":"INFO"}}`),
		Entry(nil, `{"nodes":["validator1","validator2"]}`, `{"nodes":["validator1"]}`, `{"nodes":["validator1"]}`),
	)
})
