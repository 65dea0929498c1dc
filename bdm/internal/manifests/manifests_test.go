/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package manifests_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/sap/besu-devnet-manager/bdm/internal/manifests"
	"github.com/sap/besu-devnet-manager/pkg/identity"
	"github.com/sap/besu-devnet-manager/pkg/network"
)

var _ = Describe("testing: manifests.go", func() {
	var net *network.Network

	BeforeEach(func() {
		net = &network.Network{Name: "testnet"}
		net.Default()
	})

	Context("ApplyValuesFiles()", func() {
		var dir string

		writeValues := func(name string, content string) string {
			path := filepath.Join(dir, name)
			Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
			return path
		}

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
		})

		It("should merge values files in order of appearance", func() {
			one := writeValues("one.yaml", "members: 2\nlogLevel: DEBUG\n")
			two := writeValues("two.yaml", "members: 4\n")
			Expect(manifests.ApplyValuesFiles(net, []string{one, two})).To(Succeed())
			Expect(net.Members).To(Equal(4))
			Expect(net.LogLevel).To(Equal("DEBUG"))
			Expect(net.Name).To(Equal("testnet"))
			Expect(net.Validators).To(Equal(3))
		})

		It("should reject unknown fields", func() {
			bad := writeValues("bad.yaml", "nodeCount: 5\n")
			err := manifests.ApplyValuesFiles(net, []string{bad})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("error applying values files"))
		})

		It("should fail on a missing file", func() {
			err := manifests.ApplyValuesFiles(net, []string{filepath.Join(dir, "missing.yaml")})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("error reading values file"))
		})

		It("should leave the network untouched without files", func() {
			members := net.Members
			Expect(manifests.ApplyValuesFiles(net, nil)).To(Succeed())
			Expect(net.Members).To(Equal(members))
		})
	})

	Context("RebasePaths()", func() {
		It("should rebase relative paths and keep absolute ones", func() {
			net.ExtraManifests = "extra"
			net.Paladin = &network.Paladin{ValuesFiles: []string{"values.yaml", "/abs/values.yaml"}}
			manifests.RebasePaths(net, "/base")
			Expect(net.ExtraManifests).To(Equal("/base/extra"))
			Expect(net.Paladin.ValuesFiles).To(Equal([]string{"/base/values.yaml", "/abs/values.yaml"}))
		})
	})

	Context("WriteManifests()", func() {
		It("should write a multi document stream", func() {
			configMap := func(name string) client.Object {
				return &corev1.ConfigMap{
					TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "ConfigMap"},
					ObjectMeta: metav1.ObjectMeta{Namespace: "blockchain", Name: name},
				}
			}
			path := filepath.Join(GinkgoT().TempDir(), "manifests.yaml")
			Expect(manifests.WriteManifests(path, []client.Object{configMap("one"), configMap("two")})).To(Succeed())
			raw, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(strings.Count(string(raw), "---\n")).To(Equal(2))
			Expect(string(raw)).To(ContainSubstring("name: one"))
			Expect(string(raw)).To(ContainSubstring("name: two"))
		})
	})

	Context("Generate()", func() {
		It("should render the node manifests without a cluster connection", func() {
			nodes := net.Nodes()
			names := make([]string, len(nodes))
			for i, node := range nodes {
				names[i] = node.Name
			}
			identities, err := identity.Generate(names)
			Expect(err).NotTo(HaveOccurred())

			objects, err := manifests.Generate(context.TODO(), nil, "blockchain", net, identities, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(objects).NotTo(BeEmpty())

			found := false
			for _, object := range objects {
				if object.GetObjectKind().GroupVersionKind().Kind == "ConfigMap" && object.GetName() == "testnet-genesis" {
					found = true
				}
			}
			Expect(found).To(BeTrue())
		})
	})
})
