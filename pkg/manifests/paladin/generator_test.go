/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package paladin_test

import (
	"context"
	"os"
	"path/filepath"

	helmchart "helm.sh/helm/v3/pkg/chart"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/controller-runtime/pkg/client"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sap/besu-devnet-manager/internal/chart"
	"github.com/sap/besu-devnet-manager/pkg/manifests"
	"github.com/sap/besu-devnet-manager/pkg/manifests/paladin"
	"github.com/sap/besu-devnet-manager/pkg/network"
	"github.com/sap/besu-devnet-manager/pkg/types"
)

var _ = Describe("testing: generator.go", func() {
	var chrt *helmchart.Chart

	BeforeEach(func() {
		var err error
		chrt, err = chart.Load("testdata/charts/paladin")
		Expect(err).NotTo(HaveOccurred())
	})

	generate := func(revision int64, paladinSpec *network.Paladin, parameters types.Unstructurable) ([]client.Object, error) {
		ctx := manifests.NewContextWithRevision(context.TODO(), revision)
		generator := paladin.NewGenerator(chrt, paladinSpec, nil)
		return generator.Generate(ctx, "blockchain", "devnet", parameters)
	}

	Context("rendering the initial deployment", func() {
		var objects []client.Object

		BeforeEach(func() {
			var err error
			objects, err = generate(1, &network.Paladin{Enabled: true, Chart: "paladin"}, nil)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should emit the chart objects, the CRDs and the install hooks, but no upgrade or test hooks", func() {
			Expect(objects).To(HaveLen(6))
			Expect(findObject(objects, "CustomResourceDefinition", "privacygroups.core.paladin.io")).NotTo(BeNil())
			Expect(findObject(objects, "ConfigMap", "devnet-paladin-config")).NotTo(BeNil())
			Expect(findObject(objects, "Deployment", "devnet-paladin")).NotTo(BeNil())
			Expect(findObject(objects, "Secret", "devnet-paladin-keys")).NotTo(BeNil())
			Expect(findObject(objects, "Job", "devnet-paladin-seed")).NotTo(BeNil())
			Expect(findObject(objects, "Job", "devnet-paladin-verify")).NotTo(BeNil())
			Expect(findObject(objects, "Job", "devnet-paladin-migrate")).To(BeNil())
			Expect(findObject(objects, "Pod", "devnet-paladin-smoke")).To(BeNil())
		})

		It("should order regular objects after the network waves, and tear them down first", func() {
			for _, name := range []string{"devnet-paladin-config", "devnet-paladin"} {
				object := findObject(objects, "", name)
				Expect(object.GetAnnotations()).To(HaveKeyWithValue("bdm.cs.sap.com/apply-order", "203"))
				Expect(object.GetAnnotations()).To(HaveKeyWithValue("bdm.cs.sap.com/delete-order", "-1"))
				Expect(object.GetNamespace()).To(BeEmpty())
			}
		})

		It("should translate the resource policy of the secret into an orphan delete policy", func() {
			secret := findObject(objects, "Secret", "devnet-paladin-keys")
			Expect(secret.GetAnnotations()).To(HaveKeyWithValue("bdm.cs.sap.com/delete-policy", "orphan"))
		})

		It("should map the pre-install hook below the regular objects", func() {
			job := findObject(objects, "Job", "devnet-paladin-seed")
			annotations := job.GetAnnotations()
			Expect(annotations).To(HaveKeyWithValue("bdm.cs.sap.com/apply-order", "97"))
			Expect(annotations).To(HaveKeyWithValue("bdm.cs.sap.com/reconcile-policy", "once"))
			Expect(annotations).To(HaveKeyWithValue("bdm.cs.sap.com/update-policy", "recreate"))
			Expect(annotations).To(HaveKeyWithValue("bdm.cs.sap.com/purge-order", "202"))
		})

		It("should map the post-install hook above the regular objects", func() {
			job := findObject(objects, "Job", "devnet-paladin-verify")
			annotations := job.GetAnnotations()
			Expect(annotations).To(HaveKeyWithValue("bdm.cs.sap.com/apply-order", "314"))
			Expect(annotations).To(HaveKeyWithValue("bdm.cs.sap.com/reconcile-policy", "once"))
			Expect(annotations).To(HaveKeyWithValue("bdm.cs.sap.com/update-policy", "recreate"))
			Expect(annotations).NotTo(HaveKey("bdm.cs.sap.com/purge-order"))
		})

		It("should render with the chart default values", func() {
			configMap := findObject(objects, "ConfigMap", "devnet-paladin-config")
			data, _, err := unstructured.NestedStringMap(configMap.Object, "data")
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(HaveKeyWithValue("mode", "devnet"))
			Expect(data).To(HaveKeyWithValue("rpcUrl", "http://localhost:8545"))
		})
	})

	Context("rendering an update", func() {
		var objects []client.Object

		BeforeEach(func() {
			var err error
			objects, err = generate(2, &network.Paladin{Enabled: true, Chart: "paladin"}, nil)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should emit the upgrade hooks as well", func() {
			Expect(objects).To(HaveLen(7))
			job := findObject(objects, "Job", "devnet-paladin-migrate")
			Expect(job).NotTo(BeNil())
			annotations := job.GetAnnotations()
			Expect(annotations).To(HaveKeyWithValue("bdm.cs.sap.com/apply-order", "102"))
			Expect(annotations).To(HaveKeyWithValue("bdm.cs.sap.com/reconcile-policy", "on-object-or-network-change"))
			Expect(annotations).To(HaveKeyWithValue("bdm.cs.sap.com/purge-order", "202"))
			Expect(annotations).NotTo(HaveKey("bdm.cs.sap.com/update-policy"))
		})

		It("should reconcile hooks shared between installation and upgrade on every change", func() {
			job := findObject(objects, "Job", "devnet-paladin-verify")
			annotations := job.GetAnnotations()
			Expect(annotations).To(HaveKeyWithValue("bdm.cs.sap.com/apply-order", "314"))
			Expect(annotations).To(HaveKeyWithValue("bdm.cs.sap.com/reconcile-policy", "on-object-or-network-change"))
		})
	})

	Context("layering chart values", func() {
		It("should apply values files first, then network values, then parameters", func() {
			valuesFile := filepath.Join(GinkgoT().TempDir(), "values.yaml")
			Expect(os.WriteFile(valuesFile, []byte("mode: file-mode\nreplicas: 2\n"), 0o644)).To(Succeed())

			objects, err := generate(1, &network.Paladin{
				Enabled:     true,
				Chart:       "paladin",
				Values:      map[string]any{"mode": "network-mode"},
				ValuesFiles: []string{valuesFile},
			}, types.UnstructurableMap{"replicas": 7})
			Expect(err).NotTo(HaveOccurred())

			configMap := findObject(objects, "ConfigMap", "devnet-paladin-config")
			data, _, err := unstructured.NestedStringMap(configMap.Object, "data")
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(HaveKeyWithValue("mode", "network-mode"))

			deployment := findObject(objects, "Deployment", "devnet-paladin")
			replicas, _, err := unstructured.NestedFieldNoCopy(deployment.Object, "spec", "replicas")
			Expect(err).NotTo(HaveOccurred())
			Expect(replicas).To(BeNumerically("==", 7))
		})

		It("should fail on unreadable values files", func() {
			_, err := generate(1, &network.Paladin{
				Enabled:     true,
				Chart:       "paladin",
				ValuesFiles: []string{"testdata/does-not-exist.yaml"},
			}, nil)
			Expect(err).To(MatchError(ContainSubstring("error reading values file")))
		})
	})

	Context("rendering unsupported content", func() {
		It("should reject objects carrying reserved annotations", func() {
			_, err := generate(1, &network.Paladin{
				Enabled: true,
				Chart:   "paladin",
				Values:  map[string]any{"renderForbiddenAnnotation": true},
			}, nil)
			Expect(err).To(MatchError(ContainSubstring("must not be set")))
		})

		It("should reject deletion hooks", func() {
			_, err := generate(1, &network.Paladin{
				Enabled: true,
				Chart:   "paladin",
				Values:  map[string]any{"renderDeleteHook": true},
			}, nil)
			Expect(err).To(MatchError(ContainSubstring("helm hook type pre-delete not supported")))
		})
	})

	It("should refuse to generate without a revision in the context", func() {
		generator := paladin.NewGenerator(chrt, &network.Paladin{Enabled: true, Chart: "paladin"}, nil)
		_, err := generator.Generate(context.TODO(), "blockchain", "devnet", nil)
		Expect(err).To(MatchError(ContainSubstring("revision not found in context")))
	})
})

func findObject(objects []client.Object, kind string, name string) *unstructured.Unstructured {
	for _, object := range objects {
		if (kind == "" || object.GetObjectKind().GroupVersionKind().Kind == kind) && object.GetName() == name {
			return object.(*unstructured.Unstructured)
		}
	}
	return nil
}
