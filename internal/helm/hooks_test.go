/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package helm_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/sap/besu-devnet-manager/internal/helm"
)

func makeObject(annotations map[string]string) client.Object {
	object := &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "batch/v1",
		"kind":       "Job",
		"metadata": map[string]any{
			"name": "test",
		},
	}}
	if annotations != nil {
		object.SetAnnotations(annotations)
	}
	return object
}

var _ = Describe("testing: hooks.go", func() {
	It("should return nil if the hook annotation is not set", func() {
		metadata, err := helm.ParseHookMetadata(makeObject(nil))
		Expect(err).NotTo(HaveOccurred())
		Expect(metadata).To(BeNil())
	})

	It("should apply helm's defaults for weight and deletion policies", func() {
		metadata, err := helm.ParseHookMetadata(makeObject(map[string]string{
			"helm.sh/hook": "pre-install,post-install",
		}))
		Expect(err).NotTo(HaveOccurred())
		Expect(metadata).NotTo(BeNil())
		Expect(metadata.Types).To(Equal([]string{"pre-install", "post-install"}))
		Expect(metadata.Weight).To(Equal(0))
		Expect(metadata.DeletePolicies).To(Equal([]string{helm.HookDeletePolicyBeforeHookCreation}))
	})

	It("should parse weight and deletion policies", func() {
		metadata, err := helm.ParseHookMetadata(makeObject(map[string]string{
			"helm.sh/hook":               "post-upgrade",
			"helm.sh/hook-weight":        "-5",
			"helm.sh/hook-delete-policy": "hook-succeeded,hook-failed",
		}))
		Expect(err).NotTo(HaveOccurred())
		Expect(metadata.Types).To(Equal([]string{"post-upgrade"}))
		Expect(metadata.Weight).To(Equal(-5))
		Expect(metadata.DeletePolicies).To(Equal([]string{"hook-succeeded", "hook-failed"}))
	})

	It("should reject unknown hook types", func() {
		_, err := helm.ParseHookMetadata(makeObject(map[string]string{
			"helm.sh/hook": "pre-install,crd-install",
		}))
		Expect(err).To(MatchError(ContainSubstring("invalid hook type")))
	})

	It("should reject non-numeric weights", func() {
		_, err := helm.ParseHookMetadata(makeObject(map[string]string{
			"helm.sh/hook":        "pre-install",
			"helm.sh/hook-weight": "heavy",
		}))
		Expect(err).To(MatchError(ContainSubstring("invalid hook weight")))
	})

	It("should reject weights outside the allowed range", func() {
		_, err := helm.ParseHookMetadata(makeObject(map[string]string{
			"helm.sh/hook":        "pre-install",
			"helm.sh/hook-weight": "101",
		}))
		Expect(err).To(MatchError(ContainSubstring("allowed range")))
	})

	It("should reject unknown deletion policies", func() {
		_, err := helm.ParseHookMetadata(makeObject(map[string]string{
			"helm.sh/hook":               "pre-install",
			"helm.sh/hook-delete-policy": "always",
		}))
		Expect(err).To(MatchError(ContainSubstring("invalid hook deletion policy")))
	})
})
