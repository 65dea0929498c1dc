/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package status_test

import (
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sap/besu-devnet-manager/pkg/status"
)

var _ = Describe("testing: analyzer.go", func() {
	var analyzer status.StatusAnalyzer

	BeforeEach(func() {
		analyzer = status.NewStatusAnalyzer("test")
	})

	DescribeTable("testing: ComputeStatus()",
		func(generation int, observedGeneration int, conditions []metav1.Condition, hintObservedGeneration bool, hintReadyCondition bool, hintConditions []string, expectedStatus status.Status) {
			type ObjectStatus struct {
				ObservedGeneration int64              `json:"observedGeneration,omitempty"`
				Conditions         []metav1.Condition `json:"conditions,omitempty"`
			}
			type Object struct {
				metav1.ObjectMeta `json:"metadata,omitempty"`
				Status            ObjectStatus `json:"status"`
			}

			obj := Object{
				ObjectMeta: metav1.ObjectMeta{
					Generation: int64(generation),
				},
				Status: ObjectStatus{
					ObservedGeneration: int64(observedGeneration),
				},
			}
			obj.Status.Conditions = append(obj.Status.Conditions, conditions...)
			var hints []string
			if hintObservedGeneration {
				hints = append(hints, "has-observed-generation")
			}
			if hintReadyCondition {
				hints = append(hints, "has-ready-condition")
			}
			if len(hintConditions) > 0 {
				hints = append(hints, "conditions="+strings.Join(hintConditions, ";"))
			}
			if len(hints) > 0 {
				obj.Annotations = map[string]string{
					"test/status-hint": strings.Join(hints, ","),
				}
			}
			unstructuredContent, err := runtime.DefaultUnstructuredConverter.ToUnstructured(&obj)
			Expect(err).NotTo(HaveOccurred())
			unstructuredObj := &unstructured.Unstructured{Object: unstructuredContent}

			computedStatus, err := analyzer.ComputeStatus(unstructuredObj)
			Expect(err).NotTo(HaveOccurred())

			Expect(computedStatus).To(Equal(expectedStatus))
		},

		// no conditions, with and without has-observed-generation hint
		Entry(nil, 3, 0, nil, false, false, nil, status.CurrentStatus),
		Entry(nil, 3, 1, nil, false, false, nil, status.InProgressStatus),
		Entry(nil, 3, 3, nil, false, false, nil, status.CurrentStatus),
		Entry(nil, 3, 0, nil, true, false, nil, status.InProgressStatus),
		Entry(nil, 3, 3, nil, true, false, nil, status.CurrentStatus),

		// ready condition present in various states
		Entry(nil, 3, 3, []metav1.Condition{{Type: "Ready", Status: metav1.ConditionUnknown}}, false, false, nil, status.InProgressStatus),
		Entry(nil, 3, 3, []metav1.Condition{{Type: "Ready", Status: metav1.ConditionFalse}}, false, false, nil, status.InProgressStatus),
		Entry(nil, 3, 3, []metav1.Condition{{Type: "Ready", Status: metav1.ConditionTrue}}, false, false, nil, status.CurrentStatus),
		Entry(nil, 3, 1, []metav1.Condition{{Type: "Ready", Status: metav1.ConditionTrue}}, false, false, nil, status.InProgressStatus),

		// has-ready-condition hint injects an unknown ready condition if none is there
		Entry(nil, 3, 3, nil, false, true, nil, status.InProgressStatus),
		Entry(nil, 3, 3, []metav1.Condition{{Type: "Ready", Status: metav1.ConditionTrue}}, false, true, nil, status.CurrentStatus),

		// extra required conditions
		Entry(nil, 3, 3, nil, false, false, []string{"Synced"}, status.InProgressStatus),
		Entry(nil, 3, 3, []metav1.Condition{{Type: "Synced", Status: metav1.ConditionUnknown}}, false, false, []string{"Synced"}, status.InProgressStatus),
		Entry(nil, 3, 3, []metav1.Condition{{Type: "Synced", Status: metav1.ConditionFalse}}, false, false, []string{"Synced"}, status.InProgressStatus),
		Entry(nil, 3, 3, []metav1.Condition{{Type: "Synced", Status: metav1.ConditionTrue}}, false, false, []string{"Synced"}, status.CurrentStatus),

		// conditions carry an observed generation of their own
		Entry(nil, 3, 3, []metav1.Condition{{Type: "Ready", Status: metav1.ConditionTrue, ObservedGeneration: 1}}, false, false, nil, status.CurrentStatus),
		Entry(nil, 3, 3, []metav1.Condition{{Type: "Ready", Status: metav1.ConditionTrue, ObservedGeneration: 3}}, true, false, nil, status.CurrentStatus),
		Entry(nil, 3, 1, []metav1.Condition{{Type: "Ready", Status: metav1.ConditionTrue, ObservedGeneration: 3}}, true, false, nil, status.InProgressStatus),
	)

	Context("testing: ComputeStatus() on statefulsets", func() {
		makeStatefulSet := func(replicas int64, readyReplicas int64) *unstructured.Unstructured {
			return &unstructured.Unstructured{Object: map[string]any{
				"apiVersion": "apps/v1",
				"kind":       "StatefulSet",
				"metadata": map[string]any{
					"namespace":  "testnet",
					"name":       "testnet-validator1",
					"generation": int64(1),
				},
				"spec": map[string]any{
					"replicas": replicas,
				},
				"status": map[string]any{
					"observedGeneration": int64(1),
					"replicas":           replicas,
					"readyReplicas":      readyReplicas,
					"currentReplicas":    readyReplicas,
					"updatedReplicas":    replicas,
					"currentRevision":    "testnet-validator1-1",
					"updateRevision":     "testnet-validator1-1",
				},
			}}
		}

		It("should report an unready node statefulset as in progress", func() {
			computedStatus, err := analyzer.ComputeStatus(makeStatefulSet(1, 0))
			Expect(err).NotTo(HaveOccurred())
			Expect(computedStatus).To(Equal(status.InProgressStatus))
		})

		It("should report a ready node statefulset as current", func() {
			computedStatus, err := analyzer.ComputeStatus(makeStatefulSet(1, 1))
			Expect(err).NotTo(HaveOccurred())
			Expect(computedStatus).To(Equal(status.CurrentStatus))
		})
	})

	Context("testing: ComputeStatus() on jobs", func() {
		makeJob := func(succeeded int64, conditions []any) *unstructured.Unstructured {
			return &unstructured.Unstructured{Object: map[string]any{
				"apiVersion": "batch/v1",
				"kind":       "Job",
				"metadata": map[string]any{
					"namespace":  "testnet",
					"name":       "testnet-genesis-init",
					"generation": int64(1),
				},
				"spec": map[string]any{
					"completions": int64(1),
					"parallelism": int64(1),
				},
				"status": map[string]any{
					"startTime":  "2026-01-01T00:00:00Z",
					"succeeded":  succeeded,
					"conditions": conditions,
				},
			}}
		}

		It("should hold jobs in progress until a completion condition appears", func() {
			computedStatus, err := analyzer.ComputeStatus(makeJob(1, []any{}))
			Expect(err).NotTo(HaveOccurred())
			Expect(computedStatus).To(Equal(status.InProgressStatus))
		})

		It("should report a completed job as current", func() {
			computedStatus, err := analyzer.ComputeStatus(makeJob(1, []any{
				map[string]any{"type": "Complete", "status": "True"},
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(computedStatus).To(Equal(status.CurrentStatus))
		})
	})
})
