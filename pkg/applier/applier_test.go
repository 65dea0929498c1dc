/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package applier_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta/testrestmapper"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	apitypes "k8s.io/apimachinery/pkg/types"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/record"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/sap/besu-devnet-manager/pkg/applier"
	"github.com/sap/besu-devnet-manager/pkg/cluster"
)

var _ = Describe("testing: applier.go", func() {
	var clnt cluster.Client
	var applr *applier.Applier
	var inventory []*applier.InventoryItem
	var namespace string
	var ownerId string
	var ctx context.Context
	var readCounter, createCounter, updateCounter, deleteCounter prometheus.Counter

	BeforeEach(func() {
		namespace = "blockchain"
		ownerId = "bdm.cs.sap.com/blockchain/testnet"
		ctx = context.TODO()
		fakeClient := fake.NewClientBuilder().WithScheme(clientgoscheme.Scheme).WithRESTMapper(testrestmapper.TestOnlyStaticRESTMapper(clientgoscheme.Scheme)).Build()
		clnt = cluster.NewClient(fakeClient, nil, record.NewFakeRecorder(20), &rest.Config{})
		readCounter = prometheus.NewCounter(prometheus.CounterOpts{Name: "reads_total"})
		createCounter = prometheus.NewCounter(prometheus.CounterOpts{Name: "creates_total"})
		updateCounter = prometheus.NewCounter(prometheus.CounterOpts{Name: "updates_total"})
		deleteCounter = prometheus.NewCounter(prometheus.CounterOpts{Name: "deletes_total"})
		applr = applier.NewApplier("bdm.cs.sap.com", clnt, applier.ApplierOptions{
			Metrics: applier.ApplierMetrics{
				ReadCounter:   readCounter,
				CreateCounter: createCounter,
				UpdateCounter: updateCounter,
				DeleteCounter: deleteCounter,
			},
		})
		inventory = nil
	})

	configMap := func(name string, data map[string]string) client.Object {
		return &corev1.ConfigMap{
			TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "ConfigMap"},
			ObjectMeta: metav1.ObjectMeta{Namespace: namespace, Name: name},
			Data:       data,
		}
	}

	// drives Apply to convergence, like the command line client does
	apply := func(revision int64, objects ...client.Object) {
		for i := 0; i < 10; i++ {
			done, err := applr.Apply(ctx, &inventory, objects, namespace, ownerId, revision)
			Expect(err).NotTo(HaveOccurred())
			if done {
				return
			}
		}
		Fail("apply did not converge")
	}

	remove := func() {
		for i := 0; i < 10; i++ {
			done, err := applr.Delete(ctx, &inventory, ownerId)
			Expect(err).NotTo(HaveOccurred())
			if done {
				return
			}
		}
		Fail("delete did not converge")
	}

	Context("Apply()", func() {
		It("should create objects and converge to an all-ready inventory", func() {
			apply(1, configMap("testnet-genesis", map[string]string{"genesis.json": "{}"}), configMap("testnet-static-nodes", map[string]string{"static-nodes.json": "[]"}))

			Expect(inventory).To(HaveLen(2))
			for _, item := range inventory {
				Expect(item.Phase).To(Equal(applier.PhaseReady))
			}

			object := &corev1.ConfigMap{}
			Expect(clnt.Get(ctx, apitypes.NamespacedName{Namespace: namespace, Name: "testnet-genesis"}, object)).To(Succeed())
			Expect(object.Labels).To(HaveKey("bdm.cs.sap.com/owner-id"))
			Expect(object.Annotations).To(HaveKeyWithValue("bdm.cs.sap.com/owner-id", ownerId))

			// the target namespace did not exist and must have been created along the way
			Expect(clnt.Get(ctx, apitypes.NamespacedName{Name: namespace}, &corev1.Namespace{})).To(Succeed())

			Expect(testutil.ToFloat64(createCounter)).To(BeNumerically(">=", 2))
			Expect(testutil.ToFloat64(readCounter)).To(BeNumerically(">", 0))
		})

		It("should not touch up-to-date objects when applied again", func() {
			apply(1, configMap("testnet-genesis", map[string]string{"genesis.json": "{}"}))
			updates := testutil.ToFloat64(updateCounter)
			apply(1, configMap("testnet-genesis", map[string]string{"genesis.json": "{}"}))
			Expect(testutil.ToFloat64(updateCounter)).To(Equal(updates))
		})

		It("should update objects whose manifest changed", func() {
			apply(1, configMap("testnet-config", map[string]string{"key": "one"}))
			apply(2, configMap("testnet-config", map[string]string{"key": "two"}))

			object := &corev1.ConfigMap{}
			Expect(clnt.Get(ctx, apitypes.NamespacedName{Namespace: namespace, Name: "testnet-config"}, object)).To(Succeed())
			Expect(object.Data).To(HaveKeyWithValue("key", "two"))
			Expect(testutil.ToFloat64(updateCounter)).To(BeNumerically(">=", 1))
		})

		It("should delete objects that disappeared from the object set", func() {
			apply(1, configMap("testnet-genesis", map[string]string{"genesis.json": "{}"}), configMap("testnet-extra", nil))
			apply(2, configMap("testnet-genesis", map[string]string{"genesis.json": "{}"}))

			Expect(inventory).To(HaveLen(1))
			Expect(inventory[0].Name).To(Equal("testnet-genesis"))
			err := clnt.Get(ctx, apitypes.NamespacedName{Namespace: namespace, Name: "testnet-extra"}, &corev1.ConfigMap{})
			Expect(apierrors.IsNotFound(err)).To(BeTrue())
			Expect(testutil.ToFloat64(deleteCounter)).To(BeNumerically(">=", 1))
		})

		It("should refuse to adopt an object owned by someone else", func() {
			foreign := &corev1.ConfigMap{
				ObjectMeta: metav1.ObjectMeta{
					Namespace: namespace,
					Name:      "testnet-genesis",
					Labels:    map[string]string{"bdm.cs.sap.com/owner-id": "someoneelse"},
				},
			}
			Expect(clnt.Create(ctx, foreign)).To(Succeed())

			_, err := applr.Apply(ctx, &inventory, []client.Object{configMap("testnet-genesis", nil)}, namespace, ownerId, 1)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("owner conflict"))
		})
	})

	Context("Delete()", func() {
		It("should remove all inventory objects and empty the inventory", func() {
			apply(1, configMap("testnet-genesis", map[string]string{"genesis.json": "{}"}), configMap("testnet-static-nodes", map[string]string{"static-nodes.json": "[]"}))
			remove()

			Expect(inventory).To(BeEmpty())
			err := clnt.Get(ctx, apitypes.NamespacedName{Namespace: namespace, Name: "testnet-genesis"}, &corev1.ConfigMap{})
			Expect(apierrors.IsNotFound(err)).To(BeTrue())
		})
	})

	Context("IsDeletionAllowed()", func() {
		It("should allow deletion of plain object sets", func() {
			apply(1, configMap("testnet-genesis", map[string]string{"genesis.json": "{}"}))
			ok, msg, err := applr.IsDeletionAllowed(ctx, &inventory, ownerId)
			Expect(err).NotTo(HaveOccurred())
			Expect(msg).To(BeEmpty())
			Expect(ok).To(BeTrue())
		})
	})
})
