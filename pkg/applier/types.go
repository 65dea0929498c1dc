/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package applier

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/sap/besu-devnet-manager/pkg/status"
)

// TypeVersionInfo represents a Kubernetes type version.
type TypeVersionInfo struct {
	// API group.
	Group string `json:"group"`
	// API group version.
	Version string `json:"version"`
	// API kind.
	Kind string `json:"kind"`
}

// TypeInfo represents a Kubernetes type.
type TypeInfo struct {
	// API group.
	Group string `json:"group"`
	// API kind.
	Kind string `json:"kind"`
}

// NameInfo represents an object's namespace and name.
type NameInfo struct {
	// Namespace of the referenced object; empty for non-namespaced objects
	Namespace string `json:"namespace,omitempty"`
	// Name of the referenced object.
	Name string `json:"name"`
}

// AdoptionPolicy defines how the applier reacts if a managed object exists but has no or a different owner.
type AdoptionPolicy string

const (
	// Fail if the managed object exists but has no or a different owner.
	AdoptionPolicyNever AdoptionPolicy = "Never"
	// Adopt existing managed objects if they have no owner set.
	AdoptionPolicyIfUnowned AdoptionPolicy = "IfUnowned"
	// Adopt existing managed objects, even if they have a conflicting owner.
	AdoptionPolicyAlways AdoptionPolicy = "Always"
)

// ReconcilePolicy defines when the applier will reapply a managed object.
type ReconcilePolicy string

const (
	// Reapply the managed object if its manifest, as produced by the generator, changes.
	ReconcilePolicyOnObjectChange ReconcilePolicy = "OnObjectChange"
	// Reapply the managed object if its manifest, as produced by the generator, changes, or if the owning
	// network release changes (identified by a change of its revision).
	ReconcilePolicyOnObjectOrNetworkChange ReconcilePolicy = "OnObjectOrNetworkChange"
	// Apply the managed object only once; afterwards it will never be touched again by the applier.
	ReconcilePolicyOnce ReconcilePolicy = "Once"
)

// UpdatePolicy defines how the applier will update managed objects.
type UpdatePolicy string

const (
	// Recreate (that is: delete and create) existing managed objects.
	UpdatePolicyRecreate UpdatePolicy = "Recreate"
	// Replace existing managed objects.
	UpdatePolicyReplace UpdatePolicy = "Replace"
	// Use server side apply to update existing managed objects.
	UpdatePolicySsaMerge UpdatePolicy = "SsaMerge"
	// Use server side apply to update existing managed objects and, in addition, reclaim fields owned by certain
	// field owners, such as kubectl or helm.
	UpdatePolicySsaOverride UpdatePolicy = "SsaOverride"
)

// DeletePolicy defines how the applier will delete managed objects.
type DeletePolicy string

const (
	// Delete managed objects.
	DeletePolicyDelete DeletePolicy = "Delete"
	// Orphan managed objects; that is, always, both if they become redundant while the network release is applied,
	// and if the network release is deleted.
	DeletePolicyOrphan DeletePolicy = "Orphan"
	// Orphan managed objects if they become redundant while the network release is applied.
	DeletePolicyOrphanOnApply DeletePolicy = "OrphanOnApply"
	// Orphan managed objects if the network release is deleted.
	DeletePolicyOrphanOnDelete DeletePolicy = "OrphanOnDelete"
)

// MissingNamespacesPolicy defines what the applier does if namespaces of managed objects are not existing.
type MissingNamespacesPolicy string

const (
	// Do not create missing namespaces.
	MissingNamespacesPolicyDoNotCreate MissingNamespacesPolicy = "DoNotCreate"
	// Create missing namespaces.
	MissingNamespacesPolicyCreate MissingNamespacesPolicy = "Create"
)

// InventoryItem represents a managed object, as recorded in the release inventory.
type InventoryItem struct {
	// Type of the managed object.
	TypeVersionInfo `json:",inline"`
	// Namespace and name of the managed object.
	NameInfo `json:",inline"`
	// Adoption policy.
	AdoptionPolicy AdoptionPolicy `json:"adoptionPolicy"`
	// Reconcile policy.
	ReconcilePolicy ReconcilePolicy `json:"reconcilePolicy"`
	// Update policy.
	UpdatePolicy UpdatePolicy `json:"updatePolicy"`
	// Delete policy.
	DeletePolicy DeletePolicy `json:"deletePolicy"`
	// Apply order.
	ApplyOrder int `json:"applyOrder"`
	// Delete order.
	DeleteOrder int `json:"deleteOrder"`
	// Managed types.
	ManagedTypes []TypeVersionInfo `json:"managedTypes,omitempty"`
	// Digest of the descriptor of the managed object.
	Digest string `json:"digest"`
	// Phase of the managed object.
	Phase Phase `json:"phase,omitempty"`
	// Observed status of the managed object.
	Status status.Status `json:"status,omitempty"`
	// Timestamp when this object was last applied.
	LastAppliedAt *metav1.Time `json:"lastAppliedAt,omitempty"`
}

// Phase models the lifecycle state of an inventory item.
type Phase string

const (
	PhaseScheduledForApplication Phase = "ScheduledForApplication"
	PhaseScheduledForDeletion    Phase = "ScheduledForDeletion"
	PhaseScheduledForCompletion  Phase = "ScheduledForCompletion"
	PhaseCreating                Phase = "Creating"
	PhaseUpdating                Phase = "Updating"
	PhaseDeleting                Phase = "Deleting"
	PhaseCompleting              Phase = "Completing"
	PhaseReady                   Phase = "Ready"
	PhaseCompleted               Phase = "Completed"
)
