/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package types

// Suffixes of the labels and annotations understood by the applier.
// The effective key is the applier's fully qualified name, followed by a slash, followed by the suffix.
const (
	LabelKeySuffixOwnerId = "owner-id"

	AnnotationKeySuffixOwnerId         = "owner-id"
	AnnotationKeySuffixDigest          = "digest"
	AnnotationKeySuffixAdoptionPolicy  = "adoption-policy"
	AnnotationKeySuffixReconcilePolicy = "reconcile-policy"
	AnnotationKeySuffixUpdatePolicy    = "update-policy"
	AnnotationKeySuffixDeletePolicy    = "delete-policy"
	AnnotationKeySuffixApplyOrder      = "apply-order"
	AnnotationKeySuffixPurgeOrder      = "purge-order"
	AnnotationKeySuffixDeleteOrder     = "delete-order"
	AnnotationKeySuffixStatusHint      = "status-hint"
)

// Values understood by the adoption-policy annotation.
const (
	AdoptionPolicyNever     = "never"
	AdoptionPolicyIfUnowned = "if-unowned"
	AdoptionPolicyAlways    = "always"
)

// Values understood by the reconcile-policy annotation.
const (
	ReconcilePolicyOnObjectChange          = "on-object-change"
	ReconcilePolicyOnObjectOrNetworkChange = "on-object-or-network-change"
	ReconcilePolicyOnce                    = "once"
)

// Values understood by the update-policy annotation.
const (
	UpdatePolicyDefault     = "default"
	UpdatePolicyRecreate    = "recreate"
	UpdatePolicyReplace     = "replace"
	UpdatePolicySsaMerge    = "ssa-merge"
	UpdatePolicySsaOverride = "ssa-override"
)

// Values understood by the delete-policy annotation.
const (
	DeletePolicyDefault        = "default"
	DeletePolicyDelete         = "delete"
	DeletePolicyOrphan         = "orphan"
	DeletePolicyOrphanOnApply  = "orphan-on-apply"
	DeletePolicyOrphanOnDelete = "orphan-on-delete"
)

// Values understood by the status-hint annotation.
const (
	StatusHintHasObservedGeneration = "has-observed-generation"
	StatusHintHasReadyCondition     = "has-ready-condition"
	StatusHintConditions            = "conditions"
)
