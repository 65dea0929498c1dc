/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package applier

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
	"github.com/sap/go-generics/slices"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/structured-merge-diff/v6/fieldpath"
)

// Rewrite the given managed fields, such that all entries whose manager equals the given manager, or starts with
// one of the given prefixes, are collapsed into a single entry owned by manager, with operation Apply.
// Entries belonging to subresources are left untouched. The returned flag indicates whether anything was changed.
func replaceFieldManager(managedFields []metav1.ManagedFieldsEntry, managerPrefixes []string, manager string) ([]metav1.ManagedFieldsEntry, bool, error) {
	var managerEntry metav1.ManagedFieldsEntry
	empty := metav1.ManagedFieldsEntry{}

	for _, entry := range managedFields {
		if entry.Manager == manager && entry.Operation == metav1.ManagedFieldsOperationApply {
			managerEntry = entry
		}
	}

	entries := make([]metav1.ManagedFieldsEntry, 0, len(managedFields))
	changed := false

	for _, entry := range managedFields {
		if entry == managerEntry {
			continue
		}
		if entry.Subresource != "" {
			entries = append(entries, entry)
			continue
		}
		if entry.Manager != manager && !slices.Any(managerPrefixes, func(s string) bool { return strings.HasPrefix(entry.Manager, s) }) {
			entries = append(entries, entry)
			continue
		}
		if managerEntry == empty {
			entry.Manager = manager
			entry.Operation = metav1.ManagedFieldsOperationApply
			managerEntry = entry
			changed = true
			continue
		}
		mergedFields, err := mergeFieldsV1(managerEntry.FieldsV1, entry.FieldsV1)
		if err != nil {
			return nil, false, errors.Wrap(err, "unable to merge managed fields")
		}
		managerEntry.FieldsV1 = mergedFields
		changed = true
	}

	return append(entries, managerEntry), changed, nil
}

func mergeFieldsV1(a *metav1.FieldsV1, b *metav1.FieldsV1) (*metav1.FieldsV1, error) {
	if a == nil {
		return b, nil
	}
	if b == nil {
		return a, nil
	}

	var sa, sb fieldpath.Set
	if err := sa.FromJSON(bytes.NewReader(a.Raw)); err != nil {
		return nil, errors.Wrap(err, "error parsing field set")
	}
	if err := sb.FromJSON(bytes.NewReader(b.Raw)); err != nil {
		return nil, errors.Wrap(err, "error parsing field set")
	}

	raw, err := sa.Union(&sb).ToJSON()
	if err != nil {
		return nil, errors.Wrap(err, "error serializing merged field set")
	}
	return &metav1.FieldsV1{Raw: raw}, nil
}
