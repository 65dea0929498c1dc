/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package helm

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"sigs.k8s.io/controller-runtime/pkg/client"
)

const (
	annotationKeyHook             = "helm.sh/hook"
	annotationKeyHookWeight       = "helm.sh/hook-weight"
	annotationKeyHookDeletePolicy = "helm.sh/hook-delete-policy"
)

// Hook types as defined by helm.
const (
	HookTypePreInstall   = "pre-install"
	HookTypePostInstall  = "post-install"
	HookTypePreUpgrade   = "pre-upgrade"
	HookTypePostUpgrade  = "post-upgrade"
	HookTypePreDelete    = "pre-delete"
	HookTypePostDelete   = "post-delete"
	HookTypePreRollback  = "pre-rollback"
	HookTypePostRollback = "post-rollback"
	HookTypeTest         = "test"
	HookTypeTestSuccess  = "test-success"
)

// Range of allowed hook weights.
const (
	HookMinWeight = -100
	HookMaxWeight = 100
)

// Hook deletion policies as defined by helm.
const (
	HookDeletePolicyBeforeHookCreation = "before-hook-creation"
	HookDeletePolicyHookSucceeded      = "hook-succeeded"
	HookDeletePolicyHookFailed         = "hook-failed"
)

// HookMetadata reflects the hook related annotations of a chart object.
type HookMetadata struct {
	Types          []string
	Weight         int
	DeletePolicies []string
}

// Parse helm hook properties from object; returns nil if the helm.sh/hook annotation is not set.
// The weight defaults to zero, and the deletion policies default to before-hook-creation, as in helm.
func ParseHookMetadata(object client.Object) (*HookMetadata, error) {
	annotations := object.GetAnnotations()

	value, ok := annotations[annotationKeyHook]
	if !ok {
		return nil, nil
	}

	metadata := &HookMetadata{}

	metadata.Types = strings.Split(value, ",")
	for _, t := range metadata.Types {
		switch t {
		case HookTypePreInstall, HookTypePostInstall, HookTypePreUpgrade, HookTypePostUpgrade,
			HookTypePreDelete, HookTypePostDelete, HookTypePreRollback, HookTypePostRollback,
			HookTypeTest, HookTypeTestSuccess:
		default:
			return nil, errors.Errorf("invalid hook type: %s", t)
		}
	}

	if value, ok := annotations[annotationKeyHookWeight]; ok {
		weight, err := strconv.Atoi(value)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid hook weight: %s", value)
		}
		if weight < HookMinWeight || weight > HookMaxWeight {
			return nil, errors.Errorf("invalid hook weight: %d (allowed range: %d..%d)", weight, HookMinWeight, HookMaxWeight)
		}
		metadata.Weight = weight
	}

	if value, ok := annotations[annotationKeyHookDeletePolicy]; ok {
		metadata.DeletePolicies = strings.Split(value, ",")
		for _, p := range metadata.DeletePolicies {
			switch p {
			case HookDeletePolicyBeforeHookCreation, HookDeletePolicyHookSucceeded, HookDeletePolicyHookFailed:
			default:
				return nil, errors.Errorf("invalid hook deletion policy: %s", p)
			}
		}
	} else {
		metadata.DeletePolicies = []string{HookDeletePolicyBeforeHookCreation}
	}

	return metadata, nil
}
