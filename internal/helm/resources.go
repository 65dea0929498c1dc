/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package helm

import (
	"github.com/pkg/errors"

	"sigs.k8s.io/controller-runtime/pkg/client"
)

const (
	annotationKeyResourcePolicy = "helm.sh/resource-policy"
)

// Resource policies as defined by helm; keep is the only defined one.
const (
	ResourcePolicyKeep = "keep"
)

// ResourceMetadata reflects the resource policy annotation of a chart object.
// Policy remains empty if the annotation is not set.
type ResourceMetadata struct {
	Policy string
}

// Parse helm resource properties from object.
func ParseResourceMetadata(object client.Object) (*ResourceMetadata, error) {
	metadata := &ResourceMetadata{}
	annotations := object.GetAnnotations()

	if value, ok := annotations[annotationKeyResourcePolicy]; ok {
		metadata.Policy = value
		switch metadata.Policy {
		case ResourcePolicyKeep:
		default:
			return nil, errors.Errorf("invalid resource policy: %s", metadata.Policy)
		}
	}

	return metadata, nil
}
