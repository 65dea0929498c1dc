/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package manifests

import (
	"context"
	"fmt"
)

type revisionContextKey struct{}

// Return a new context with the given network revision added as value.
// Generators use the revision to distinguish the initial deployment (revision one)
// from later updates of a network.
func NewContextWithRevision(ctx context.Context, revision int64) context.Context {
	return context.WithValue(ctx, revisionContextKey{}, revision)
}

// Retrieve the network revision from the given context.
func RevisionFromContext(ctx context.Context) (int64, error) {
	if revision, ok := ctx.Value(revisionContextKey{}).(int64); ok {
		return revision, nil
	}
	return 0, fmt.Errorf("revision not found in context")
}
