/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

/*
Package manifests contains types and functionality around generating (rendering) the descriptors of the resources
making up a devnet deployment. Most prominently, this is the Generator interface itself, and some tooling to
enhance or transform existing generators.
*/
package manifests
