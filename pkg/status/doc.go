/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

/*
Package status contains (kstatus-like) logic to compute the status of Kubernetes resources.
*/
package status
