/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const prefix = "bdm"

var (
	Operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_api_operations_total",
			Help: "Kubernetes API server operations per network release and method",
		},
		[]string{"release", "method"},
	)
)

func init() {
	prometheus.MustRegister(Operations)
}

// OperationCounter returns the counter for one release and method pair;
// methods are read, create, update, delete.
func OperationCounter(release string, method string) prometheus.Counter {
	return Operations.WithLabelValues(release, method)
}
