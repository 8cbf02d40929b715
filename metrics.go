// Copyright 2025 The Floret Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package floret

import "github.com/prometheus/client_golang/prometheus"

var (
	annotateRequestOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "floret",
			Subsystem: "adapter",
			Name:      "annotate_request_ops_total",
			Help:      "The total number of annotation requests.",
		},
		[]string{"operation", "task"},
	)
	labelCreationOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "floret",
			Subsystem: "adapter",
			Name:      "label_creation_ops_total",
			Help:      "The total number of labels produced.",
		},
		[]string{"operation"},
	)

	cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "floret",
			Subsystem: "adapter",
			Name:      "cache_hits_total",
			Help:      "Total number of annotation cache hits.",
		},
		[]string{"type"},
	)
	cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "floret",
			Subsystem: "adapter",
			Name:      "cache_misses_total",
			Help:      "Total number of annotation cache misses.",
		},
		[]string{"type"},
	)

	modelLoadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "floret",
			Subsystem: "adapter",
			Name:      "model_load_duration_seconds",
			Help:      "Time taken to load a model.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"model"},
	)
)

func init() {
	prometheus.MustRegister(annotateRequestOps)
	prometheus.MustRegister(labelCreationOps)
	prometheus.MustRegister(cacheHits)
	prometheus.MustRegister(cacheMisses)
	prometheus.MustRegister(modelLoadDuration)
}

func recordAnnotateRequest(operation, task string) {
	annotateRequestOps.WithLabelValues(operation, task).Inc()
}

func recordLabelCreation(operation string, count int) {
	labelCreationOps.WithLabelValues(operation).Add(float64(count))
}

func recordCacheHit(cacheType string) {
	cacheHits.WithLabelValues(cacheType).Inc()
}

func recordCacheMiss(cacheType string) {
	cacheMisses.WithLabelValues(cacheType).Inc()
}

func recordModelLoadDuration(model string, seconds float64) {
	modelLoadDuration.WithLabelValues(model).Observe(seconds)
}
