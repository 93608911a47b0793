// Copyright 2025 saffron Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package eval

import (
	"math"

	mapset "github.com/deckarep/golang-set/v2"
	"modernc.org/mathutil"
)

// Precision is the fraction of the recommendation budget filled with relevant
// items. The denominator is k even when the ranked list is shorter.
func Precision(relevant mapset.Set[string], rankList []string, k int) float64 {
	hit := 0
	for _, itemId := range rankList {
		if relevant.Contains(itemId) {
			hit++
		}
	}
	return float64(hit) / float64(k)
}

// Recall is the fraction of relevant items that were recommended.
func Recall(relevant mapset.Set[string], rankList []string, k int) float64 {
	hit := 0
	for _, itemId := range rankList {
		if relevant.Contains(itemId) {
			hit++
		}
	}
	return float64(hit) / float64(relevant.Cardinality())
}

// MAP means Mean Average Precision.
// mAP: http://sdsawtelle.github.io/blog/output/mean-average-precision-MAP-for-recommender-systems.html
func MAP(relevant mapset.Set[string], rankList []string, k int) float64 {
	sumPrecision := 0.0
	hit := 0
	for i, itemId := range rankList {
		if relevant.Contains(itemId) {
			hit++
			sumPrecision += float64(hit) / float64(i+1)
		}
	}
	return sumPrecision / float64(mathutil.Min(relevant.Cardinality(), k))
}

// NDCG means Normalized Discounted Cumulative Gain.
func NDCG(relevant mapset.Set[string], rankList []string, k int) float64 {
	// IDCG = \sum^{|REL|}_{i=1} \frac {1} {\log_2(i+1)}
	idcg := 0.0
	for i := 0; i < mathutil.Min(relevant.Cardinality(), k); i++ {
		idcg += 1.0 / math.Log2(float64(i)+2.0)
	}
	// DCG = \sum^{N}_{i=1} \frac {2^{rel_i}-1} {\log_2(i+1)}
	dcg := 0.0
	for i, itemId := range rankList {
		if relevant.Contains(itemId) {
			dcg += 1.0 / math.Log2(float64(i)+2.0)
		}
	}
	return dcg / idcg
}

// HR means Hit Ratio.
func HR(relevant mapset.Set[string], rankList []string, _ int) float64 {
	for _, itemId := range rankList {
		if relevant.Contains(itemId) {
			return 1
		}
	}
	return 0
}
