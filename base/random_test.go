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

package base

import (
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
)

func TestRandomGenerator_Deterministic(t *testing.T) {
	a := NewRandomGenerator(42).NormalVector(100, 0, 0.1)
	b := NewRandomGenerator(42).NormalVector(100, 0, 0.1)
	assert.Equal(t, a, b)
}

func TestRandomGenerator_NormalMatrix(t *testing.T) {
	rng := NewRandomGenerator(0)
	m := rng.NormalMatrix(10, 5, 0, 1)
	assert.Len(t, m, 10)
	for _, row := range m {
		assert.Len(t, row, 5)
	}
}

func TestRandomGenerator_SampleInt32(t *testing.T) {
	rng := NewRandomGenerator(0)
	exclude := mapset.NewSet[int32](0, 1, 2)
	sampled := rng.SampleInt32(0, 100, 10, exclude)
	assert.Len(t, sampled, 10)
	seen := mapset.NewSet[int32]()
	for _, v := range sampled {
		assert.GreaterOrEqual(t, v, int32(3))
		assert.Less(t, v, int32(100))
		assert.False(t, seen.Contains(v))
		seen.Add(v)
	}
	// sampling more than available returns the whole interval
	all := rng.SampleInt32(0, 5, 10)
	assert.Len(t, all, 5)
}
