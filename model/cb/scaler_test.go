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

package cb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStandardScaler(t *testing.T) {
	s := &StandardScaler{}
	s.Fit([][]float32{
		{1, 10},
		{2, 10},
		{3, 10},
	})
	assert.InDelta(t, 2.0, s.Mean[0], 1e-6)
	// population standard deviation, not sample
	assert.InDelta(t, 0.816496580927726, s.Std[0], 1e-6)

	row := s.Transform([]float32{3, 10})
	assert.InDelta(t, 1.224744871, row[0], 1e-4)
	// constant columns scale to zero instead of dividing by zero
	assert.InDelta(t, 0.0, row[1], 1e-6)
}

func TestStandardScaler_Empty(t *testing.T) {
	s := &StandardScaler{}
	s.Fit(nil)
	assert.Empty(t, s.Mean)
	assert.Empty(t, s.Std)
}
