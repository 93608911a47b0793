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

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParams(t *testing.T) {
	p := Params{
		NFactors: 50,
		Lr:       0.005,
	}
	assert.Equal(t, 50, p.GetInt(NFactors, 10))
	assert.Equal(t, 20, p.GetInt(NEpochs, 20))
	assert.Equal(t, float32(0.005), p.GetFloat32(Lr, 0.1))
	assert.Equal(t, int64(42), p.GetInt64(RandomState, 42))
}

func TestParams_Overwrite(t *testing.T) {
	a := Params{NFactors: 10, Lr: 0.1}
	b := Params{Lr: 0.2, Reg: 0.01}
	merged := a.Overwrite(b)
	assert.Equal(t, 10, merged.GetInt(NFactors, 0))
	assert.Equal(t, float32(0.2), merged.GetFloat32(Lr, 0))
	assert.Equal(t, float32(0.01), merged.GetFloat32(Reg, 0))
	// receiver untouched
	assert.Equal(t, float32(0.1), a.GetFloat32(Lr, 0))
}

func TestParams_Copy(t *testing.T) {
	a := Params{NFactors: 10}
	b := a.Copy()
	b[NFactors] = 20
	assert.Equal(t, 10, a.GetInt(NFactors, 0))
}

func TestBaseModel_Deterministic(t *testing.T) {
	var a, b BaseModel
	a.SetParams(Params{RandomState: 42})
	b.SetParams(Params{RandomState: 42})
	assert.Equal(t, a.GetRandomGenerator().NormalVector(10, 0, 1), b.GetRandomGenerator().NormalVector(10, 0, 1))
}
