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
	"gonum.org/v1/gonum/stat"
)

// epsilon guards against zero standard deviation of constant columns.
const epsilon = 1e-8

// StandardScaler z-score-normalizes numeric columns using the population
// mean and standard deviation of the fitted item table.
type StandardScaler struct {
	Mean []float64
	Std  []float64
}

// Fit computes column-wise mean and standard deviation.
func (s *StandardScaler) Fit(rows [][]float32) {
	if len(rows) == 0 {
		s.Mean = nil
		s.Std = nil
		return
	}
	cols := len(rows[0])
	s.Mean = make([]float64, cols)
	s.Std = make([]float64, cols)
	column := make([]float64, len(rows))
	for j := 0; j < cols; j++ {
		for i, row := range rows {
			column[i] = float64(row[j])
		}
		s.Mean[j] = stat.Mean(column, nil)
		s.Std[j] = stat.PopStdDev(column, nil)
	}
}

// Transform normalizes one row in place order: (x - mean) / (std + epsilon).
func (s *StandardScaler) Transform(row []float32) []float32 {
	out := make([]float32, len(row))
	for j := range row {
		out[j] = float32((float64(row[j]) - s.Mean[j]) / (s.Std[j] + epsilon))
	}
	return out
}
