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

package cf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saffron-io/saffron/dataset"
	"github.com/saffron-io/saffron/model"
)

func TestSearchParams(t *testing.T) {
	train, test := newTrainSet(t).SplitByUser(2, 0.2, 42)
	best, params, score, err := SearchParams(func() MatrixFactorization {
		return NewSVD(model.Params{
			model.NEpochs:     5,
			model.RandomState: 42,
		})
	}, train, test, 3, NewFitConfig().SetVerbose(100))
	require.NoError(t, err)
	assert.NotNil(t, best)
	assert.NotNil(t, params)
	assert.GreaterOrEqual(t, score.RMSE, float32(0))
	assert.LessOrEqual(t, score.RMSE, dataset.MaxRating-dataset.MinRating)
}
