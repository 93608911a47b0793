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
	"github.com/chewxy/math32"

	"github.com/saffron-io/saffron/dataset"
)

// EvaluateRegression computes RMSE and MAE of a matrix factorization model
// pooled over all ratings of a test split. Cold-start pairs contribute the
// global-mean fallback, mirroring what serving would return for them.
func EvaluateRegression(estimator MatrixFactorization, testSet *dataset.Dataset) Score {
	var sumSquares, sumAbs float32
	var count int
	userDict := testSet.GetUserDict()
	itemDict := testSet.GetItemDict()
	for userIndex, ratings := range testSet.GetUserRatings() {
		userId, _ := userDict.String(int32(userIndex))
		for _, pair := range ratings {
			itemId, _ := itemDict.String(pair.A)
			diff := estimator.Predict(userId, itemId) - pair.B
			sumSquares += diff * diff
			sumAbs += math32.Abs(diff)
			count++
		}
	}
	if count == 0 {
		return Score{}
	}
	return Score{
		RMSE: math32.Sqrt(sumSquares / float32(count)),
		MAE:  sumAbs / float32(count),
	}
}
