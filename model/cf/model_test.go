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
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/chewxy/math32"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saffron-io/saffron/dataset"
	"github.com/saffron-io/saffron/model"
)

func newTrainSet(t *testing.T) *dataset.Dataset {
	t.Helper()
	d := dataset.NewDataset(10, 20)
	for i := 0; i < 20; i++ {
		d.AddItem(dataset.Item{ItemId: fmt.Sprintf("item%d", i)})
	}
	for u := 0; u < 10; u++ {
		for i := 0; i < 20; i++ {
			if (u+i)%3 == 0 {
				d.AddInteraction(dataset.Interaction{
					UserId: fmt.Sprintf("user%d", u),
					ItemId: fmt.Sprintf("item%d", i),
					Rating: float32((u+i)%5 + 1),
				})
			}
		}
	}
	return d
}

func newTestParams() model.Params {
	return model.Params{
		model.NFactors:    8,
		model.NEpochs:     10,
		model.RandomState: 42,
	}
}

func TestSVD_PredictInRange(t *testing.T) {
	train, test := newTrainSet(t).SplitByUser(2, 0.2, 42)
	svd := NewSVD(newTestParams())
	svd.Fit(context.Background(), train, test, NewFitConfig().SetVerbose(5))
	for u := 0; u < 10; u++ {
		for i := 0; i < 20; i++ {
			rating := svd.Predict(fmt.Sprintf("user%d", u), fmt.Sprintf("item%d", i))
			assert.GreaterOrEqual(t, rating, dataset.MinRating)
			assert.LessOrEqual(t, rating, dataset.MaxRating)
		}
	}
}

func TestSVD_ColdStartFallsBackToGlobalMean(t *testing.T) {
	train, test := newTrainSet(t).SplitByUser(2, 0.2, 42)
	svd := NewSVD(newTestParams())
	svd.Fit(context.Background(), train, test, NewFitConfig())
	assert.Equal(t, svd.GlobalMean, svd.Predict("stranger", "item0"))
	assert.Equal(t, svd.GlobalMean, svd.Predict("user0", "unknown"))
	assert.Empty(t, svd.Rank("stranger", 10, nil))
}

func TestSVD_Rank(t *testing.T) {
	train, test := newTrainSet(t).SplitByUser(2, 0.2, 42)
	svd := NewSVD(newTestParams())
	svd.Fit(context.Background(), train, test, NewFitConfig())
	exclude := mapset.NewSet[int32]()
	for _, pair := range train.GetUserRatings()[train.GetUserDict().ToId("user0")] {
		exclude.Add(pair.A)
	}
	results := svd.Rank("user0", 5, exclude)
	assert.LessOrEqual(t, len(results), 5)
	for i, result := range results {
		index := svd.GetItemIndex().ToId(result.Id)
		assert.False(t, exclude.Contains(index))
		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].Score, result.Score)
		}
	}
}

func TestSVD_Deterministic(t *testing.T) {
	train, test := newTrainSet(t).SplitByUser(2, 0.2, 42)
	a := NewSVD(newTestParams())
	a.Fit(context.Background(), train, test, NewFitConfig())
	b := NewSVD(newTestParams())
	b.Fit(context.Background(), train, test, NewFitConfig())
	assert.Equal(t, a.UserFactor, b.UserFactor)
	assert.Equal(t, a.ItemFactor, b.ItemFactor)
}

func TestSVD_Marshal(t *testing.T) {
	train, test := newTrainSet(t).SplitByUser(2, 0.2, 42)
	svd := NewSVD(newTestParams())
	svd.Fit(context.Background(), train, test, NewFitConfig())
	buf := bytes.NewBuffer(nil)
	require.NoError(t, svd.Marshal(buf))
	decoded := new(SVD)
	require.NoError(t, decoded.Unmarshal(buf))
	// round-trip must reproduce identical predictions and rankings
	for u := 0; u < 10; u++ {
		userId := fmt.Sprintf("user%d", u)
		for i := 0; i < 20; i++ {
			itemId := fmt.Sprintf("item%d", i)
			assert.Equal(t, svd.Predict(userId, itemId), decoded.Predict(userId, itemId))
		}
		assert.Equal(t, svd.Rank(userId, 10, nil), decoded.Rank(userId, 10, nil))
	}
}

func TestSVD_SmallScenarioRMSE(t *testing.T) {
	// 3 users x 4 items
	d := dataset.NewDataset(3, 4)
	for i := 0; i < 4; i++ {
		d.AddItem(dataset.Item{ItemId: fmt.Sprintf("item%d", i)})
	}
	ratings := [][]float32{{5, 4, 1, 2}, {4, 5, 2, 1}, {1, 2, 5, 4}}
	for u := range ratings {
		for i, r := range ratings[u] {
			d.AddInteraction(dataset.Interaction{
				UserId: fmt.Sprintf("user%d", u),
				ItemId: fmt.Sprintf("item%d", i),
				Rating: r,
			})
		}
	}
	train, test := d.SplitByUser(3, 0.2, 42)
	svd := NewSVD(newTestParams())
	score := svd.Fit(context.Background(), train, test, NewFitConfig())
	assert.False(t, math32.IsNaN(score.RMSE))
	assert.GreaterOrEqual(t, score.RMSE, float32(0))
	assert.LessOrEqual(t, score.RMSE, dataset.MaxRating-dataset.MinRating)
}

func TestSVD_Clear(t *testing.T) {
	train, test := newTrainSet(t).SplitByUser(2, 0.2, 42)
	svd := NewSVD(newTestParams())
	assert.True(t, svd.Invalid())
	svd.Fit(context.Background(), train, test, NewFitConfig())
	assert.False(t, svd.Invalid())
	svd.Clear()
	assert.True(t, svd.Invalid())
}
