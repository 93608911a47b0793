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

package logics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saffron-io/saffron/config"
	"github.com/saffron-io/saffron/dataset"
	"github.com/saffron-io/saffron/model"
	"github.com/saffron-io/saffron/model/cb"
	"github.com/saffron-io/saffron/model/cf"
)

func newTrainSet(t *testing.T) *dataset.Dataset {
	t.Helper()
	train := dataset.NewDataset(8, 6)
	tags := [][]string{
		{"italian", "pasta"},
		{"italian", "pasta"},
		{"vegan", "breakfast"},
		{"vegan", "breakfast"},
		{"dessert"},
		{"dessert"},
	}
	ingredients := [][]string{
		{"spaghetti", "egg", "pecorino"},
		{"spaghetti", "pecorino", "pepper"},
		{"spinach", "banana"},
		{"strawberry", "banana"},
		{"chocolate", "butter", "sugar"},
		{"vanilla", "butter", "sugar"},
	}
	for i := 0; i < 6; i++ {
		train.AddItem(dataset.Item{
			ItemId:       fmt.Sprintf("item%d", i),
			Ingredients:  ingredients[i],
			Tags:         tags[i],
			NIngredients: float32(len(ingredients[i])),
			NSteps:       float32(2 + i),
			Minutes:      float32(10 * (i + 1)),
			HealthScore:  float32(50 + i),
			Calories:     float32(200 + 50*i),
			Protein:      float32(5 + i),
		})
	}
	timestamp := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for u := 0; u < 8; u++ {
		for i := 0; i < 6; i++ {
			if (u+i)%2 == 0 {
				rating := float32(2 + (u+i)%4)
				train.AddInteraction(dataset.Interaction{
					UserId:    fmt.Sprintf("user%d", u),
					ItemId:    fmt.Sprintf("item%d", i),
					Rating:    rating,
					Timestamp: timestamp,
				})
			}
		}
	}
	return train
}

func newRecommender(t *testing.T, cfg config.RecommendConfig) (*Recommender, *dataset.Dataset) {
	t.Helper()
	train := newTrainSet(t)
	cfModel := cf.NewSVD(model.Params{
		model.NFactors:    4,
		model.NEpochs:     5,
		model.RandomState: int64(42),
	})
	cfModel.Fit(context.Background(), train, train, cf.NewFitConfig().SetVerbose(0x7fffffff))
	cbModel := cb.NewContentModel(100, 50)
	cbModel.Fit(train.GetItems())
	recommender, err := NewRecommender(cfModel, cbModel, cfg, train)
	require.NoError(t, err)
	return recommender, train
}

func defaultRecommendConfig() config.RecommendConfig {
	return config.RecommendConfig{
		CFWeight:            0.6,
		CBWeight:            0.4,
		CandidateMultiplier: 3,
		LikeThreshold:       4.0,
	}
}

func TestRecommender_ExcludesRated(t *testing.T) {
	recommender, _ := newRecommender(t, defaultRecommendConfig())
	results, err := recommender.Recommend("user0", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	// user0 rated the even items
	for _, result := range results {
		assert.NotContains(t, []string{"item0", "item2", "item4"}, result.Id)
	}
	// scores are fused into [0, 1] and sorted in descending order
	for i, result := range results {
		assert.GreaterOrEqual(t, result.Score, float32(0))
		assert.LessOrEqual(t, result.Score, float32(1))
		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].Score, result.Score)
		}
	}
}

func TestRecommender_UnknownUser(t *testing.T) {
	recommender, _ := newRecommender(t, defaultRecommendConfig())
	results, err := recommender.Recommend("stranger", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRecommender_WholeCatalogRated(t *testing.T) {
	train := newTrainSet(t)
	timestamp := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		train.AddInteraction(dataset.Interaction{
			UserId:    "glutton",
			ItemId:    fmt.Sprintf("item%d", i),
			Rating:    5,
			Timestamp: timestamp,
		})
	}
	cfModel := cf.NewSVD(model.Params{
		model.NFactors:    4,
		model.NEpochs:     5,
		model.RandomState: int64(42),
	})
	cfModel.Fit(context.Background(), train, train, cf.NewFitConfig().SetVerbose(0x7fffffff))
	cbModel := cb.NewContentModel(100, 50)
	cbModel.Fit(train.GetItems())
	recommender, err := NewRecommender(cfModel, cbModel, defaultRecommendConfig(), train)
	require.NoError(t, err)

	results, err := recommender.Recommend("glutton", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRecommender_Filter(t *testing.T) {
	cfg := defaultRecommendConfig()
	cfg.Filter = "item.Minutes <= 30"
	recommender, _ := newRecommender(t, cfg)
	results, err := recommender.Recommend("user0", 6)
	require.NoError(t, err)
	for _, result := range results {
		assert.LessOrEqual(t, recommender.items[result.Id].Minutes, float32(30))
	}
}

func TestRecommender_InvalidFilter(t *testing.T) {
	train := newTrainSet(t)
	cfModel := cf.NewSVD(nil)
	cbModel := cb.NewContentModel(100, 50)
	cfg := defaultRecommendConfig()
	cfg.Filter = "item.Minutes"
	_, err := NewRecommender(cfModel, cbModel, cfg, train)
	assert.Error(t, err)
}

func TestNonPersonalized(t *testing.T) {
	train := newTrainSet(t)
	popular := NewPopular(train, 3)
	results := popular.Popular(3)
	require.Len(t, results, 3)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
	// asking for more than available returns the whole board
	assert.Len(t, popular.Popular(100), 3)
}
