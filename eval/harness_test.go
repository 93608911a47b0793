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
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saffron-io/saffron/config"
	"github.com/saffron-io/saffron/dataset"
	"github.com/saffron-io/saffron/logics"
	"github.com/saffron-io/saffron/model"
	"github.com/saffron-io/saffron/model/cb"
	"github.com/saffron-io/saffron/model/cf"
)

func newEvalData(t *testing.T) *dataset.Dataset {
	t.Helper()
	data := dataset.NewDataset(20, 12)
	for i := 0; i < 12; i++ {
		data.AddItem(dataset.Item{
			ItemId:       fmt.Sprintf("item%d", i),
			Ingredients:  []string{fmt.Sprintf("base%d", i%4), "salt"},
			Tags:         []string{fmt.Sprintf("cuisine%d", i%3)},
			NIngredients: 2,
			NSteps:       float32(i%5 + 1),
			Minutes:      float32(10 + i),
			HealthScore:  float32(40 + i),
			Calories:     float32(100 + 20*i),
			Protein:      float32(3 + i%7),
		})
	}
	timestamp := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for u := 0; u < 20; u++ {
		for i := 0; i < 12; i++ {
			if (u*7+i*3)%4 != 0 {
				data.AddInteraction(dataset.Interaction{
					UserId:    fmt.Sprintf("user%d", u),
					ItemId:    fmt.Sprintf("item%d", i),
					Rating:    float32(1 + (u+2*i)%5),
					Timestamp: timestamp,
				})
			}
		}
	}
	return data
}

func TestEvaluate(t *testing.T) {
	data := newEvalData(t)
	train, test := data.SplitByUser(5, 0.2, 42)

	cfModel := cf.NewSVD(model.Params{
		model.NFactors:    4,
		model.NEpochs:     10,
		model.RandomState: int64(42),
	})
	cfModel.Fit(context.Background(), train, test, cf.NewFitConfig().SetVerbose(0x7fffffff))
	cbModel := cb.NewContentModel(100, 50)
	cbModel.Fit(train.GetItems())
	recommender, err := logics.NewRecommender(cfModel, cbModel, config.RecommendConfig{
		CFWeight:            0.6,
		CBWeight:            0.4,
		CandidateMultiplier: 3,
		LikeThreshold:       4.0,
	}, train)
	require.NoError(t, err)

	cfg := config.EvaluateConfig{
		MinInteractions:    5,
		TestRatio:          0.2,
		MaxUsers:           500,
		TopK:               5,
		RelevanceThreshold: 4.0,
		Seed:               42,
	}
	report, err := Evaluate(context.Background(), recommender, train, test, cfg, 4)
	require.NoError(t, err)

	assert.Positive(t, report.UsersSampled)
	assert.LessOrEqual(t, report.UsersEvaluated, report.UsersSampled)
	assert.Positive(t, report.RMSE)
	assert.GreaterOrEqual(t, report.RMSE, report.MAE)
	assert.GreaterOrEqual(t, report.Precision, 0.0)
	assert.LessOrEqual(t, report.Precision, 1.0)
	assert.GreaterOrEqual(t, report.Recall, 0.0)
	assert.LessOrEqual(t, report.Recall, 1.0)
	assert.GreaterOrEqual(t, report.MAP, 0.0)
	assert.LessOrEqual(t, report.MAP, 1.0)
	assert.Equal(t, 5, report.TopK)
}

func TestEvaluate_Deterministic(t *testing.T) {
	data := newEvalData(t)
	train, test := data.SplitByUser(5, 0.2, 42)
	cfModel := cf.NewSVD(model.Params{
		model.NFactors:    4,
		model.NEpochs:     5,
		model.RandomState: int64(42),
	})
	cfModel.Fit(context.Background(), train, test, cf.NewFitConfig().SetVerbose(0x7fffffff))
	cbModel := cb.NewContentModel(100, 50)
	cbModel.Fit(train.GetItems())
	recommender, err := logics.NewRecommender(cfModel, cbModel, config.RecommendConfig{
		CFWeight:            0.6,
		CBWeight:            0.4,
		CandidateMultiplier: 3,
		LikeThreshold:       4.0,
	}, train)
	require.NoError(t, err)

	cfg := config.EvaluateConfig{MaxUsers: 500, TopK: 5, RelevanceThreshold: 4.0, Seed: 42}
	first, err := Evaluate(context.Background(), recommender, train, test, cfg, 4)
	require.NoError(t, err)
	second, err := Evaluate(context.Background(), recommender, train, test, cfg, 1)
	require.NoError(t, err)
	// results are independent of worker count, up to summation order
	assert.Equal(t, first.UsersSampled, second.UsersSampled)
	assert.Equal(t, first.UsersEvaluated, second.UsersEvaluated)
	assert.InDelta(t, first.RMSE, second.RMSE, 1e-9)
	assert.InDelta(t, first.MAE, second.MAE, 1e-9)
	assert.InDelta(t, first.Precision, second.Precision, 1e-9)
	assert.InDelta(t, first.Recall, second.Recall, 1e-9)
	assert.InDelta(t, first.MAP, second.MAP, 1e-9)
	assert.InDelta(t, first.NDCG, second.NDCG, 1e-9)
	assert.InDelta(t, first.HR, second.HR, 1e-9)
}

func TestEvaluate_SampleCap(t *testing.T) {
	data := newEvalData(t)
	train, test := data.SplitByUser(5, 0.2, 42)
	cfModel := cf.NewSVD(model.Params{
		model.NFactors:    2,
		model.NEpochs:     2,
		model.RandomState: int64(42),
	})
	cfModel.Fit(context.Background(), train, test, cf.NewFitConfig().SetVerbose(0x7fffffff))
	cbModel := cb.NewContentModel(100, 50)
	cbModel.Fit(train.GetItems())
	recommender, err := logics.NewRecommender(cfModel, cbModel, config.RecommendConfig{
		CFWeight:            0.6,
		CBWeight:            0.4,
		CandidateMultiplier: 3,
		LikeThreshold:       4.0,
	}, train)
	require.NoError(t, err)

	cfg := config.EvaluateConfig{MaxUsers: 3, TopK: 5, RelevanceThreshold: 4.0, Seed: 42}
	report, err := Evaluate(context.Background(), recommender, train, test, cfg, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, report.UsersSampled)
}
