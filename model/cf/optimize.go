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
	"context"

	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/saffron-io/saffron/base/log"
	"github.com/saffron-io/saffron/dataset"
	"github.com/saffron-io/saffron/model"
)

// ModelCreator creates a fresh estimator for one search trial.
type ModelCreator func() MatrixFactorization

// ModelSearch is a hyper-parameter search over matrix factorization models,
// minimizing held-out RMSE.
type ModelSearch struct {
	creator    ModelCreator
	trainSet   *dataset.Dataset
	testSet    *dataset.Dataset
	config     *FitConfig
	bestModel  MatrixFactorization
	bestParams model.Params
	bestScore  Score
}

func NewModelSearch(creator ModelCreator, trainSet, testSet *dataset.Dataset, config *FitConfig) *ModelSearch {
	return &ModelSearch{
		creator:  creator,
		trainSet: trainSet,
		testSet:  testSet,
		config:   config,
		bestScore: Score{
			RMSE: dataset.MaxRating - dataset.MinRating,
		},
	}
}

func (ms *ModelSearch) Objective(trial goptuna.Trial) (float64, error) {
	m := ms.creator()
	m.SetParams(m.GetParams().Overwrite(m.SuggestParams(trial)))
	score := m.Fit(context.Background(), ms.trainSet, ms.testSet, ms.config)
	if ms.bestModel == nil || score.RMSE < ms.bestScore.RMSE {
		ms.bestModel = m
		ms.bestParams = m.GetParams().Copy()
		ms.bestScore = score
	}
	return float64(score.RMSE), nil
}

// Result returns the best model found so far with its parameters and score.
func (ms *ModelSearch) Result() (MatrixFactorization, model.Params, Score) {
	return ms.bestModel, ms.bestParams, ms.bestScore
}

// SearchParams runs a TPE study of numTrials trials and returns the best
// model found.
func SearchParams(creator ModelCreator, trainSet, testSet *dataset.Dataset, numTrials int, config *FitConfig) (MatrixFactorization, model.Params, Score, error) {
	search := NewModelSearch(creator, trainSet, testSet, config)
	study, err := goptuna.CreateStudy("svd",
		goptuna.StudyOptionDirection(goptuna.StudyDirectionMinimize),
		goptuna.StudyOptionSampler(tpe.NewSampler()))
	if err != nil {
		return nil, nil, Score{}, errors.Trace(err)
	}
	if err = study.Optimize(search.Objective, numTrials); err != nil {
		return nil, nil, Score{}, errors.Trace(err)
	}
	best, params, score := search.Result()
	log.Logger().Info("hyper-parameter search complete",
		zap.Int("trials", numTrials),
		zap.Float32("best_rmse", score.RMSE),
		zap.Any("best_params", params))
	return best, params, score, nil
}
