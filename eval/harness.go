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
	"math"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"modernc.org/mathutil"
	"modernc.org/sortutil"

	"github.com/saffron-io/saffron/base"
	"github.com/saffron-io/saffron/base/log"
	"github.com/saffron-io/saffron/common/parallel"
	"github.com/saffron-io/saffron/config"
	"github.com/saffron-io/saffron/dataset"
	"github.com/saffron-io/saffron/logics"
)

// Report is the offline evaluation result. Rating metrics are per-user
// averages over all sampled users; ranking metrics average over the users
// that had both a non-empty relevant set and a non-empty ranking.
type Report struct {
	RMSE           float64 `json:"rmse"`
	MAE            float64 `json:"mae"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	MAP            float64 `json:"map"`
	NDCG           float64 `json:"ndcg"`
	HR             float64 `json:"hr"`
	TopK           int     `json:"k"`
	UsersEvaluated int     `json:"users_evaluated"`
	UsersSampled   int     `json:"users_sampled"`
}

// accumulator holds one worker's partial sums.
type accumulator struct {
	rmseSum      float64
	maeSum       float64
	ratingUsers  int
	precisionSum float64
	recallSum    float64
	mapSum       float64
	ndcgSum      float64
	hrSum        float64
	rankUsers    int
}

func (a *accumulator) add(b *accumulator) {
	a.rmseSum += b.rmseSum
	a.maeSum += b.maeSum
	a.ratingUsers += b.ratingUsers
	a.precisionSum += b.precisionSum
	a.recallSum += b.recallSum
	a.mapSum += b.mapSum
	a.ndcgSum += b.ndcgSum
	a.hrSum += b.hrSum
	a.rankUsers += b.rankUsers
}

// Evaluate measures a fitted recommender against a held-out split. Both
// splits must come from the same SplitByUser call so the codecs align.
func Evaluate(ctx context.Context, recommender *logics.Recommender, train, test *dataset.Dataset,
	cfg config.EvaluateConfig, nJobs int) (*Report, error) {
	// eligible users appear in both splits with at least 2 test interactions
	trainRatings := train.GetUserRatings()
	testRatings := test.GetUserRatings()
	eligible := make([]int32, 0, len(testRatings))
	for userIndex, ratings := range testRatings {
		if len(ratings) >= 2 && len(trainRatings[userIndex]) > 0 {
			eligible = append(eligible, int32(userIndex))
		}
	}
	// sample users without replacement
	rng := base.NewRandomGenerator(cfg.Seed)
	rng.Shuffle(len(eligible), func(i, j int) {
		eligible[i], eligible[j] = eligible[j], eligible[i]
	})
	numSampled := mathutil.Min(cfg.MaxUsers, len(eligible))
	sampled := eligible[:numSampled]
	sort.Sort(sortutil.Int32Slice(sampled))
	log.Logger().Info("evaluate recommender",
		zap.Int("eligible_users", len(eligible)),
		zap.Int("sampled_users", numSampled),
		zap.Int("top_k", cfg.TopK))

	if nJobs < 1 {
		nJobs = 1
	}
	partials := make([]accumulator, nJobs)
	err := parallel.Parallel(ctx, len(sampled), nJobs, func(workerId, jobId int) error {
		partial := &partials[workerId]
		userIndex := sampled[jobId]
		userId, _ := test.GetUserDict().String(userIndex)

		// per-user rating error over the held-out pairs
		var squaredSum, absoluteSum float64
		for _, pair := range testRatings[userIndex] {
			itemId, _ := test.GetItemDict().String(pair.A)
			residual := float64(recommender.CF.Predict(userId, itemId) - pair.B)
			squaredSum += residual * residual
			absoluteSum += math.Abs(residual)
		}
		numPairs := float64(len(testRatings[userIndex]))
		partial.rmseSum += math.Sqrt(squaredSum / numPairs)
		partial.maeSum += absoluteSum / numPairs
		partial.ratingUsers++

		// relevant items are held-out pairs at or above the threshold
		relevant := mapset.NewThreadUnsafeSet[string]()
		for _, pair := range testRatings[userIndex] {
			if pair.B >= float32(cfg.RelevanceThreshold) {
				itemId, _ := test.GetItemDict().String(pair.A)
				relevant.Add(itemId)
			}
		}
		results, err := recommender.Recommend(userId, 2*cfg.TopK)
		if err != nil {
			return errors.Trace(err)
		}
		rankList := make([]string, 0, cfg.TopK)
		for _, result := range results {
			if len(rankList) == cfg.TopK {
				break
			}
			rankList = append(rankList, result.Id)
		}
		if relevant.Cardinality() == 0 || len(rankList) == 0 {
			return nil
		}
		partial.precisionSum += Precision(relevant, rankList, cfg.TopK)
		partial.recallSum += Recall(relevant, rankList, cfg.TopK)
		partial.mapSum += MAP(relevant, rankList, cfg.TopK)
		partial.ndcgSum += NDCG(relevant, rankList, cfg.TopK)
		partial.hrSum += HR(relevant, rankList, cfg.TopK)
		partial.rankUsers++
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}

	var total accumulator
	for i := range partials {
		total.add(&partials[i])
	}
	report := &Report{TopK: cfg.TopK, UsersSampled: numSampled, UsersEvaluated: total.rankUsers}
	if total.ratingUsers > 0 {
		report.RMSE = total.rmseSum / float64(total.ratingUsers)
		report.MAE = total.maeSum / float64(total.ratingUsers)
	}
	if total.rankUsers > 0 {
		report.Precision = total.precisionSum / float64(total.rankUsers)
		report.Recall = total.recallSum / float64(total.rankUsers)
		report.MAP = total.mapSum / float64(total.rankUsers)
		report.NDCG = total.ndcgSum / float64(total.rankUsers)
		report.HR = total.hrSum / float64(total.rankUsers)
	}
	return report, nil
}
