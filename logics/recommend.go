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
	"io"
	"reflect"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/saffron-io/saffron/base/encoding"
	"github.com/saffron-io/saffron/base/log"
	"github.com/saffron-io/saffron/config"
	"github.com/saffron-io/saffron/dataset"
	"github.com/saffron-io/saffron/model"
	"github.com/saffron-io/saffron/model/cb"
	"github.com/saffron-io/saffron/model/cf"
)

type ratedItem struct {
	ItemId string
	Rating float32
}

// Recommender fuses collaborative and content scores into one hybrid ranking.
// It is immutable after construction and safe for concurrent use.
type Recommender struct {
	CF cf.MatrixFactorization
	CB *cb.ContentModel

	cfWeight            float32
	cbWeight            float32
	candidateMultiplier int
	likeThreshold       float32
	filterSource        string
	filterProgram       *vm.Program

	rated     map[string][]ratedItem
	items     map[string]dataset.Item
	itemOrder map[string]int32
}

// NewRecommender builds a recommender over fitted models and the training
// interactions. The optional filter is an expression over the item record,
// e.g. "item.Minutes <= 30".
func NewRecommender(cfModel cf.MatrixFactorization, cbModel *cb.ContentModel,
	cfg config.RecommendConfig, train *dataset.Dataset) (*Recommender, error) {
	r := &Recommender{
		CF:                  cfModel,
		CB:                  cbModel,
		cfWeight:            float32(cfg.CFWeight),
		cbWeight:            float32(cfg.CBWeight),
		candidateMultiplier: cfg.CandidateMultiplier,
		likeThreshold:       float32(cfg.LikeThreshold),
		filterSource:        cfg.Filter,
	}
	if err := r.compileFilter(); err != nil {
		return nil, errors.Trace(err)
	}
	r.indexTrainingSet(train)
	return r, nil
}

func (r *Recommender) compileFilter() error {
	if r.filterSource == "" {
		r.filterProgram = nil
		return nil
	}
	program, err := expr.Compile(r.filterSource, expr.Env(map[string]any{
		"item": dataset.Item{},
	}))
	if err != nil {
		return errors.Trace(err)
	}
	if program.Node().Type().Kind() != reflect.Bool {
		return errors.New("filter expression must return bool")
	}
	r.filterProgram = program
	return nil
}

func (r *Recommender) indexTrainingSet(train *dataset.Dataset) {
	r.rated = make(map[string][]ratedItem)
	userRatings := train.GetUserRatings()
	for userIndex, ratings := range userRatings {
		if len(ratings) == 0 {
			continue
		}
		userId, _ := train.GetUserDict().String(int32(userIndex))
		adjacency := make([]ratedItem, 0, len(ratings))
		for _, rating := range ratings {
			itemId, _ := train.GetItemDict().String(rating.A)
			adjacency = append(adjacency, ratedItem{ItemId: itemId, Rating: rating.B})
		}
		r.rated[userId] = adjacency
	}
	items := train.GetItems()
	r.items = make(map[string]dataset.Item, len(items))
	r.itemOrder = make(map[string]int32, len(items))
	for i, item := range items {
		r.items[item.ItemId] = item
		r.itemOrder[item.ItemId] = int32(i)
	}
}

// Recommend returns the top n hybrid recommendations for a user. Rated items
// are excluded. A user unknown to both models yields an empty list; the
// caller decides the fallback.
func (r *Recommender) Recommend(userId string, n int) ([]model.Result, error) {
	if n <= 0 {
		return nil, nil
	}
	rated := r.rated[userId]
	cfExclude := mapset.NewSet[int32]()
	cbExclude := mapset.NewSet[int32]()
	liked := make([]string, 0, len(rated))
	for _, pair := range rated {
		if index := r.CF.GetItemIndex().ToId(pair.ItemId); index != dataset.NotId {
			cfExclude.Add(index)
		}
		if index := r.CB.ItemIndex.ToId(pair.ItemId); index != dataset.NotId {
			cbExclude.Add(index)
		}
		if pair.Rating >= r.likeThreshold {
			liked = append(liked, pair.ItemId)
		}
	}

	numCandidates := n * r.candidateMultiplier
	cfResults := r.CF.Rank(userId, numCandidates, cfExclude)
	cbResults, err := r.CB.RankForProfile(liked, numCandidates, cbExclude)
	if err != nil {
		return nil, errors.Trace(err)
	}

	// union of both candidate lists, a missing term contributes 0
	scores := make(map[string]float32)
	for _, result := range cfResults {
		scores[result.Id] += r.cfWeight * clamp01(result.Score/dataset.MaxRating)
	}
	for _, result := range cbResults {
		score := scores[result.Id]
		if result.Score > 0 {
			score += r.cbWeight * result.Score
		}
		scores[result.Id] = score
	}

	results := make([]model.Result, 0, len(scores))
	for itemId, score := range scores {
		if !r.keep(itemId) {
			continue
		}
		results = append(results, model.Result{Id: itemId, Score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return r.itemOrder[results[i].Id] < r.itemOrder[results[j].Id]
	})
	if len(results) > n {
		results = results[:n]
	}
	return results, nil
}

// keep evaluates the filter expression against the item record. Items without
// a record pass through, a failed evaluation drops the candidate.
func (r *Recommender) keep(itemId string) bool {
	if r.filterProgram == nil {
		return true
	}
	item, exists := r.items[itemId]
	if !exists {
		return true
	}
	result, err := expr.Run(r.filterProgram, map[string]any{"item": item})
	if err != nil {
		log.Logger().Error("evaluate filter expression", zap.Error(err))
		return false
	}
	return result.(bool)
}

func clamp01(x float32) float32 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

type recommenderData struct {
	CFWeight            float32
	CBWeight            float32
	CandidateMultiplier int
	LikeThreshold       float32
	Filter              string
	Rated               map[string][]ratedItem
	Items               map[string]dataset.Item
	ItemOrder           map[string]int32
}

// Marshal serializes the recommender, models included.
func (r *Recommender) Marshal(w io.Writer) error {
	data := recommenderData{
		CFWeight:            r.cfWeight,
		CBWeight:            r.cbWeight,
		CandidateMultiplier: r.candidateMultiplier,
		LikeThreshold:       r.likeThreshold,
		Filter:              r.filterSource,
		Rated:               r.rated,
		Items:               r.items,
		ItemOrder:           r.itemOrder,
	}
	if err := encoding.WriteGob(w, data); err != nil {
		return errors.Trace(err)
	}
	if err := r.CF.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(r.CB.Marshal(w))
}

// Unmarshal restores a recommender written by Marshal.
func (r *Recommender) Unmarshal(reader io.Reader) error {
	var data recommenderData
	if err := encoding.ReadGob(reader, &data); err != nil {
		return errors.Trace(err)
	}
	r.cfWeight = data.CFWeight
	r.cbWeight = data.CBWeight
	r.candidateMultiplier = data.CandidateMultiplier
	r.likeThreshold = data.LikeThreshold
	r.filterSource = data.Filter
	r.rated = data.Rated
	r.items = data.Items
	r.itemOrder = data.ItemOrder
	if err := r.compileFilter(); err != nil {
		return errors.Trace(err)
	}
	r.CF = cf.NewSVD(nil)
	if err := r.CF.Unmarshal(reader); err != nil {
		return errors.Trace(err)
	}
	r.CB = &cb.ContentModel{}
	return errors.Trace(r.CB.Unmarshal(reader))
}
