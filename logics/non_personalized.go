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

	"github.com/juju/errors"

	"github.com/saffron-io/saffron/base/encoding"
	"github.com/saffron-io/saffron/base/heap"
	"github.com/saffron-io/saffron/dataset"
	"github.com/saffron-io/saffron/model"
)

// NonPersonalized is the popularity leaderboard: items ordered by rating
// count, mean rating as tie signal. It serves cold-start users without
// touching the personalized path.
type NonPersonalized struct {
	results []model.Result
}

// NewPopular builds a leaderboard of the n most rated items in the training
// set.
func NewPopular(train *dataset.Dataset, n int) *NonPersonalized {
	filter := heap.NewTopKFilter[string, float64](n)
	itemRatings := train.GetItemRatings()
	for itemIndex, ratings := range itemRatings {
		if len(ratings) == 0 {
			continue
		}
		var sum float32
		for _, rating := range ratings {
			sum += rating.B
		}
		mean := sum / float32(len(ratings))
		itemId, _ := train.GetItemDict().String(int32(itemIndex))
		// count dominates, the mean rating only breaks count ties
		filter.Push(itemId, float64(len(ratings))+float64(mean)/(float64(dataset.MaxRating)+1))
	}
	values, weights := filter.PopAll()
	results := make([]model.Result, len(values))
	for i := range values {
		results[i] = model.Result{Id: values[i], Score: float32(weights[i])}
	}
	return &NonPersonalized{results: results}
}

// Popular returns the first n leaderboard entries.
func (l *NonPersonalized) Popular(n int) []model.Result {
	if n <= 0 || n > len(l.results) {
		n = len(l.results)
	}
	return l.results[:n]
}

func (l *NonPersonalized) Marshal(w io.Writer) error {
	return errors.Trace(encoding.WriteGob(w, l.results))
}

func (l *NonPersonalized) Unmarshal(r io.Reader) error {
	return errors.Trace(encoding.ReadGob(r, &l.results))
}
