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

package dataset

import (
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/saffron-io/saffron/base"
	"github.com/saffron-io/saffron/base/log"
)

const (
	// MinRating and MaxRating bound valid ratings. Interactions outside the
	// range are dropped before matrix construction.
	MinRating = float32(1)
	MaxRating = float32(5)
)

// Item is a recipe row from the item table. Token fields default to empty
// lists and numeric fields default to zero when the source row is malformed.
type Item struct {
	ItemId       string
	Ingredients  []string
	Tags         []string
	NIngredients float32
	NSteps       float32
	Minutes      float32
	HealthScore  float32
	Calories     float32
	Protein      float32
}

// Numeric returns the numeric attribute columns in schema order.
func (item *Item) Numeric() []float32 {
	return []float32{item.NIngredients, item.NSteps, item.Minutes, item.HealthScore, item.Calories, item.Protein}
}

// NumericColumns names the numeric attribute columns in schema order.
func NumericColumns() []string {
	return []string{"n_ingredients", "n_steps", "minutes", "health_score", "calories", "protein"}
}

// Interaction is one (user, item, rating, timestamp) event.
type Interaction struct {
	UserId    string
	ItemId    string
	Rating    float32
	Timestamp time.Time
}

// Dataset is the sparse user-item rating matrix plus the item table. Built
// once per training run and never mutated afterwards.
type Dataset struct {
	items        []Item
	userDict     *FreqDict
	itemDict     *FreqDict
	userRatings  [][]lo.Tuple2[int32, float32]
	itemRatings  [][]lo.Tuple2[int32, float32]
	numFeedback  int
	numDropped   int
	numOverwrite int
}

func NewDataset(userCount, itemCount int) *Dataset {
	return &Dataset{
		items:       make([]Item, 0, itemCount),
		userDict:    NewFreqDict(),
		itemDict:    NewFreqDict(),
		userRatings: make([][]lo.Tuple2[int32, float32], 0, userCount),
		itemRatings: make([][]lo.Tuple2[int32, float32], 0, itemCount),
	}
}

func (d *Dataset) CountUsers() int {
	return int(d.userDict.Count())
}

func (d *Dataset) CountItems() int {
	return int(d.itemDict.Count())
}

func (d *Dataset) CountFeedback() int {
	return d.numFeedback
}

// CountDropped returns the number of interactions rejected for out-of-range ratings.
func (d *Dataset) CountDropped() int {
	return d.numDropped
}

func (d *Dataset) GetUserDict() *FreqDict {
	return d.userDict
}

func (d *Dataset) GetItemDict() *FreqDict {
	return d.itemDict
}

// GetUserRatings returns per-user (item index, rating) adjacency.
func (d *Dataset) GetUserRatings() [][]lo.Tuple2[int32, float32] {
	return d.userRatings
}

// GetItemRatings returns per-item (user index, rating) adjacency.
func (d *Dataset) GetItemRatings() [][]lo.Tuple2[int32, float32] {
	return d.itemRatings
}

// GetItems returns the item table used to build the dataset.
func (d *Dataset) GetItems() []Item {
	return d.items
}

// AddItem registers an item row. Items referenced only by interactions still
// receive matrix columns through AddInteraction, but are excluded from
// content-based scoring.
func (d *Dataset) AddItem(item Item) {
	if item.Ingredients == nil {
		item.Ingredients = []string{}
	}
	if item.Tags == nil {
		item.Tags = []string{}
	}
	d.items = append(d.items, item)
	itemIndex := d.itemDict.NotCount(item.ItemId)
	for int32(len(d.itemRatings)) <= itemIndex {
		d.itemRatings = append(d.itemRatings, nil)
	}
}

// AddInteraction inserts one rating event. Ratings outside [MinRating,
// MaxRating] are dropped. A duplicate (user, item) pair overwrites the
// previous rating, so the most recently supplied value wins.
func (d *Dataset) AddInteraction(v Interaction) {
	if v.Rating < MinRating || v.Rating > MaxRating {
		d.numDropped++
		return
	}
	userIndex := d.userDict.Id(v.UserId)
	itemIndex := d.itemDict.Id(v.ItemId)
	for int32(len(d.userRatings)) <= userIndex {
		d.userRatings = append(d.userRatings, nil)
	}
	for int32(len(d.itemRatings)) <= itemIndex {
		d.itemRatings = append(d.itemRatings, nil)
	}
	for i, pair := range d.userRatings[userIndex] {
		if pair.A == itemIndex {
			d.userRatings[userIndex][i].B = v.Rating
			for j, p := range d.itemRatings[itemIndex] {
				if p.A == userIndex {
					d.itemRatings[itemIndex][j].B = v.Rating
				}
			}
			d.numOverwrite++
			return
		}
	}
	d.userRatings[userIndex] = append(d.userRatings[userIndex], lo.Tuple2[int32, float32]{A: itemIndex, B: v.Rating})
	d.itemRatings[itemIndex] = append(d.itemRatings[itemIndex], lo.Tuple2[int32, float32]{A: userIndex, B: v.Rating})
	d.numFeedback++
}

// GlobalMean returns the mean of all present ratings, the bias term for
// rating prediction. Returns 0 for an empty matrix.
func (d *Dataset) GlobalMean() float32 {
	if d.numFeedback == 0 {
		return 0
	}
	sum := float64(0)
	for _, ratings := range d.userRatings {
		for _, pair := range ratings {
			sum += float64(pair.B)
		}
	}
	return float32(sum / float64(d.numFeedback))
}

// align pads adjacency lists so matrix dimensions match codec sizes even for
// users or items without interactions.
func (d *Dataset) align() {
	for int32(len(d.userRatings)) < d.userDict.Count() {
		d.userRatings = append(d.userRatings, nil)
	}
	for int32(len(d.itemRatings)) < d.itemDict.Count() {
		d.itemRatings = append(d.itemRatings, nil)
	}
}

func (d *Dataset) addPair(userIndex, itemIndex int32, rating float32) {
	d.userRatings[userIndex] = append(d.userRatings[userIndex], lo.Tuple2[int32, float32]{A: itemIndex, B: rating})
	d.itemRatings[itemIndex] = append(d.itemRatings[itemIndex], lo.Tuple2[int32, float32]{A: userIndex, B: rating})
	d.numFeedback++
}

// SplitByUser shuffles each user's interactions with a seeded generator and
// cuts them into train and test partitions. Users with fewer than
// minInteractions contribute all of their interactions to the train split.
// Both splits share the codecs and the item table, so indices stay aligned.
func (d *Dataset) SplitByUser(minInteractions int, testRatio float64, seed int64) (train, test *Dataset) {
	d.align()
	train = &Dataset{items: d.items, userDict: d.userDict, itemDict: d.itemDict}
	test = &Dataset{items: d.items, userDict: d.userDict, itemDict: d.itemDict}
	train.userRatings = make([][]lo.Tuple2[int32, float32], len(d.userRatings))
	train.itemRatings = make([][]lo.Tuple2[int32, float32], len(d.itemRatings))
	test.userRatings = make([][]lo.Tuple2[int32, float32], len(d.userRatings))
	test.itemRatings = make([][]lo.Tuple2[int32, float32], len(d.itemRatings))
	rng := base.NewRandomGenerator(seed)
	for userIndex := range d.userRatings {
		ratings := make([]lo.Tuple2[int32, float32], len(d.userRatings[userIndex]))
		copy(ratings, d.userRatings[userIndex])
		if len(ratings) < minInteractions {
			for _, pair := range ratings {
				train.addPair(int32(userIndex), pair.A, pair.B)
			}
			continue
		}
		rng.Shuffle(len(ratings), func(i, j int) {
			ratings[i], ratings[j] = ratings[j], ratings[i]
		})
		cut := int(float64(len(ratings)) * (1 - testRatio))
		for _, pair := range ratings[:cut] {
			train.addPair(int32(userIndex), pair.A, pair.B)
		}
		for _, pair := range ratings[cut:] {
			test.addPair(int32(userIndex), pair.A, pair.B)
		}
	}
	log.Logger().Info("split dataset by user",
		zap.Int("min_interactions", minInteractions),
		zap.Float64("test_ratio", testRatio),
		zap.Int("train_size", train.numFeedback),
		zap.Int("test_size", test.numFeedback))
	return
}
