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

package cb

import (
	"io"
	"sort"

	"github.com/chewxy/math32"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/samber/lo"

	"github.com/saffron-io/saffron/base/encoding"
	"github.com/saffron-io/saffron/dataset"
	"github.com/saffron-io/saffron/model"
)

const (
	defaultMaxIngredientFeatures = 1000
	defaultMaxTagFeatures        = 500
)

// ContentModel scores items by the content of their ingredient lists, tags
// and numeric attributes. Each item is embedded as the concatenation of an
// ingredient tf-idf block, a tag tf-idf block and a z-scored numeric block,
// and items are compared by cosine similarity.
type ContentModel struct {
	Ingredients *TfidfVectorizer
	Tags        *TfidfVectorizer
	Scaler      *StandardScaler
	ItemIndex   *dataset.FreqDict

	rows  [][]lo.Tuple2[int32, float32]
	norms []float32
}

func NewContentModel(maxIngredientFeatures, maxTagFeatures int) *ContentModel {
	if maxIngredientFeatures <= 0 {
		maxIngredientFeatures = defaultMaxIngredientFeatures
	}
	if maxTagFeatures <= 0 {
		maxTagFeatures = defaultMaxTagFeatures
	}
	return &ContentModel{
		Ingredients: NewTfidfVectorizer(maxIngredientFeatures),
		Tags:        NewTfidfVectorizer(maxTagFeatures),
		Scaler:      &StandardScaler{},
		ItemIndex:   dataset.NewFreqDict(),
	}
}

// numDimensions returns the width of the combined feature space.
func (m *ContentModel) numDimensions() int32 {
	return m.Ingredients.NumFeatures() + m.Tags.NumFeatures() + int32(len(m.Scaler.Mean))
}

// Fit builds vocabularies, numeric statistics and the item feature matrix.
// Later rows win when an item id appears more than once.
func (m *ContentModel) Fit(items []dataset.Item) {
	ingredientDocs := make([][]string, len(items))
	tagDocs := make([][]string, len(items))
	numericRows := make([][]float32, len(items))
	for i, item := range items {
		ingredientDocs[i] = item.Ingredients
		tagDocs[i] = item.Tags
		numericRows[i] = item.Numeric()
	}
	m.Ingredients.Fit(ingredientDocs)
	m.Tags.Fit(tagDocs)
	m.Scaler.Fit(numericRows)

	m.rows = make([][]lo.Tuple2[int32, float32], 0, len(items))
	m.norms = make([]float32, 0, len(items))
	for i := range items {
		row := m.Transform(&items[i])
		index := m.ItemIndex.NotCount(items[i].ItemId)
		if int(index) < len(m.rows) {
			m.rows[index] = row
			m.norms[index] = norm(row)
		} else {
			m.rows = append(m.rows, row)
			m.norms = append(m.norms, norm(row))
		}
	}
}

// Transform embeds one item into the combined feature space. The numeric
// block is dense and may carry negative weights after scaling.
func (m *ContentModel) Transform(item *dataset.Item) []lo.Tuple2[int32, float32] {
	ingredientOffset := int32(0)
	tagOffset := m.Ingredients.NumFeatures()
	numericOffset := tagOffset + m.Tags.NumFeatures()
	row := make([]lo.Tuple2[int32, float32], 0)
	for _, entry := range m.Ingredients.Transform(item.Ingredients) {
		row = append(row, lo.Tuple2[int32, float32]{A: ingredientOffset + entry.A, B: entry.B})
	}
	for _, entry := range m.Tags.Transform(item.Tags) {
		row = append(row, lo.Tuple2[int32, float32]{A: tagOffset + entry.A, B: entry.B})
	}
	for j, value := range m.Scaler.Transform(item.Numeric()) {
		row = append(row, lo.Tuple2[int32, float32]{A: numericOffset + int32(j), B: value})
	}
	return row
}

// SimilarItems returns the n most similar fitted items, the query item
// excluded. An unknown item id yields an empty result. An item index beyond
// the fitted matrix means the codec and the matrix come from different fits
// and is reported as an error.
func (m *ContentModel) SimilarItems(itemId string, n int) ([]model.Result, error) {
	query := m.ItemIndex.ToId(itemId)
	if query == dataset.NotId {
		return nil, nil
	}
	if int(query) >= len(m.rows) {
		return nil, errors.NotValidf("item index %d beyond %d fitted rows", query, len(m.rows))
	}
	exclude := mapset.NewSet(query)
	return m.rank(m.rows[query], m.norms[query], n, exclude), nil
}

// RankForProfile ranks fitted items against the mean feature vector of the
// liked items. Unknown liked ids are skipped; if none remain the result is
// empty. Excluded indices are in this model's item index space.
func (m *ContentModel) RankForProfile(likedIds []string, n int, exclude mapset.Set[int32]) ([]model.Result, error) {
	profile := make([]float32, m.numDimensions())
	var known int
	for _, likedId := range likedIds {
		index := m.ItemIndex.ToId(likedId)
		if index == dataset.NotId {
			continue
		}
		if int(index) >= len(m.rows) {
			return nil, errors.NotValidf("item index %d beyond %d fitted rows", index, len(m.rows))
		}
		for _, entry := range m.rows[index] {
			profile[entry.A] += entry.B
		}
		known++
	}
	if known == 0 {
		return nil, nil
	}
	for i := range profile {
		profile[i] /= float32(known)
	}
	var squares float32
	sparse := make([]lo.Tuple2[int32, float32], 0)
	for i, value := range profile {
		if value != 0 {
			sparse = append(sparse, lo.Tuple2[int32, float32]{A: int32(i), B: value})
			squares += value * value
		}
	}
	return m.rank(sparse, math32.Sqrt(squares), n, exclude), nil
}

// rank scores every fitted row against the query vector and returns the top n
// by cosine similarity, ties broken by item index.
func (m *ContentModel) rank(query []lo.Tuple2[int32, float32], queryNorm float32, n int, exclude mapset.Set[int32]) []model.Result {
	type scored struct {
		index int32
		score float32
	}
	candidates := make([]scored, 0, len(m.rows))
	for i := range m.rows {
		index := int32(i)
		if exclude != nil && exclude.Contains(index) {
			continue
		}
		var score float32
		if queryNorm > 0 && m.norms[i] > 0 {
			score = dot(query, m.rows[i]) / (queryNorm * m.norms[i])
		}
		candidates = append(candidates, scored{index: index, score: score})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].index < candidates[j].index
	})
	if n > 0 && len(candidates) > n {
		candidates = candidates[:n]
	}
	results := make([]model.Result, len(candidates))
	for i, candidate := range candidates {
		name, _ := m.ItemIndex.String(candidate.index)
		results[i] = model.Result{Id: name, Score: candidate.score}
	}
	return results
}

// dot multiplies two sparse rows sorted by index.
func dot(a, b []lo.Tuple2[int32, float32]) float32 {
	var sum float32
	var i, j int
	for i < len(a) && j < len(b) {
		switch {
		case a[i].A < b[j].A:
			i++
		case a[i].A > b[j].A:
			j++
		default:
			sum += a[i].B * b[j].B
			i++
			j++
		}
	}
	return sum
}

func norm(row []lo.Tuple2[int32, float32]) float32 {
	var squares float32
	for _, entry := range row {
		squares += entry.B * entry.B
	}
	return math32.Sqrt(squares)
}

type contentModelData struct {
	IngredientVocabulary map[string]int32
	IngredientIdf        []float32
	MaxIngredients       int
	TagVocabulary        map[string]int32
	TagIdf               []float32
	MaxTags              int
	Mean                 []float64
	Std                  []float64
	Rows                 [][]lo.Tuple2[int32, float32]
	Norms                []float32
}

// Marshal serializes the model, sufficient to score new items without refit.
func (m *ContentModel) Marshal(w io.Writer) error {
	data := contentModelData{
		IngredientVocabulary: m.Ingredients.Vocabulary,
		IngredientIdf:        m.Ingredients.Idf,
		MaxIngredients:       m.Ingredients.MaxFeatures,
		TagVocabulary:        m.Tags.Vocabulary,
		TagIdf:               m.Tags.Idf,
		MaxTags:              m.Tags.MaxFeatures,
		Mean:                 m.Scaler.Mean,
		Std:                  m.Scaler.Std,
		Rows:                 m.rows,
		Norms:                m.norms,
	}
	if err := encoding.WriteGob(w, data); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(m.ItemIndex.Marshal(w))
}

// Unmarshal restores a model written by Marshal.
func (m *ContentModel) Unmarshal(r io.Reader) error {
	var data contentModelData
	if err := encoding.ReadGob(r, &data); err != nil {
		return errors.Trace(err)
	}
	m.Ingredients = &TfidfVectorizer{
		MaxFeatures: data.MaxIngredients,
		Vocabulary:  data.IngredientVocabulary,
		Idf:         data.IngredientIdf,
	}
	m.Tags = &TfidfVectorizer{
		MaxFeatures: data.MaxTags,
		Vocabulary:  data.TagVocabulary,
		Idf:         data.TagIdf,
	}
	m.Scaler = &StandardScaler{Mean: data.Mean, Std: data.Std}
	m.rows = data.Rows
	m.norms = data.Norms
	m.ItemIndex = dataset.NewFreqDict()
	return errors.Trace(m.ItemIndex.Unmarshal(r))
}
