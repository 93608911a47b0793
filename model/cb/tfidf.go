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
	"sort"
	"strings"
	"unicode"

	"github.com/chewxy/math32"
	"github.com/samber/lo"
	"modernc.org/strutil"
)

// minTokenLength drops single-character tokens during tokenization.
const minTokenLength = 2

// TfidfVectorizer converts token lists into term-frequency-inverse-document-
// frequency weighted vectors over a capped vocabulary. The vocabulary keeps
// the terms with the highest corpus counts, ties broken lexicographically,
// and assigns indices in lexicographic order. Rows are L2-normalized.
type TfidfVectorizer struct {
	MaxFeatures int
	Vocabulary  map[string]int32
	Idf         []float32
}

func NewTfidfVectorizer(maxFeatures int) *TfidfVectorizer {
	return &TfidfVectorizer{MaxFeatures: maxFeatures}
}

// NumFeatures returns the fitted vocabulary size.
func (v *TfidfVectorizer) NumFeatures() int32 {
	return int32(len(v.Idf))
}

// Fit builds the vocabulary and inverse document frequencies from a corpus of
// token lists.
func (v *TfidfVectorizer) Fit(docs [][]string) {
	pool := strutil.NewPool()
	termCount := make(map[string]int)
	docFreq := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, field := range doc {
			for _, term := range tokenize(field) {
				term = pool.Align(term)
				termCount[term]++
				seen[term] = struct{}{}
			}
		}
		for term := range seen {
			docFreq[term]++
		}
	}
	// cap the vocabulary by corpus term count, ties lexicographic
	terms := lo.Keys(termCount)
	sort.Slice(terms, func(i, j int) bool {
		if termCount[terms[i]] != termCount[terms[j]] {
			return termCount[terms[i]] > termCount[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > v.MaxFeatures {
		terms = terms[:v.MaxFeatures]
	}
	// assign indices in lexicographic order
	sort.Strings(terms)
	v.Vocabulary = make(map[string]int32, len(terms))
	v.Idf = make([]float32, len(terms))
	n := float32(len(docs))
	for i, term := range terms {
		v.Vocabulary[term] = int32(i)
		// smoothed idf: ln((1+n)/(1+df)) + 1
		v.Idf[i] = math32.Log((1+n)/(1+float32(docFreq[term]))) + 1
	}
}

// Transform converts one token list into a sparse L2-normalized tf-idf row.
// Rows are sorted by term index.
func (v *TfidfVectorizer) Transform(doc []string) []lo.Tuple2[int32, float32] {
	tf := make(map[int32]float32)
	for _, field := range doc {
		for _, term := range tokenize(field) {
			if index, ok := v.Vocabulary[term]; ok {
				tf[index]++
			}
		}
	}
	row := make([]lo.Tuple2[int32, float32], 0, len(tf))
	var squares float32
	for index, count := range tf {
		weight := count * v.Idf[index]
		squares += weight * weight
		row = append(row, lo.Tuple2[int32, float32]{A: index, B: weight})
	}
	if squares > 0 {
		norm := math32.Sqrt(squares)
		for i := range row {
			row[i].B /= norm
		}
	}
	sort.Slice(row, func(i, j int) bool { return row[i].A < row[j].A })
	return row
}

// tokenize lowercases a field and splits it into alphanumeric runs, dropping
// tokens shorter than minTokenLength.
func tokenize(field string) []string {
	field = strings.ToLower(field)
	tokens := strings.FieldsFunc(field, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	out := tokens[:0]
	for _, token := range tokens {
		if len(token) >= minTokenLength {
			out = append(out, token)
		}
	}
	return out
}
