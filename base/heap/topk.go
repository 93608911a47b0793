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

package heap

import (
	"container/heap"
	"sort"

	"golang.org/x/exp/constraints"
)

type Elem[T any, W constraints.Ordered] struct {
	Value  T
	Weight W
}

type _heap[T any, W constraints.Ordered] struct {
	elems []Elem[T, W]
}

func (h *_heap[T, W]) Len() int {
	return len(h.elems)
}

func (h *_heap[T, W]) Less(i, j int) bool {
	return h.elems[i].Weight < h.elems[j].Weight
}

func (h *_heap[T, W]) Swap(i, j int) {
	h.elems[i], h.elems[j] = h.elems[j], h.elems[i]
}

func (h *_heap[T, W]) Push(x interface{}) {
	h.elems = append(h.elems, x.(Elem[T, W]))
}

func (h *_heap[T, W]) Pop() interface{} {
	old := h.elems
	item := old[len(old)-1]
	h.elems = old[:len(old)-1]
	return item
}

// TopKFilter filters out the top k elements by weight from a stream of elements.
type TopKFilter[T any, W constraints.Ordered] struct {
	_heap[T, W]
	k int
}

// NewTopKFilter creates a top k filter.
func NewTopKFilter[T any, W constraints.Ordered](k int) *TopKFilter[T, W] {
	return &TopKFilter[T, W]{k: k}
}

// Push an element into the filter. The element with the smallest weight is
// evicted once the filter holds more than k elements.
func (f *TopKFilter[T, W]) Push(value T, weight W) {
	heap.Push(&f._heap, Elem[T, W]{Value: value, Weight: weight})
	if f._heap.Len() > f.k {
		heap.Pop(&f._heap)
	}
}

// PopAll returns all kept elements ordered by weight descending.
func (f *TopKFilter[T, W]) PopAll() ([]T, []W) {
	sort.Sort(sort.Reverse(&f._heap))
	values := make([]T, f.Len())
	weights := make([]W, f.Len())
	for i, elem := range f.elems {
		values[i] = elem.Value
		weights[i] = elem.Weight
	}
	return values, weights
}
