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
	"io"

	"github.com/juju/errors"
	"github.com/saffron-io/saffron/base/encoding"
)

// NotId is returned by ToId for identifiers never seen during fitting.
// Callers must treat it as a cold-start signal, not as an error.
const NotId = int32(-1)

// FreqDict maps raw string identifiers to dense zero-based indices in
// first-seen order. Occurrence counts double as a popularity signal.
type FreqDict struct {
	si  map[string]int32
	is  []string
	cnt []int
}

func NewFreqDict() *FreqDict {
	return &FreqDict{si: map[string]int32{}, is: []string{}, cnt: []int{}}
}

// Count returns the number of distinct identifiers.
func (d *FreqDict) Count() int32 {
	return int32(len(d.is))
}

// Id returns the index of s, inserting it if unseen, and increments its count.
func (d *FreqDict) Id(s string) (y int32) {
	if y, ok := d.si[s]; ok {
		d.cnt[y]++
		return y
	}
	y = int32(len(d.is))
	d.si[s] = y
	d.is = append(d.is, s)
	d.cnt = append(d.cnt, 1)
	return
}

// NotCount returns the index of s, inserting it if unseen, without counting.
func (d *FreqDict) NotCount(s string) (y int32) {
	if y, ok := d.si[s]; ok {
		return y
	}
	y = int32(len(d.is))
	d.si[s] = y
	d.is = append(d.is, s)
	d.cnt = append(d.cnt, 0)
	return
}

// ToId looks up the index of s without inserting. Returns NotId if unseen.
func (d *FreqDict) ToId(s string) int32 {
	if y, ok := d.si[s]; ok {
		return y
	}
	return NotId
}

// String is the exact inverse of Id.
func (d *FreqDict) String(id int32) (s string, ok bool) {
	if id < 0 || id >= int32(len(d.is)) {
		return "", false
	}
	return d.is[id], true
}

// Freq returns the occurrence count of an index.
func (d *FreqDict) Freq(id int32) int {
	if id < 0 || id >= int32(len(d.cnt)) {
		return 0
	}
	return d.cnt[id]
}

type freqDictData struct {
	Is  []string
	Cnt []int
}

// Marshal dictionary into byte stream.
func (d *FreqDict) Marshal(w io.Writer) error {
	return errors.Trace(encoding.WriteGob(w, freqDictData{Is: d.is, Cnt: d.cnt}))
}

// Unmarshal dictionary from byte stream.
func (d *FreqDict) Unmarshal(r io.Reader) error {
	var data freqDictData
	if err := encoding.ReadGob(r, &data); err != nil {
		return errors.Trace(err)
	}
	d.is = data.Is
	d.cnt = data.Cnt
	d.si = make(map[string]int32, len(data.Is))
	for i, s := range data.Is {
		d.si[s] = int32(i)
	}
	return nil
}
