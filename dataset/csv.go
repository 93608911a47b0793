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
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/saffron-io/saffron/base/log"
)

const tokenSeparator = "|"

// LoadItemsFromCSV reads the item table. Expected columns:
//
//	item_id, ingredients, tags, n_ingredients, n_steps, minutes, health_score, calories, protein
//
// Token fields are separated by '|'. Malformed token fields default to an
// empty list and malformed numeric fields default to 0.
func LoadItemsFromCSV(path string) ([]Item, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	stat, err := file.Stat()
	if err != nil {
		return nil, errors.Trace(err)
	}
	bar := progressbar.DefaultBytes(stat.Size(), "load items")
	reader := csv.NewReader(io.TeeReader(file, bar))
	reader.FieldsPerRecord = -1
	var items []Item
	header := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		if header && record[0] == "item_id" {
			header = false
			continue
		}
		header = false
		if len(record) == 0 || record[0] == "" {
			continue
		}
		item := Item{ItemId: record[0]}
		item.Ingredients = parseTokens(field(record, 1))
		item.Tags = parseTokens(field(record, 2))
		item.NIngredients = parseFloat(field(record, 3))
		item.NSteps = parseFloat(field(record, 4))
		item.Minutes = parseFloat(field(record, 5))
		item.HealthScore = parseFloat(field(record, 6))
		item.Calories = parseFloat(field(record, 7))
		item.Protein = parseFloat(field(record, 8))
		items = append(items, item)
	}
	log.Logger().Info("loaded item table", zap.String("path", path), zap.Int("items", len(items)))
	return items, nil
}

// LoadInteractionsFromCSV reads rating events. Expected columns:
//
//	user_id, item_id, rating, timestamp
//
// Timestamps are unix seconds. Rows with an unparseable rating are skipped
// and counted, never aborting the load.
func LoadInteractionsFromCSV(path string) ([]Interaction, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	stat, err := file.Stat()
	if err != nil {
		return nil, errors.Trace(err)
	}
	bar := progressbar.DefaultBytes(stat.Size(), "load interactions")
	reader := csv.NewReader(io.TeeReader(file, bar))
	reader.FieldsPerRecord = -1
	var interactions []Interaction
	var skipped int
	header := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		if header && record[0] == "user_id" {
			header = false
			continue
		}
		header = false
		if len(record) < 3 || record[0] == "" || record[1] == "" {
			skipped++
			continue
		}
		rating, err := strconv.ParseFloat(record[2], 32)
		if err != nil {
			skipped++
			continue
		}
		var timestamp time.Time
		if len(record) > 3 {
			if unix, err := strconv.ParseInt(record[3], 10, 64); err == nil {
				timestamp = time.Unix(unix, 0)
			}
		}
		interactions = append(interactions, Interaction{
			UserId:    record[0],
			ItemId:    record[1],
			Rating:    float32(rating),
			Timestamp: timestamp,
		})
	}
	log.Logger().Info("loaded interaction table",
		zap.String("path", path),
		zap.Int("interactions", len(interactions)),
		zap.Int("skipped", skipped))
	return interactions, nil
}

func field(record []string, i int) string {
	if i < len(record) {
		return record[i]
	}
	return ""
}

func parseTokens(s string) []string {
	if s == "" {
		return []string{}
	}
	tokens := strings.Split(s, tokenSeparator)
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token != "" {
			out = append(out, token)
		}
	}
	return out
}

func parseFloat(s string) float32 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
	if err != nil {
		return 0
	}
	return float32(v)
}
