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

package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saffron-io/saffron/model"
)

func TestUnmarshal(t *testing.T) {
	text := `
[recommend]
cf_weight = 0.7
cb_weight = 0.3
candidate_multiplier = 5
like_threshold = 3.5
filter = "item.Minutes <= 60"

[collaborative]
n_factors = 64
random_state = 7

[content]
max_ingredient_features = 2000

[evaluate]
max_users = 100

[storage]
type = "s3"
[storage.s3]
endpoint = "localhost:9000"
access_key_id = "admin"
secret_access_key = "password"
bucket = "saffron"
prefix = "snapshots/"

[server]
http_port = 9087
cache_expire = "30s"
`
	setDefault()
	viper.SetConfigType("toml")
	require.NoError(t, viper.ReadConfig(strings.NewReader(text)))
	var conf Config
	require.NoError(t, viper.Unmarshal(&conf))
	require.NoError(t, conf.Validate())

	assert.Equal(t, 0.7, conf.Recommend.CFWeight)
	assert.Equal(t, 0.3, conf.Recommend.CBWeight)
	assert.Equal(t, 5, conf.Recommend.CandidateMultiplier)
	assert.Equal(t, 3.5, conf.Recommend.LikeThreshold)
	assert.Equal(t, "item.Minutes <= 60", conf.Recommend.Filter)
	assert.Equal(t, 64, conf.Collaborative.NFactors)
	assert.Equal(t, 7, conf.Collaborative.RandomState)
	// unset keys fall back to defaults
	assert.Equal(t, 20, conf.Collaborative.NEpochs)
	assert.Equal(t, 0.005, conf.Collaborative.Lr)
	assert.Equal(t, 2000, conf.Content.MaxIngredientFeatures)
	assert.Equal(t, 500, conf.Content.MaxTagFeatures)
	assert.Equal(t, 100, conf.Evaluate.MaxUsers)
	assert.Equal(t, 10, conf.Evaluate.TopK)
	assert.Equal(t, "s3", conf.Storage.Type)
	assert.Equal(t, "localhost:9000", conf.Storage.S3.Endpoint)
	assert.Equal(t, "admin", conf.Storage.S3.AccessKeyID)
	assert.Equal(t, "saffron", conf.Storage.S3.Bucket)
	assert.Equal(t, 9087, conf.Server.HttpPort)
	assert.Equal(t, 30*time.Second, conf.Server.CacheExpire)
}

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, GetDefaultConfig().Validate())
}

func TestValidate(t *testing.T) {
	conf := GetDefaultConfig()
	conf.Recommend.CFWeight = 0.9
	assert.Error(t, conf.Validate())

	conf = GetDefaultConfig()
	conf.Recommend.CandidateMultiplier = 11
	assert.Error(t, conf.Validate())

	conf = GetDefaultConfig()
	conf.Evaluate.TestRatio = 1.5
	assert.Error(t, conf.Validate())

	conf = GetDefaultConfig()
	conf.Storage.Type = "hdfs"
	assert.Error(t, conf.Validate())
}

func TestGetParams(t *testing.T) {
	params := GetDefaultConfig().Collaborative.GetParams()
	assert.Equal(t, 50, params.GetInt(model.NFactors, 0))
	assert.Equal(t, float32(0.005), params.GetFloat32(model.Lr, 0))
	assert.Equal(t, int64(42), params.GetInt64(model.RandomState, 0))
}
