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
	"math"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/spf13/viper"

	"github.com/saffron-io/saffron/model"
)

// Config is the configuration for the recommender.
type Config struct {
	Recommend     RecommendConfig     `mapstructure:"recommend"`
	Collaborative CollaborativeConfig `mapstructure:"collaborative"`
	Content       ContentConfig       `mapstructure:"content"`
	Evaluate      EvaluateConfig      `mapstructure:"evaluate"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Server        ServerConfig        `mapstructure:"server"`
}

// RecommendConfig controls how collaborative and content scores are fused.
type RecommendConfig struct {
	CFWeight            float64 `mapstructure:"cf_weight"`
	CBWeight            float64 `mapstructure:"cb_weight"`
	CandidateMultiplier int     `mapstructure:"candidate_multiplier"`
	LikeThreshold       float64 `mapstructure:"like_threshold"`
	Filter              string  `mapstructure:"filter"`
}

// CollaborativeConfig carries the matrix factorization hyper-parameters.
type CollaborativeConfig struct {
	NFactors    int     `mapstructure:"n_factors"`
	NEpochs     int     `mapstructure:"n_epochs"`
	Lr          float64 `mapstructure:"lr"`
	Reg         float64 `mapstructure:"reg"`
	InitMean    float64 `mapstructure:"init_mean"`
	InitStdDev  float64 `mapstructure:"init_std_dev"`
	RandomState int     `mapstructure:"random_state"`
}

// GetParams converts the hyper-parameter section to model parameters.
func (c *CollaborativeConfig) GetParams() model.Params {
	return model.Params{
		model.NFactors:    c.NFactors,
		model.NEpochs:     c.NEpochs,
		model.Lr:          float32(c.Lr),
		model.Reg:         float32(c.Reg),
		model.InitMean:    float32(c.InitMean),
		model.InitStdDev:  float32(c.InitStdDev),
		model.RandomState: int64(c.RandomState),
	}
}

// ContentConfig bounds the tf-idf vocabularies.
type ContentConfig struct {
	MaxIngredientFeatures int `mapstructure:"max_ingredient_features"`
	MaxTagFeatures        int `mapstructure:"max_tag_features"`
}

// EvaluateConfig controls the train/test split and the offline metrics.
type EvaluateConfig struct {
	MinInteractions    int     `mapstructure:"min_interactions"`
	TestRatio          float64 `mapstructure:"test_ratio"`
	MaxUsers           int     `mapstructure:"max_users"`
	TopK               int     `mapstructure:"top_k"`
	RelevanceThreshold float64 `mapstructure:"relevance_threshold"`
	Seed               int64   `mapstructure:"seed"`
}

// StorageConfig selects where model snapshots live.
type StorageConfig struct {
	Type string   `mapstructure:"type"`
	Path string   `mapstructure:"path"`
	S3   S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
}

type ServerConfig struct {
	HttpHost    string        `mapstructure:"http_host"`
	HttpPort    int           `mapstructure:"http_port"`
	CacheExpire time.Duration `mapstructure:"cache_expire"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Recommend: RecommendConfig{
			CFWeight:            0.6,
			CBWeight:            0.4,
			CandidateMultiplier: 3,
			LikeThreshold:       4.0,
		},
		Collaborative: CollaborativeConfig{
			NFactors:    50,
			NEpochs:     20,
			Lr:          0.005,
			Reg:         0.02,
			InitMean:    0,
			InitStdDev:  0.1,
			RandomState: 42,
		},
		Content: ContentConfig{
			MaxIngredientFeatures: 1000,
			MaxTagFeatures:        500,
		},
		Evaluate: EvaluateConfig{
			MinInteractions:    10,
			TestRatio:          0.2,
			MaxUsers:           500,
			TopK:               10,
			RelevanceThreshold: 4.0,
			Seed:               42,
		},
		Storage: StorageConfig{
			Type: "posix",
			Path: "snapshots",
		},
		Server: ServerConfig{
			HttpHost:    "127.0.0.1",
			HttpPort:    8087,
			CacheExpire: 10 * time.Minute,
		},
	}
}

func setDefault() {
	defaultConfig := GetDefaultConfig()
	// [recommend]
	viper.SetDefault("recommend.cf_weight", defaultConfig.Recommend.CFWeight)
	viper.SetDefault("recommend.cb_weight", defaultConfig.Recommend.CBWeight)
	viper.SetDefault("recommend.candidate_multiplier", defaultConfig.Recommend.CandidateMultiplier)
	viper.SetDefault("recommend.like_threshold", defaultConfig.Recommend.LikeThreshold)
	// [collaborative]
	viper.SetDefault("collaborative.n_factors", defaultConfig.Collaborative.NFactors)
	viper.SetDefault("collaborative.n_epochs", defaultConfig.Collaborative.NEpochs)
	viper.SetDefault("collaborative.lr", defaultConfig.Collaborative.Lr)
	viper.SetDefault("collaborative.reg", defaultConfig.Collaborative.Reg)
	viper.SetDefault("collaborative.init_mean", defaultConfig.Collaborative.InitMean)
	viper.SetDefault("collaborative.init_std_dev", defaultConfig.Collaborative.InitStdDev)
	viper.SetDefault("collaborative.random_state", defaultConfig.Collaborative.RandomState)
	// [content]
	viper.SetDefault("content.max_ingredient_features", defaultConfig.Content.MaxIngredientFeatures)
	viper.SetDefault("content.max_tag_features", defaultConfig.Content.MaxTagFeatures)
	// [evaluate]
	viper.SetDefault("evaluate.min_interactions", defaultConfig.Evaluate.MinInteractions)
	viper.SetDefault("evaluate.test_ratio", defaultConfig.Evaluate.TestRatio)
	viper.SetDefault("evaluate.max_users", defaultConfig.Evaluate.MaxUsers)
	viper.SetDefault("evaluate.top_k", defaultConfig.Evaluate.TopK)
	viper.SetDefault("evaluate.relevance_threshold", defaultConfig.Evaluate.RelevanceThreshold)
	viper.SetDefault("evaluate.seed", defaultConfig.Evaluate.Seed)
	// [storage]
	viper.SetDefault("storage.type", defaultConfig.Storage.Type)
	viper.SetDefault("storage.path", defaultConfig.Storage.Path)
	// [server]
	viper.SetDefault("server.http_host", defaultConfig.Server.HttpHost)
	viper.SetDefault("server.http_port", defaultConfig.Server.HttpPort)
	viper.SetDefault("server.cache_expire", defaultConfig.Server.CacheExpire)
}

// LoadConfig loads the configuration from a TOML file. Environment variables
// prefixed with SAFFRON_ override file values.
func LoadConfig(path string) (*Config, error) {
	setDefault()
	viper.SetConfigFile(path)
	viper.SetConfigType("toml")
	viper.SetEnvPrefix("saffron")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		return nil, errors.Trace(err)
	}
	var conf Config
	if err := viper.Unmarshal(&conf); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}

// Validate rejects configurations the engine cannot run with.
func (config *Config) Validate() error {
	if config.Recommend.CFWeight < 0 || config.Recommend.CBWeight < 0 {
		return errors.NotValidf("negative fusion weights")
	}
	if math.Abs(config.Recommend.CFWeight+config.Recommend.CBWeight-1) > 1e-6 {
		return errors.NotValidf("fusion weights must sum to 1, got %.4f",
			config.Recommend.CFWeight+config.Recommend.CBWeight)
	}
	if config.Recommend.CandidateMultiplier < 1 || config.Recommend.CandidateMultiplier > 10 {
		return errors.NotValidf("candidate_multiplier must be in [1, 10], got %d",
			config.Recommend.CandidateMultiplier)
	}
	if config.Evaluate.TestRatio <= 0 || config.Evaluate.TestRatio >= 1 {
		return errors.NotValidf("test_ratio must be in (0, 1), got %.4f", config.Evaluate.TestRatio)
	}
	if config.Evaluate.TopK <= 0 {
		return errors.NotValidf("top_k must be positive, got %d", config.Evaluate.TopK)
	}
	if config.Collaborative.NFactors <= 0 || config.Collaborative.NEpochs <= 0 {
		return errors.NotValidf("n_factors and n_epochs must be positive")
	}
	switch config.Storage.Type {
	case "posix", "s3":
	default:
		return errors.NotValidf("storage type %q", config.Storage.Type)
	}
	if config.Server.HttpPort <= 0 || config.Server.HttpPort > 65535 {
		return errors.NotValidf("http_port %d", config.Server.HttpPort)
	}
	return nil
}
