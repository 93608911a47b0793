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

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/saffron-io/saffron/base/log"
	"github.com/saffron-io/saffron/cmd/version"
	"github.com/saffron-io/saffron/config"
	"github.com/saffron-io/saffron/dataset"
	"github.com/saffron-io/saffron/eval"
	"github.com/saffron-io/saffron/logics"
	"github.com/saffron-io/saffron/model/cb"
	"github.com/saffron-io/saffron/model/cf"
	"github.com/saffron-io/saffron/server"
	"github.com/saffron-io/saffron/storage/blob"
)

var rootCommand = &cobra.Command{
	Use:   "saffron",
	Short: "A hybrid recipe recommender.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Root().PersistentFlags(), debug)
	},
}

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Show build information.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.BuildInfo())
	},
}

var trainCommand = &cobra.Command{
	Use:   "train",
	Short: "Train the models and save a snapshot to the blob store.",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, data, err := loadAll(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		train, test := data.SplitByUser(conf.Evaluate.MinInteractions, conf.Evaluate.TestRatio, conf.Evaluate.Seed)

		var cfModel cf.MatrixFactorization
		searchTrials, _ := cmd.Flags().GetInt("search")
		if searchTrials > 0 {
			cfModel, _, _, err = cf.SearchParams(func() cf.MatrixFactorization {
				return cf.NewSVD(conf.Collaborative.GetParams())
			}, train, test, searchTrials, cf.NewFitConfig())
			if err != nil {
				return errors.Trace(err)
			}
		} else {
			cfModel = cf.NewSVD(conf.Collaborative.GetParams())
			cfModel.Fit(cmd.Context(), train, test, cf.NewFitConfig())
		}

		cbModel := newContentModel(conf, train)
		recommender, err := logics.NewRecommender(cfModel, cbModel, conf.Recommend, train)
		if err != nil {
			return errors.Trace(err)
		}
		snapshot := logics.NewSnapshot(recommender, logics.NewPopular(train, 100))
		store, err := blob.NewStore(conf.Storage)
		if err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(snapshot.Save(store))
	},
}

var testCommand = &cobra.Command{
	Use:   "test",
	Short: "Evaluate the models against a held-out split.",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, data, err := loadAll(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		train, test := data.SplitByUser(conf.Evaluate.MinInteractions, conf.Evaluate.TestRatio, conf.Evaluate.Seed)

		cfModel := cf.NewSVD(conf.Collaborative.GetParams())
		cfModel.Fit(cmd.Context(), train, test, cf.NewFitConfig())
		cbModel := newContentModel(conf, train)
		recommender, err := logics.NewRecommender(cfModel, cbModel, conf.Recommend, train)
		if err != nil {
			return errors.Trace(err)
		}

		jobs, _ := cmd.Flags().GetInt("jobs")
		report, err := eval.Evaluate(cmd.Context(), recommender, train, test, conf.Evaluate, jobs)
		if err != nil {
			return errors.Trace(err)
		}
		if asJson, _ := cmd.Flags().GetBool("json"); asJson {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return errors.Trace(encoder.Encode(report))
		}
		printReport(report)
		return nil
	},
}

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "Serve recommendations from the latest snapshot.",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		conf, err := config.LoadConfig(configPath)
		if err != nil {
			return errors.Trace(err)
		}
		store, err := blob.NewStore(conf.Storage)
		if err != nil {
			return errors.Trace(err)
		}
		snapshot, err := logics.LoadSnapshot(store)
		if err != nil {
			// serve unready, a reload can bring the snapshot in later
			log.Logger().Warn("no snapshot loaded", zap.Error(err))
			snapshot = nil
		}
		server.NewRestServer(conf, store, snapshot).StartHttpServer()
		return nil
	},
}

// loadAll reads the configuration and the CSV tables into one dataset.
func loadAll(cmd *cobra.Command) (*config.Config, *dataset.Dataset, error) {
	configPath, _ := cmd.Flags().GetString("config")
	conf, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	itemsPath, _ := cmd.Flags().GetString("items")
	interactionsPath, _ := cmd.Flags().GetString("interactions")
	items, err := dataset.LoadItemsFromCSV(itemsPath)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	interactions, err := dataset.LoadInteractionsFromCSV(interactionsPath)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	data := dataset.NewDataset(0, len(items))
	for _, item := range items {
		data.AddItem(item)
	}
	for _, interaction := range interactions {
		data.AddInteraction(interaction)
	}
	log.Logger().Info("loaded dataset",
		zap.Int("users", data.CountUsers()),
		zap.Int("items", data.CountItems()),
		zap.Int("feedback", data.CountFeedback()),
		zap.Int("dropped", data.CountDropped()))
	return conf, data, nil
}

func newContentModel(conf *config.Config, train *dataset.Dataset) *cb.ContentModel {
	cbModel := cb.NewContentModel(conf.Content.MaxIngredientFeatures, conf.Content.MaxTagFeatures)
	cbModel.Fit(train.GetItems())
	return cbModel
}

func printReport(report *eval.Report) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Metric", "Value")
	_ = table.Append("RMSE", fmt.Sprintf("%.4f", report.RMSE))
	_ = table.Append("MAE", fmt.Sprintf("%.4f", report.MAE))
	_ = table.Append(fmt.Sprintf("Precision@%d", report.TopK), fmt.Sprintf("%.4f", report.Precision))
	_ = table.Append(fmt.Sprintf("Recall@%d", report.TopK), fmt.Sprintf("%.4f", report.Recall))
	_ = table.Append(fmt.Sprintf("MAP@%d", report.TopK), fmt.Sprintf("%.4f", report.MAP))
	_ = table.Append(fmt.Sprintf("NDCG@%d", report.TopK), fmt.Sprintf("%.4f", report.NDCG))
	_ = table.Append(fmt.Sprintf("HR@%d", report.TopK), fmt.Sprintf("%.4f", report.HR))
	_ = table.Append("Users evaluated", fmt.Sprintf("%d", report.UsersEvaluated))
	_ = table.Append("Users sampled", fmt.Sprintf("%d", report.UsersSampled))
	_ = table.Render()
}

func init() {
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	rootCommand.PersistentFlags().StringP("config", "c", "config.toml", "configuration file path")
	rootCommand.AddCommand(versionCommand)

	for _, cmd := range []*cobra.Command{trainCommand, testCommand} {
		cmd.Flags().String("items", "items.csv", "path of the item table")
		cmd.Flags().String("interactions", "interactions.csv", "path of the interaction table")
	}
	trainCommand.Flags().Int("search", 0, "number of hyper-parameter search trials")
	testCommand.Flags().Int("jobs", runtime.NumCPU(), "number of evaluation workers")
	testCommand.Flags().Bool("json", false, "print the report as JSON")
	rootCommand.AddCommand(trainCommand)
	rootCommand.AddCommand(testCommand)
	rootCommand.AddCommand(serveCommand)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
