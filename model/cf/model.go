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

package cf

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/c-bata/goptuna"
	"github.com/chewxy/math32"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/saffron-io/saffron/base/encoding"
	"github.com/saffron-io/saffron/base/log"
	"github.com/saffron-io/saffron/common/floats"
	"github.com/saffron-io/saffron/dataset"
	"github.com/saffron-io/saffron/model"
)

// Score is the rating-error evaluation of a matrix factorization model.
type Score struct {
	RMSE float32
	MAE  float32
}

type FitConfig struct {
	Verbose int
}

func NewFitConfig() *FitConfig {
	return &FitConfig{Verbose: 10}
}

func (config *FitConfig) SetVerbose(verbose int) *FitConfig {
	config.Verbose = verbose
	return config
}

// MatrixFactorization learns a rank-k approximation of the interaction matrix
// such that the dot product of a user vector and an item vector, plus the
// global mean, approximates the observed rating.
type MatrixFactorization interface {
	model.Model
	// Fit a model with a train set and parameters.
	Fit(ctx context.Context, trainSet, testSet *dataset.Dataset, config *FitConfig) Score
	// Predict the rating given by a user (userId) to an item (itemId). Unknown
	// users or items fall back to the global mean.
	Predict(userId, itemId string) float32
	// Rank returns the top n unrated items for a known user, an empty list for
	// an unknown one.
	Rank(userId string, n int, exclude mapset.Set[int32]) []model.Result
	// GetUserIndex returns the user codec.
	GetUserIndex() *dataset.FreqDict
	// GetItemIndex returns the item codec.
	GetItemIndex() *dataset.FreqDict
	// SuggestParams samples hyper-parameters for one search trial.
	SuggestParams(trial goptuna.Trial) model.Params
	// Marshal model into byte stream.
	Marshal(w io.Writer) error
	// Unmarshal model from byte stream.
	Unmarshal(r io.Reader) error
}

type BaseMatrixFactorization struct {
	model.BaseModel
	UserIndex       *dataset.FreqDict
	ItemIndex       *dataset.FreqDict
	UserPredictable *bitset.BitSet
	ItemPredictable *bitset.BitSet
	// Model parameters
	UserFactor [][]float32 // p_u
	ItemFactor [][]float32 // q_i
	GlobalMean float32     // mu
}

func (baseModel *BaseMatrixFactorization) Init(trainSet *dataset.Dataset) {
	baseModel.UserIndex = trainSet.GetUserDict()
	baseModel.ItemIndex = trainSet.GetItemDict()
	baseModel.GlobalMean = trainSet.GlobalMean()
	// set user trained flags
	baseModel.UserPredictable = bitset.New(uint(baseModel.UserIndex.Count()))
	for userIndex := int32(0); userIndex < baseModel.UserIndex.Count(); userIndex++ {
		if len(trainSet.GetUserRatings()[userIndex]) > 0 {
			baseModel.UserPredictable.Set(uint(userIndex))
		}
	}
	// set item trained flags
	baseModel.ItemPredictable = bitset.New(uint(baseModel.ItemIndex.Count()))
	for itemIndex := int32(0); itemIndex < baseModel.ItemIndex.Count(); itemIndex++ {
		if len(trainSet.GetItemRatings()[itemIndex]) > 0 {
			baseModel.ItemPredictable.Set(uint(itemIndex))
		}
	}
}

func (baseModel *BaseMatrixFactorization) GetUserIndex() *dataset.FreqDict {
	return baseModel.UserIndex
}

func (baseModel *BaseMatrixFactorization) GetItemIndex() *dataset.FreqDict {
	return baseModel.ItemIndex
}

// IsUserPredictable returns false if the user has no feedback and its
// embedding vector was never trained.
func (baseModel *BaseMatrixFactorization) IsUserPredictable(userIndex int32) bool {
	if userIndex < 0 || userIndex >= baseModel.UserIndex.Count() {
		return false
	}
	return baseModel.UserPredictable.Test(uint(userIndex))
}

// IsItemPredictable returns false if the item has no feedback and its
// embedding vector was never trained.
func (baseModel *BaseMatrixFactorization) IsItemPredictable(itemIndex int32) bool {
	if itemIndex < 0 || itemIndex >= baseModel.ItemIndex.Count() {
		return false
	}
	return baseModel.ItemPredictable.Test(uint(itemIndex))
}

// Predict clamps the predicted rating to the valid rating range. Unknown or
// untrained users and items fall back to the global mean: cold start is a
// sentinel value, never an error.
func (baseModel *BaseMatrixFactorization) Predict(userId, itemId string) float32 {
	userIndex := baseModel.UserIndex.ToId(userId)
	itemIndex := baseModel.ItemIndex.ToId(itemId)
	return baseModel.internalPredict(userIndex, itemIndex)
}

func (baseModel *BaseMatrixFactorization) internalPredict(userIndex, itemIndex int32) float32 {
	if !baseModel.IsUserPredictable(userIndex) || !baseModel.IsItemPredictable(itemIndex) {
		return baseModel.GlobalMean
	}
	return clamp(baseModel.internalPredictRaw(userIndex, itemIndex))
}

// internalPredictRaw returns the unclamped prediction. Ranking uses raw
// scores for ordering stability.
func (baseModel *BaseMatrixFactorization) internalPredictRaw(userIndex, itemIndex int32) float32 {
	return baseModel.GlobalMean + floats.Dot(baseModel.UserFactor[userIndex], baseModel.ItemFactor[itemIndex])
}

// Rank scores every trained item by raw prediction, removes excluded items
// and returns the top n by score descending, ties broken by item index order.
// An unknown user yields an empty list.
func (baseModel *BaseMatrixFactorization) Rank(userId string, n int, exclude mapset.Set[int32]) []model.Result {
	userIndex := baseModel.UserIndex.ToId(userId)
	if !baseModel.IsUserPredictable(userIndex) {
		return nil
	}
	type candidate struct {
		index int32
		score float32
	}
	candidates := make([]candidate, 0, baseModel.ItemIndex.Count())
	for itemIndex := int32(0); itemIndex < baseModel.ItemIndex.Count(); itemIndex++ {
		if exclude != nil && exclude.Contains(itemIndex) {
			continue
		}
		if !baseModel.ItemPredictable.Test(uint(itemIndex)) {
			continue
		}
		candidates = append(candidates, candidate{
			index: itemIndex,
			score: baseModel.internalPredictRaw(userIndex, itemIndex),
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].index < candidates[j].index
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	results := make([]model.Result, 0, len(candidates))
	for _, c := range candidates {
		itemId, _ := baseModel.ItemIndex.String(c.index)
		results = append(results, model.Result{Id: itemId, Score: c.score})
	}
	return results
}

// Marshal model into byte stream.
func (baseModel *BaseMatrixFactorization) Marshal(w io.Writer) error {
	// write params
	if err := encoding.WriteGob(w, baseModel.Params); err != nil {
		return errors.Trace(err)
	}
	// write codecs
	if err := baseModel.UserIndex.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	if err := baseModel.ItemIndex.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	// write global mean
	if err := binary.Write(w, binary.LittleEndian, baseModel.GlobalMean); err != nil {
		return errors.Trace(err)
	}
	// write trained flags
	for _, flags := range []*bitset.BitSet{baseModel.UserPredictable, baseModel.ItemPredictable} {
		data, err := flags.MarshalBinary()
		if err != nil {
			return errors.Trace(err)
		}
		if err := encoding.WriteBytes(w, data); err != nil {
			return errors.Trace(err)
		}
	}
	// write latent factors
	for _, factor := range [][][]float32{baseModel.UserFactor, baseModel.ItemFactor} {
		var cols int32
		if len(factor) > 0 {
			cols = int32(len(factor[0]))
		}
		if err := binary.Write(w, binary.LittleEndian, int32(len(factor))); err != nil {
			return errors.Trace(err)
		}
		if err := binary.Write(w, binary.LittleEndian, cols); err != nil {
			return errors.Trace(err)
		}
		if err := encoding.WriteMatrix(w, factor); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// Unmarshal model from byte stream.
func (baseModel *BaseMatrixFactorization) Unmarshal(r io.Reader) error {
	// read params
	if err := encoding.ReadGob(r, &baseModel.Params); err != nil {
		return errors.Trace(err)
	}
	// read codecs
	baseModel.UserIndex = dataset.NewFreqDict()
	if err := baseModel.UserIndex.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	baseModel.ItemIndex = dataset.NewFreqDict()
	if err := baseModel.ItemIndex.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	// read global mean
	if err := binary.Read(r, binary.LittleEndian, &baseModel.GlobalMean); err != nil {
		return errors.Trace(err)
	}
	// read trained flags
	for _, flags := range []**bitset.BitSet{&baseModel.UserPredictable, &baseModel.ItemPredictable} {
		data, err := encoding.ReadBytes(r)
		if err != nil {
			return errors.Trace(err)
		}
		*flags = bitset.New(0)
		if err := (*flags).UnmarshalBinary(data); err != nil {
			return errors.Trace(err)
		}
	}
	// read latent factors
	for _, factor := range []*[][]float32{&baseModel.UserFactor, &baseModel.ItemFactor} {
		var rows, cols int32
		if err := binary.Read(r, binary.LittleEndian, &rows); err != nil {
			return errors.Trace(err)
		}
		if err := binary.Read(r, binary.LittleEndian, &cols); err != nil {
			return errors.Trace(err)
		}
		*factor = make([][]float32, rows)
		for i := range *factor {
			(*factor)[i] = make([]float32, cols)
		}
		if err := encoding.ReadMatrix(r, *factor); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (baseModel *BaseMatrixFactorization) Clear() {
	baseModel.UserIndex = nil
	baseModel.ItemIndex = nil
	baseModel.UserFactor = nil
	baseModel.ItemFactor = nil
}

func (baseModel *BaseMatrixFactorization) Invalid() bool {
	return baseModel == nil ||
		baseModel.UserIndex == nil ||
		baseModel.ItemIndex == nil ||
		baseModel.ItemFactor == nil ||
		baseModel.UserFactor == nil
}

// SVD algorithm, as popularized by Simon Funk during the Netflix Prize. The
// prediction \hat{r}_{ui} is set as:
//
//	\hat{r}_{ui} = mu + q_i^T p_u
//
// Unknown users or items fall back to the global mean mu.
//
// Hyper-parameters:
//
//	Reg        - The regularization parameter of the cost function that is
//	             optimized. Default is 0.02.
//	Lr         - The learning rate of SGD. Default is 0.005.
//	NFactors   - The number of latent factors. Default is 50.
//	NEpochs    - The number of iterations of the SGD procedure. Default is 20.
//	InitMean   - The mean of initial random latent factors. Default is 0.
//	InitStdDev - The standard deviation of initial random latent factors. Default is 0.1.
type SVD struct {
	BaseMatrixFactorization
	// Hyper parameters
	nFactors   int
	nEpochs    int
	lr         float32
	reg        float32
	initMean   float32
	initStdDev float32
}

// NewSVD creates a SVD model.
func NewSVD(params model.Params) *SVD {
	svd := new(SVD)
	svd.SetParams(params)
	return svd
}

// SetParams sets hyper-parameters of the SVD model.
func (svd *SVD) SetParams(params model.Params) {
	svd.BaseMatrixFactorization.SetParams(params)
	svd.nFactors = svd.Params.GetInt(model.NFactors, 50)
	svd.nEpochs = svd.Params.GetInt(model.NEpochs, 20)
	svd.lr = svd.Params.GetFloat32(model.Lr, 0.005)
	svd.reg = svd.Params.GetFloat32(model.Reg, 0.02)
	svd.initMean = svd.Params.GetFloat32(model.InitMean, 0)
	svd.initStdDev = svd.Params.GetFloat32(model.InitStdDev, 0.1)
}

// SuggestParams samples hyper-parameters for one search trial.
func (svd *SVD) SuggestParams(trial goptuna.Trial) model.Params {
	return model.Params{
		model.NFactors:   lo.Must(trial.SuggestStepInt(string(model.NFactors), 10, 100, 10)),
		model.Lr:         lo.Must(trial.SuggestLogFloat(string(model.Lr), 0.001, 0.1)),
		model.Reg:        lo.Must(trial.SuggestLogFloat(string(model.Reg), 0.001, 0.1)),
		model.InitMean:   0,
		model.InitStdDev: lo.Must(trial.SuggestLogFloat(string(model.InitStdDev), 0.001, 0.1)),
	}
}

func (svd *SVD) Init(trainSet *dataset.Dataset) {
	// Initialize parameters
	svd.UserFactor = svd.GetRandomGenerator().NormalMatrix(trainSet.CountUsers(), svd.nFactors, svd.initMean, svd.initStdDev)
	svd.ItemFactor = svd.GetRandomGenerator().NormalMatrix(trainSet.CountItems(), svd.nFactors, svd.initMean, svd.initStdDev)
	// Initialize base
	svd.BaseMatrixFactorization.Init(trainSet)
}

// Fit the SVD model by SGD over shuffled observed entries. Deterministic
// under a fixed RandomState.
func (svd *SVD) Fit(ctx context.Context, trainSet, testSet *dataset.Dataset, config *FitConfig) Score {
	if config == nil {
		config = NewFitConfig()
	}
	log.Logger().Info("fit svd",
		zap.Int("train_set_size", trainSet.CountFeedback()),
		zap.Int("test_set_size", testSet.CountFeedback()),
		zap.Any("params", svd.GetParams()))
	svd.Init(trainSet)
	// Collect observed entries
	type entry struct {
		userIndex int32
		itemIndex int32
		rating    float32
	}
	entries := make([]entry, 0, trainSet.CountFeedback())
	for userIndex, ratings := range trainSet.GetUserRatings() {
		for _, pair := range ratings {
			entries = append(entries, entry{int32(userIndex), pair.A, pair.B})
		}
	}
	// Create buffers
	a := make([]float32, svd.nFactors)
	b := make([]float32, svd.nFactors)
	rng := svd.GetRandomGenerator()
	var score Score
	for epoch := 1; epoch <= svd.nEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			log.Logger().Warn("fit svd canceled", zap.Int("epoch", epoch), zap.Error(err))
			break
		}
		fitStart := time.Now()
		cost := float32(0)
		for _, i := range rng.Perm(len(entries)) {
			e := entries[i]
			userFactor := svd.UserFactor[e.userIndex]
			itemFactor := svd.ItemFactor[e.itemIndex]
			// Compute error: e_{ui} = r_{ui} - \hat{r}_{ui}
			upGrad := e.rating - svd.internalPredictRaw(e.userIndex, e.itemIndex)
			cost += upGrad * upGrad
			// Update user latent factor: p_u <- p_u + lr * (e_{ui} q_i - reg p_u)
			floats.MulConstTo(itemFactor, upGrad, a)
			floats.MulConstAdd(userFactor, -svd.reg, a)
			floats.MulConstAdd(a, svd.lr, userFactor)
			// Update item latent factor: q_i <- q_i + lr * (e_{ui} p_u - reg q_i)
			floats.MulConstTo(userFactor, upGrad, b)
			floats.MulConstAdd(itemFactor, -svd.reg, b)
			floats.MulConstAdd(b, svd.lr, itemFactor)
		}
		fitTime := time.Since(fitStart)
		if epoch%config.Verbose == 0 || epoch == svd.nEpochs {
			evalStart := time.Now()
			score = EvaluateRegression(svd, testSet)
			evalTime := time.Since(evalStart)
			log.Logger().Info(fmt.Sprintf("fit svd %v/%v", epoch, svd.nEpochs),
				zap.String("fit_time", fitTime.String()),
				zap.String("eval_time", evalTime.String()),
				zap.Float32("cost", cost),
				zap.Float32("RMSE", score.RMSE),
				zap.Float32("MAE", score.MAE))
		}
	}
	log.Logger().Info("fit svd complete",
		zap.Float32("RMSE", score.RMSE),
		zap.Float32("MAE", score.MAE))
	return score
}

// Marshal model into byte stream.
func (svd *SVD) Marshal(w io.Writer) error {
	return errors.Trace(svd.BaseMatrixFactorization.Marshal(w))
}

// Unmarshal model from byte stream.
func (svd *SVD) Unmarshal(r io.Reader) error {
	if err := svd.BaseMatrixFactorization.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	svd.SetParams(svd.Params)
	return nil
}

func clamp(rating float32) float32 {
	return math32.Min(math32.Max(rating, dataset.MinRating), dataset.MaxRating)
}
