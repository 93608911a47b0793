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

package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/emicklei/go-restful/v3"
	"github.com/jellydator/ttlcache/v3"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/saffron-io/saffron/base/log"
	"github.com/saffron-io/saffron/config"
	"github.com/saffron-io/saffron/logics"
	"github.com/saffron-io/saffron/model"
	"github.com/saffron-io/saffron/storage/blob"
)

// RestServer serves recommendations from an immutable snapshot. Reload swaps
// the snapshot pointer; requests in flight keep the bundle they started with.
type RestServer struct {
	Config     *config.Config
	Store      blob.Store
	WebService *restful.WebService

	snapshot *atomic.Pointer[logics.Snapshot]
	cache    *ttlcache.Cache[string, []model.Result]
}

func NewRestServer(cfg *config.Config, store blob.Store, snapshot *logics.Snapshot) *RestServer {
	s := &RestServer{
		Config:   cfg,
		Store:    store,
		snapshot: atomic.NewPointer(snapshot),
		cache: ttlcache.New(
			ttlcache.WithTTL[string, []model.Result](cfg.Server.CacheExpire),
		),
	}
	s.CreateWebService()
	return s
}

// StartHttpServer blocks serving the REST API and prometheus metrics.
func (s *RestServer) StartHttpServer() {
	go s.cache.Start()
	restful.DefaultContainer.Add(s.WebService)
	http.Handle("/metrics", promhttp.Handler())
	log.Logger().Info("start http server",
		zap.String("url", fmt.Sprintf("http://%s:%d", s.Config.Server.HttpHost, s.Config.Server.HttpPort)))
	log.Logger().Fatal("failed to start http server",
		zap.Error(http.ListenAndServe(fmt.Sprintf("%s:%d", s.Config.Server.HttpHost, s.Config.Server.HttpPort), nil)))
}

func LogFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	start := time.Now()
	chain.ProcessFilter(req, resp)
	log.Logger().Info(fmt.Sprintf("%s %s", req.Request.Method, req.Request.URL),
		zap.Int("status_code", resp.StatusCode()),
		zap.Duration("duration", time.Since(start)))
	route := req.SelectedRoutePath()
	RestAPIRequestSeconds.WithLabelValues(route).Observe(time.Since(start).Seconds())
	RestAPIRequestTotal.WithLabelValues(route, strconv.Itoa(resp.StatusCode())).Inc()
}

// CreateWebService creates web service.
func (s *RestServer) CreateWebService() {
	ws := new(restful.WebService)
	ws.Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	ws.Path("/api/").Filter(LogFilter)

	ws.Route(ws.GET("/recommend/{user-id}").To(s.getRecommend).
		Doc("Get hybrid recommendations for a user.").
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("string")).
		Param(ws.QueryParameter("n", "number of returned items").DataType("int")).
		Writes([]model.Result{}))
	ws.Route(ws.GET("/similar/{item-id}").To(s.getSimilar).
		Doc("Get items similar to an item by content.").
		Param(ws.PathParameter("item-id", "identifier of the item").DataType("string")).
		Param(ws.QueryParameter("n", "number of returned items").DataType("int")).
		Writes([]model.Result{}))
	ws.Route(ws.GET("/popular").To(s.getPopular).
		Doc("Get the most rated items.").
		Param(ws.QueryParameter("n", "number of returned items").DataType("int")).
		Writes([]model.Result{}))
	ws.Route(ws.GET("/health").To(s.getHealth).
		Doc("Probe the server and the live snapshot."))
	ws.Route(ws.POST("/reload").To(s.postReload).
		Doc("Reload the snapshot from the blob store and swap it in."))
	s.WebService = ws
}

func (s *RestServer) liveSnapshot(response *restful.Response) *logics.Snapshot {
	snapshot := s.snapshot.Load()
	if snapshot == nil {
		ServiceUnavailable(response, errors.New("no snapshot loaded"))
		return nil
	}
	return snapshot
}

func parseN(request *restful.Request) (int, error) {
	value := request.QueryParameter("n")
	if value == "" {
		return 10, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, errors.NotValidf("n %q", value)
	}
	return n, nil
}

func (s *RestServer) getRecommend(request *restful.Request, response *restful.Response) {
	snapshot := s.liveSnapshot(response)
	if snapshot == nil {
		return
	}
	n, err := parseN(request)
	if err != nil {
		BadRequest(response, err)
		return
	}
	userId := request.PathParameter("user-id")
	cacheKey := fmt.Sprintf("%s/%s/%d", snapshot.Id, userId, n)
	if item := s.cache.Get(cacheKey); item != nil {
		CacheHitTotal.Inc()
		Ok(response, item.Value())
		return
	}
	results, err := snapshot.Recommender.Recommend(userId, n)
	if err != nil {
		InternalServerError(response, err)
		return
	}
	// cold-start users fall back to the popularity leaderboard
	if len(results) == 0 {
		PopularFallbackTotal.Inc()
		results = snapshot.Popular.Popular(n)
	}
	s.cache.Set(cacheKey, results, ttlcache.DefaultTTL)
	Ok(response, results)
}

func (s *RestServer) getSimilar(request *restful.Request, response *restful.Response) {
	snapshot := s.liveSnapshot(response)
	if snapshot == nil {
		return
	}
	n, err := parseN(request)
	if err != nil {
		BadRequest(response, err)
		return
	}
	results, err := snapshot.Recommender.CB.SimilarItems(request.PathParameter("item-id"), n)
	if err != nil {
		InternalServerError(response, err)
		return
	}
	if results == nil {
		results = []model.Result{}
	}
	Ok(response, results)
}

func (s *RestServer) getPopular(request *restful.Request, response *restful.Response) {
	snapshot := s.liveSnapshot(response)
	if snapshot == nil {
		return
	}
	n, err := parseN(request)
	if err != nil {
		BadRequest(response, err)
		return
	}
	Ok(response, snapshot.Popular.Popular(n))
}

// HealthStatus is the health probe payload.
type HealthStatus struct {
	Ready             bool      `json:"ready"`
	SnapshotId        string    `json:"snapshot_id"`
	SnapshotCreatedAt time.Time `json:"snapshot_created_at"`
}

func (s *RestServer) getHealth(_ *restful.Request, response *restful.Response) {
	status := HealthStatus{}
	if snapshot := s.snapshot.Load(); snapshot != nil {
		status.Ready = true
		status.SnapshotId = snapshot.Id.String()
		status.SnapshotCreatedAt = snapshot.CreatedAt
	}
	Ok(response, status)
}

func (s *RestServer) postReload(_ *restful.Request, response *restful.Response) {
	snapshot, err := logics.LoadSnapshot(s.Store)
	if err != nil {
		InternalServerError(response, err)
		return
	}
	previous := s.snapshot.Swap(snapshot)
	s.cache.DeleteAll()
	SnapshotReloadTotal.Inc()
	previousId := ""
	if previous != nil {
		previousId = previous.Id.String()
	}
	log.Logger().Info("swapped snapshot",
		zap.String("previous", previousId),
		zap.String("current", snapshot.Id.String()))
	Ok(response, HealthStatus{
		Ready:             true,
		SnapshotId:        snapshot.Id.String(),
		SnapshotCreatedAt: snapshot.CreatedAt,
	})
}

// BadRequest returns a bad request error.
func BadRequest(response *restful.Response, err error) {
	log.Logger().Error("bad request", zap.Error(err))
	if err = response.WriteError(http.StatusBadRequest, err); err != nil {
		log.Logger().Error("failed to write error", zap.Error(err))
	}
}

// InternalServerError returns an internal server error.
func InternalServerError(response *restful.Response, err error) {
	log.Logger().Error("internal server error", zap.Error(err))
	if err = response.WriteError(http.StatusInternalServerError, err); err != nil {
		log.Logger().Error("failed to write error", zap.Error(err))
	}
}

// ServiceUnavailable reports a server without a loaded snapshot.
func ServiceUnavailable(response *restful.Response, err error) {
	if err := response.WriteError(http.StatusServiceUnavailable, err); err != nil {
		log.Logger().Error("failed to write error", zap.Error(err))
	}
}

// Ok sends the content as JSON to the client.
func Ok(response *restful.Response, content interface{}) {
	if err := response.WriteAsJson(content); err != nil {
		log.Logger().Error("failed to write json", zap.Error(err))
	}
}
