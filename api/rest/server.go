// Copyright 2018-2019 The logrange Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package rest contains the HTTP transport of the api: the Server, which is
// the irange service component, and the Client, which implements api.Client.
package rest

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jrivets/log4g"
	"github.com/logrange/irange/api"
	"github.com/logrange/irange/pkg/events"
	"github.com/logrange/irange/pkg/lifecycle"
	"github.com/logrange/irange/pkg/model"
	"github.com/logrange/irange/pkg/ranges"
	"github.com/logrange/irange/pkg/rql"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type (
	// Server serves the REST API and the prometheus metrics
	Server struct {
		ListenAddr  string             `inject:"httpListenAddr"`
		MetricsPath string             `inject:"metricsPath"`
		Ranges      *ranges.Service    `inject:"ranges"`
		Manager     *lifecycle.Manager `inject:""`
		Events      events.Publisher   `inject:"events"`

		logger log4g.Logger
		srv    *http.Server
	}
)

// REST endpoints
const (
	cPathRanges      = "/v1/ranges"
	cPathRecalculate = "/v1/recalculate"
	cPathEvents      = "/v1/events"
	cPathHealth      = "/health"

	cParamQuery   = "q"
	cDefaultQuery = "ALL"
)

func NewServer() *Server {
	s := new(Server)
	s.logger = log4g.GetLogger("rest.Server")
	return s
}

// Init is part of linker.Initializer
func (s *Server) Init(ctx context.Context) error {
	s.logger = s.logger.WithId("{" + s.ListenAddr + "}").(log4g.Logger)
	ln, err := net.Listen("tcp", s.ListenAddr)
	if err != nil {
		return errors.Wrapf(err, "could not listen %s", s.ListenAddr)
	}

	gin.SetMode(gin.ReleaseMode)
	s.srv = &http.Server{Handler: s.router(), ReadHeaderTimeout: 10 * time.Second}
	go s.serve(ln)
	return nil
}

// Shutdown is part of linker.Shutdowner
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warn("Shutdown(): err=", err)
	}
}

func (s *Server) serve(ln net.Listener) {
	s.logger.Info("serve(): start")
	defer s.logger.Info("serve(): stop")
	if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		s.logger.Error("serve(): the server is over with err=", err)
	}
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET(cPathHealth, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET(cPathRanges, s.queryRanges)
	r.GET(cPathRanges+"/:index", s.getRange)
	r.DELETE(cPathRanges+"/:index", s.deleteRange)
	r.POST(cPathRecalculate, s.recalculate)
	r.POST(cPathEvents, s.postEvent)
	if s.MetricsPath != "" {
		r.GET(s.MetricsPath, gin.WrapH(promhttp.Handler()))
	}
	return r
}

func (s *Server) queryRanges(c *gin.Context) {
	qs := strings.TrimSpace(c.Query(cParamQuery))
	if qs == "" {
		qs = cDefaultQuery
	}

	q, err := rql.Parse(qs)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.Error{Error: err.Error()})
		return
	}

	irs, err := q.Execute(c.Request.Context(), s.Ranges)
	if err != nil {
		s.logger.Warn("Could not execute ", q, ", err=", err)
		c.JSON(http.StatusInternalServerError, api.Error{Error: err.Error()})
		return
	}

	res := api.RangesResult{Ranges: make([]api.Range, len(irs))}
	for i, ir := range irs {
		res.Ranges[i] = toApiRange(ir)
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) getRange(c *gin.Context) {
	ir, err := s.Ranges.Get(c.Request.Context(), c.Param("index"))
	if err == ranges.ErrNotFound {
		c.JSON(http.StatusNotFound, api.Error{Error: err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.Error{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, toApiRange(ir))
}

func (s *Server) deleteRange(c *gin.Context) {
	r := s.Manager.Delete(c.Request.Context(), c.Param("index"))
	if err := r.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, api.Error{Error: err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) recalculate(c *gin.Context) {
	var req api.RecalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Indices) == 0 {
		c.JSON(http.StatusBadRequest, api.Error{Error: "expecting non-empty list of indices"})
		return
	}

	r := s.Manager.Recalculate(c.Request.Context(), req.Indices...)
	res := api.Report{Op: r.Op, Processed: r.Processed}
	if len(r.Failed) > 0 {
		res.Failed = make(map[string]string, len(r.Failed))
		for idx, err := range r.Failed {
			res.Failed[idx] = err.Error()
		}
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) postEvent(c *gin.Context) {
	var req api.LifecycleEvent
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.Error{Error: "invalid request body"})
		return
	}
	if len(req.Indices) == 0 {
		c.JSON(http.StatusBadRequest, api.Error{Error: "no indices in the event"})
		return
	}

	ev, err := events.NewLifecycleEvent(req.Event, req.Indices)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.Error{Error: err.Error()})
		return
	}
	if err := s.Events.Publish(c.Request.Context(), ev); err != nil {
		c.JSON(http.StatusServiceUnavailable, api.Error{Error: err.Error()})
		return
	}
	c.Status(http.StatusAccepted)
}

func toApiRange(ir model.IndexRange) api.Range {
	return api.Range{
		IndexName:    ir.IndexName,
		Begin:        model.ToMillis(ir.Begin),
		End:          model.ToMillis(ir.End),
		CalculatedAt: model.ToMillis(ir.CalculatedAt),
		TookMs:       ir.CalculationDuration,
	}
}
