// Copyright 2026 OSIsoft, LLC
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

// Package archivetest provides an in-memory Data Archive server so the
// harness and its collaborators can be exercised without a real historian.
package archivetest

import (
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/archive"
	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/logger"
)

// storedPoint is one registered tag with its recorded values, oldest first.
type storedPoint struct {
	webID      string
	name       string
	attributes map[string]any
	values     []archive.Value
}

// Server is a minimal Data Archive serving the web API the client consumes.
type Server struct {
	server *http.Server
	router *gin.Engine
	port   int
	log    *zap.SugaredLogger

	mu            sync.RWMutex
	pointsByWebID map[string]*storedPoint
	webIDByName   map[string]string
}

// NewServer creates a new archive server on a random available port.
func NewServer() *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		router:        gin.New(),
		port:          getAvailablePort(),
		log:           logger.For(logger.ComponentArchiveServer),
		pointsByWebID: make(map[string]*storedPoint),
		webIDByName:   make(map[string]string),
	}

	s.setupRoutes()
	s.setupHTTPServer()

	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	s.router.GET("/points", s.handleFindPoint)
	s.router.POST("/points", s.handleCreatePoint)
	s.router.PATCH("/points/:webId/attributes", s.handleSaveAttributes)
	s.router.DELETE("/points/:webId", s.handleDeletePoint)
	s.router.GET("/streams/:webId/recorded", s.handleRecordedValues)
	s.router.POST("/streams/:webId/value", s.handleWriteValue)
}

func (s *Server) setupHTTPServer() {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		s.log.Debugw("Archive request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// Start starts the archive server and waits until it accepts requests.
func (s *Server) Start() error {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorw("Archive server failed", "error", err)
		}
	}()

	// Verify server is responding
	for i := 0; i < 50; i++ {
		if resp, err := http.Get(s.URL() + "/points?name=__probe__"); err == nil {
			resp.Body.Close()
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	s.log.Infow("Archive server started", "port", s.port, "url", s.URL())
	return nil
}

// Stop stops the archive server.
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

// URL returns the base URL of the archive server.
func (s *Server) URL() string {
	return fmt.Sprintf("http://localhost:%d", s.port)
}

// Port returns the port the server is listening on.
func (s *Server) Port() int {
	return s.port
}

// PointCount returns the number of registered points.
func (s *Server) PointCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.pointsByWebID)
}

// HasPoint reports whether a tag with the given name is registered.
func (s *Server) HasPoint(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.webIDByName[name]
	return ok
}

// Attributes returns a copy of the stored attributes of a named point.
func (s *Server) Attributes(name string) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	webID, ok := s.webIDByName[name]
	if !ok {
		return nil
	}

	attrs := make(map[string]any, len(s.pointsByWebID[webID].attributes))
	for k, v := range s.pointsByWebID[webID].attributes {
		attrs[k] = v
	}
	return attrs
}

func (s *Server) handleFindPoint(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name parameter"})
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	webID, ok := s.webIDByName[name]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "point not found"})
		return
	}

	c.JSON(http.StatusOK, archive.Point{WebID: webID, Name: name})
}

func (s *Server) handleCreatePoint(c *gin.Context) {
	var req struct {
		Name       string         `json:"name"`
		Attributes map[string]any `json:"attributes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name must not be empty"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.webIDByName[req.Name]; ok {
		c.JSON(http.StatusConflict, gin.H{"error": "point already exists"})
		return
	}

	attrs := req.Attributes
	if attrs == nil {
		attrs = make(map[string]any)
	}

	point := &storedPoint{
		webID:      uuid.New().String(),
		name:       req.Name,
		attributes: attrs,
	}
	s.pointsByWebID[point.webID] = point
	s.webIDByName[point.name] = point.webID

	c.JSON(http.StatusCreated, archive.Point{WebID: point.webID, Name: point.name})
}

func (s *Server) handleSaveAttributes(c *gin.Context) {
	var req struct {
		Attributes map[string]any `json:"attributes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	point, ok := s.pointsByWebID[c.Param("webId")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "point not found"})
		return
	}

	for k, v := range req.Attributes {
		point.attributes[k] = v
	}

	c.Status(http.StatusOK)
}

func (s *Server) handleDeletePoint(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	point, ok := s.pointsByWebID[c.Param("webId")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "point not found"})
		return
	}

	delete(s.pointsByWebID, point.webID)
	delete(s.webIDByName, point.name)

	c.Status(http.StatusNoContent)
}

func (s *Server) handleRecordedValues(c *gin.Context) {
	count, err := strconv.Atoi(c.DefaultQuery("count", "1"))
	if err != nil || count < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "count must be a positive integer"})
		return
	}
	order := strings.ToLower(c.DefaultQuery("order", "descending"))

	s.mu.RLock()
	defer s.mu.RUnlock()

	point, ok := s.pointsByWebID[c.Param("webId")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "point not found"})
		return
	}

	items := make([]archive.Value, len(point.values))
	copy(items, point.values)
	if order == "descending" {
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
	}
	if len(items) > count {
		items = items[:count]
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) handleWriteValue(c *gin.Context) {
	var value archive.Value
	if err := c.ShouldBindJSON(&value); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if value.Timestamp.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp must not be zero"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	point, ok := s.pointsByWebID[c.Param("webId")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "point not found"})
		return
	}

	// Insert keeping the series ordered by timestamp, oldest first.
	point.values = append(point.values, value)
	sort.SliceStable(point.values, func(i, j int) bool {
		return point.values[i].Timestamp.Before(point.values[j].Timestamp)
	})

	c.Status(http.StatusAccepted)
}

// getAvailablePort asks the kernel for a free TCP port.
func getAvailablePort() int {
	l, err := net.Listen("tcp", ":0")
	if err != nil {
		panic(fmt.Sprintf("failed to find a free port: %v", err))
	}
	defer l.Close()

	return l.Addr().(*net.TCPAddr).Port
}
