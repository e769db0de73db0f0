package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agenthands/neobatch/internal/core"
	"github.com/agenthands/neobatch/internal/core/model"
)

// Server exposes the writer over HTTP so producers that cannot link the
// package can still stream entities into it.
type Server struct {
	Writer *core.Writer
	Logger *zap.Logger
}

func NewServer(w *core.Writer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{Writer: w, Logger: logger}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/entities", s.AddEntities)
	r.POST("/flush", s.Flush)
	r.POST("/indexes", s.CreateIndexes)
	r.GET("/status", s.Status)
	r.GET("/metrics", gin.WrapH(s.Writer.Metrics.Handler()))

	return r
}

// AddEntities accepts one JSON entity or an array of them and writes them
// in order. A flush triggered on the way is part of the request.
func (s *Server) AddEntities(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	entities, err := model.DecodeEntities(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	accepted := 0
	for _, e := range entities {
		err := s.Writer.Write(c.Request.Context(), e)
		if errors.Is(err, core.ErrClosed) || errors.Is(err, core.ErrQueueFull) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "accepted": accepted})
			return
		}
		accepted++
		if err != nil {
			s.Logger.Error("write failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "accepted": accepted})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"accepted": accepted, "buffered": s.Writer.Status().Buffered})
}

func (s *Server) Flush(c *gin.Context) {
	if err := s.Writer.Flush(c.Request.Context()); err != nil {
		s.Logger.Error("flush failed", zap.Error(err))
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.Writer.Status())
}

func (s *Server) CreateIndexes(c *gin.Context) {
	var specs []model.IndexSpec
	if err := c.ShouldBindJSON(&specs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := s.Writer.CreateIndexes(c.Request.Context(), specs); err != nil {
		s.Logger.Error("index setup failed", zap.Error(err))
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "indexes": len(specs)})
}

func (s *Server) Status(c *gin.Context) {
	c.JSON(http.StatusOK, s.Writer.Status())
}

func statusFor(err error) int {
	if errors.Is(err, core.ErrClosed) || errors.Is(err, core.ErrQueueFull) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
