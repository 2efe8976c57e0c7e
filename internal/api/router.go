package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LJTian/TariffHub/internal/storage"
)

// SnapshotSource 提供最近一次快照与各数据源状态
type SnapshotSource interface {
	LatestSnapshot(ctx context.Context) ([]byte, error)
	ListFeedStatus(ctx context.Context) ([]storage.FeedStatus, error)
	ListChannels(ctx context.Context) ([]storage.Channel, error)
}

type Server struct {
	source  SnapshotSource
	metrics http.Handler
}

func NewServer(source SnapshotSource, metrics http.Handler) *Server {
	return &Server{source: source, metrics: metrics}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/snapshot", s.snapshot)
		v1.GET("/feeds", s.listFeeds)
		v1.GET("/channels", s.listChannels)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// snapshot 原样返回已序列化的快照，保证与文件输出逐字节一致
func (s *Server) snapshot(c *gin.Context) {
	data, err := s.source.LatestSnapshot(c.Request.Context())
	if errors.Is(err, storage.ErrNoSnapshot) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "not_found",
			"message": "no snapshot has been generated yet",
		})
		return
	}
	if err != nil {
		internalError(c)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

func (s *Server) listFeeds(c *gin.Context) {
	list, err := s.source.ListFeedStatus(c.Request.Context())
	if err != nil {
		internalError(c)
		return
	}
	if group := c.Query("group"); group != "" {
		filtered := list[:0:0]
		for _, st := range list {
			if st.Group == group {
				filtered = append(filtered, st)
			}
		}
		list = filtered
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    list,
	})
}

func (s *Server) listChannels(c *gin.Context) {
	list, err := s.source.ListChannels(c.Request.Context())
	if err != nil {
		internalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    list,
	})
}

func internalError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    "internal_error",
		"message": "internal server error",
	})
}
