package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chaos-io/rembg/config"
	"github.com/chaos-io/rembg/util"
)

const shutdownTimeout = 10 * time.Second

// NewRouter 注册所有路由
func NewRouter(h *Handler, maxUploadSize int64) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(Logger())

	r.GET("/health", h.Health)

	api := r.Group("/api/v1")
	api.Use(BodyLimit(maxUploadSize))
	{
		api.POST("/remove", h.Remove)
		api.POST("/mask", h.Mask)
		api.POST("/heatmap", h.Heatmap)
		api.GET("/results/:id", h.GetResult)
		api.GET("/results/:id/mask", h.GetResultMask)
	}

	return r
}

type Server struct {
	srv *http.Server
}

func New(cfg *config.ServerConfig, h *Handler) *Server {
	gin.SetMode(cfg.Mode)
	return &Server{
		srv: &http.Server{
			Addr:    cfg.Port,
			Handler: NewRouter(h, cfg.MaxUploadSize),
		},
	}
}

// Run 阻塞直到 ctx 取消，然后优雅退出
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		util.Logger.Info("server starting", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	util.Logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
