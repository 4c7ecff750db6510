package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type Service struct {
	server *http.Server
}

func NewService(svc OracleService, port uint32) *Service {
	return &Service{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			Handler:      NewRouter(svc),
		},
	}
}

// NewRouter returns the routes of the status API.
func NewRouter(svc OracleService) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	h := &handler{svc}
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware())

	v1 := router.Group("/v1")
	v1.GET("/info", h.info)
	v1.GET("/ping", h.ping)
	v1.GET("/tasks", h.tasks)
	v1.GET("/locked/:pwtxid", h.lockedTransaction)

	return router
}

func (s *Service) Start() {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("status api stopped")
		}
	}()
	log.Infof("status api listening on %s", s.server.Addr)
}

func (s *Service) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("failed to stop status api")
		return
	}
	log.Info("status api stopped")
}
