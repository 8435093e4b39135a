package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	autoapprovaldomain "github.com/subvisor/subvisor/internal/autoapproval/domain"
	"github.com/subvisor/subvisor/internal/config"
	integritydomain "github.com/subvisor/subvisor/internal/integrity/domain"
	notificationdomain "github.com/subvisor/subvisor/internal/notification/domain"
	"github.com/subvisor/subvisor/internal/observability/metrics"
	"github.com/subvisor/subvisor/internal/observability/tracing"
	subscriptiondomain "github.com/subvisor/subvisor/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(tracing.GinMiddleware())
	r.Use(RequestLogMiddleware(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))

	return r
}

type EngineParams struct {
	fx.In

	Log     *zap.Logger
	Metrics *metrics.Metrics
}

func registerGin(p EngineParams) *gin.Engine {
	return NewEngine(p.Log, p.Metrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	subscriptionSvc subscriptiondomain.Service
	autoApprovalSvc autoapprovaldomain.Service
	notificationSvc notificationdomain.Service
	integritySvc    integritydomain.Service
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	SubscriptionSvc subscriptiondomain.Service
	AutoApprovalSvc autoapprovaldomain.Service
	NotificationSvc notificationdomain.Service
	IntegritySvc    integritydomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		subscriptionSvc: p.SubscriptionSvc,
		autoApprovalSvc: p.AutoApprovalSvc,
		notificationSvc: p.NotificationSvc,
		integritySvc:    p.IntegritySvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1", AdminActorMiddleware())

	subscriptions := v1.Group("/subscriptions")
	{
		subscriptions.POST("", s.CreateSubscription)
		subscriptions.GET("/pending", s.ListPendingApprovals)
		subscriptions.GET("/:id", s.GetSubscriptionByID)
		subscriptions.GET("/:id/history", s.GetApprovalHistory)
		subscriptions.POST("/:id/approve", s.ApproveSubscription)
		subscriptions.POST("/:id/reject", s.RejectSubscription)
		subscriptions.POST("/:id/suspend", s.SuspendSubscription)
		subscriptions.POST("/:id/terminate", s.TerminateSubscription)
		subscriptions.POST("/:id/reactivate", s.ReactivateSubscription)
	}

	autoApproval := v1.Group("/auto-approval")
	{
		autoApproval.POST("/preview", s.PreviewAutoApproval)
		autoApproval.GET("/rules/:id", s.GetAutoApprovalRule)
		autoApproval.GET("/settings", s.GetAutoApprovalSettings)
		autoApproval.PUT("/settings", s.UpdateAutoApprovalSettings)
	}

	notifications := v1.Group("/notifications")
	{
		notifications.POST("/read", s.MarkNotificationsRead)
	}

	integrity := v1.Group("/integrity")
	{
		integrity.GET("/report", s.GetIntegrityReport)
		integrity.POST("/recover", s.RunIntegrityRecovery)
		integrity.POST("/cleanup", s.RunOrphanCleanup)
		integrity.GET("/schedule", s.GetIntegritySchedule)
		integrity.PUT("/schedule", s.UpdateIntegritySchedule)
	}
}
