package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ledgerloop/revrec/internal/audit"
	"github.com/ledgerloop/revrec/internal/config"
	"github.com/ledgerloop/revrec/internal/contract"
	contractdomain "github.com/ledgerloop/revrec/internal/contract/domain"
	"github.com/ledgerloop/revrec/internal/contractlock"
	"github.com/ledgerloop/revrec/internal/observability"
	obsmiddleware "github.com/ledgerloop/revrec/internal/observability/logger"
	obsmetrics "github.com/ledgerloop/revrec/internal/observability/metrics"
	obstracing "github.com/ledgerloop/revrec/internal/observability/tracing"
	"github.com/ledgerloop/revrec/internal/posting"
	postingdomain "github.com/ledgerloop/revrec/internal/posting/domain"
	"github.com/ledgerloop/revrec/internal/recognition"
	recognitiondomain "github.com/ledgerloop/revrec/internal/recognition/domain"
	"github.com/ledgerloop/revrec/internal/reconciliation"
	reconciliationdomain "github.com/ledgerloop/revrec/internal/reconciliation/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	audit.Module,
	contractlock.Module,
	contract.Module,
	recognition.Module,
	reconciliation.Module,
	posting.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterAPIRoutes() }),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type Server struct {
	engine            *gin.Engine
	cfg               config.Config
	log               *zap.Logger
	contractSvc       contractdomain.Service
	recognitionSvc    recognitiondomain.Service
	reconciliationSvc reconciliationdomain.Service
	postingSvc        postingdomain.Service
}

type ServerParams struct {
	fx.In

	Gin               *gin.Engine
	Cfg               config.Config
	Log               *zap.Logger
	ContractSvc       contractdomain.Service
	RecognitionSvc    recognitiondomain.Service
	ReconciliationSvc reconciliationdomain.Service
	PostingSvc        postingdomain.Service
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:            p.Gin,
		cfg:               p.Cfg,
		log:               p.Log.Named("http.server"),
		contractSvc:       p.ContractSvc,
		recognitionSvc:    p.RecognitionSvc,
		reconciliationSvc: p.ReconciliationSvc,
		postingSvc:        p.PostingSvc,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterAPIRoutes() {
	v1 := s.engine.Group("/v1")
	v1.Use(s.OrgContext())

	contracts := v1.Group("/contracts")
	contracts.POST("", s.CreateContract)
	contracts.GET("", s.ListContracts)
	contracts.GET("/:id", s.GetContract)
	contracts.PATCH("/:id", s.UpdateContract)
	contracts.GET("/:id/schedule", s.ListSchedule)
	contracts.GET("/:id/recognition", s.MonthlyRecognition)
	contracts.POST("/:id/schedule", s.GenerateSchedule)
	contracts.POST("/:id/adjustments/preview", s.PreviewAdjustment)
	contracts.POST("/:id/adjustments", s.ApplyAdjustment)

	entries := v1.Group("/schedule-entries")
	entries.POST("/:id/post", s.MarkEntryPosted)
	entries.POST("/:id/export", s.ExportEntry)

	reconciliation := v1.Group("/reconciliation")
	reconciliation.POST("/runs", s.RunReconciliation)
	reconciliation.GET("/runs", s.ListReconciliationRuns)

	v1.GET("/ledger-accounts", s.ListLedgerAccounts)
}

func RunHTTP(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
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
