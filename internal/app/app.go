package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/polyscope/polyscope/internal/analyzer"
	"github.com/polyscope/polyscope/internal/collector"
	"github.com/polyscope/polyscope/internal/retention"
	"github.com/polyscope/polyscope/internal/scheduler"
	"github.com/polyscope/polyscope/internal/scoring"
	"github.com/polyscope/polyscope/internal/storage"
	"github.com/polyscope/polyscope/internal/upstream"
	"github.com/polyscope/polyscope/pkg/cache"
	"github.com/polyscope/polyscope/pkg/config"
	"github.com/polyscope/polyscope/pkg/healthprobe"
	"github.com/polyscope/polyscope/pkg/httpserver"
)

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	store         *storage.Store
	client        *upstream.Client
	marketCache   cache.Cache

	markets  *collector.MarketCollector
	books    *collector.BookCollector
	trades   *collector.TradeCollector
	volume   *collector.VolumeAggregator
	analysis *analyzer.Runner
	scorer   *scoring.Scorer
	sweeper  *retention.Sweeper
	sched    *scheduler.Scheduler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}
