// Package http 提供HTTP服务器功能
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"attrition/dataset"
	"attrition/db"
	"attrition/ml"
	"attrition/monitoring"

	"go.uber.org/zap"
)

// Server HTTP服务器
type Server struct {
	server *http.Server
	config ServerConfig
	logger *zap.Logger
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port           int
	Timeout        time.Duration
	AllowedOrigins []string
	MaxBodyBytes   int64
	// RequireDataset 预测前必须先上传数据集
	RequireDataset bool
}

// DefaultServerConfig 默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:           8080,
		Timeout:        30 * time.Second,
		AllowedOrigins: []string{"*"},
		MaxBodyBytes:   50 << 20,
		RequireDataset: true,
	}
}

// HistoryStore records served predictions.
type HistoryStore interface {
	SavePrediction(ctx context.Context, record db.PredictionRecord) (db.PredictionRecord, error)
	ListPredictions(ctx context.Context, limit int) ([]db.PredictionRecord, error)
}

// Dependencies 服务器依赖. History may be nil to disable prediction history.
type Dependencies struct {
	Adapter  *ml.Adapter
	Datasets *dataset.Store
	History  HistoryStore
	Metrics  *monitoring.Metrics
	Logger   *zap.Logger
}

// NewServer 创建HTTP服务器
func NewServer(config ServerConfig, deps Dependencies) (*Server, error) {
	if deps.Adapter == nil {
		return nil, errors.New("http: adapter is required")
	}
	if deps.Datasets == nil {
		return nil, errors.New("http: dataset store is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = monitoring.NewMetrics()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	h := &handlers{
		adapter:        deps.Adapter,
		datasets:       deps.Datasets,
		history:        deps.History,
		metrics:        deps.Metrics,
		logger:         deps.Logger,
		form:           ml.DefaultForm(),
		requireDataset: config.RequireDataset,
	}

	mux := http.NewServeMux()

	// 注册所有处理器
	h.register(mux)
	registerStatic(mux)
	mux.Handle("GET /metrics", deps.Metrics.Handler())

	// 创建中间件链
	chain := Chain(
		RecoveryMiddleware(deps.Logger),             // 1. 恢复中间件（最先执行，捕获panic）
		LoggerMiddleware(deps.Logger, deps.Metrics), // 2. 日志中间件
		SecurityHeadersMiddleware,                   // 3. 安全头中间件
		CORSMiddleware(config.AllowedOrigins),       // 4. CORS中间件
		RequestSizeMiddleware(config.MaxBodyBytes),  // 5. 请求大小限制
		TimeoutMiddleware(config.Timeout),           // 6. 超时中间件
	)

	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", config.Port),
			Handler:           chain(mux),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       config.Timeout,
			WriteTimeout:      config.Timeout + 5*time.Second,
			IdleTimeout:       120 * time.Second,
		},
		config: config,
		logger: deps.Logger,
	}, nil
}

// Handler 返回完整的处理器链
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start 启动服务器
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop 停止服务器
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
