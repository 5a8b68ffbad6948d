// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/ledger-lens/internal/analysis"
	"github.com/yourusername/ledger-lens/internal/config"
	"github.com/yourusername/ledger-lens/internal/jobs"
	"github.com/yourusername/ledger-lens/internal/llm"
	"github.com/yourusername/ledger-lens/internal/storage"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	// CORS許可オリジンを設定（カンマ区切りの文字列を配列に変換）
	corsConfig.AllowOrigins = strings.Split(cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsConfig.ExposeHeaders = []string{"Content-Disposition", "X-Job-Id"}
	router.Use(cors.New(corsConfig))

	logger := log.New(os.Stdout, "", log.LstdFlags)

	svc, err := buildService(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	// ルーティングの設定
	setupRoutes(router, svc)

	// サーバーの起動
	addr := ":" + cfg.Port
	log.Printf("Starting API server on %s (mode: %s)", addr, cfg.GinMode)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// buildService はレジストリ、保存領域、ナラティブ生成クライアントを組み立てます。
// APIキー未設定時は生成なしで起動し、ナラティブは失敗として結果に記録されます。
func buildService(cfg *config.Config, logger *log.Logger) (*analysis.Service, error) {
	registry := jobs.NewRegistry()

	store, err := storage.NewLocal(cfg.UploadDir, cfg.MaxFileSize)
	if err != nil {
		return nil, err
	}

	var synth analysis.Synthesizer
	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGemini(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel,
			time.Duration(cfg.LLMTimeoutSeconds)*time.Second, logger)
		if err != nil {
			return nil, err
		}
		synth = gemini
	} else {
		logger.Printf("GEMINI_API_KEY not set; narrative generation is disabled")
	}

	jobTimeout := time.Duration(cfg.JobTimeoutSeconds) * time.Second
	return analysis.NewService(registry, store, synth, jobTimeout, logger), nil
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "ledger-lens-api",
		"version": "0.1.0",
	})
}

// setupRoutes は API グループの配線を行います。
func setupRoutes(router *gin.Engine, svc *analysis.Service) {
	// まずは誰でも叩けるヘルスチェックを登録
	router.GET("/health", handleHealth)

	api := router.Group("/api")
	{
		analyze := api.Group("/analyze")
		{
			analyze.POST("/upload", analysis.UploadHandler(svc))
			analyze.POST("/file", analysis.SubmitFileHandler(svc))
			analyze.GET("/status/:id", analysis.StatusHandler(svc))
			analyze.GET("/results/:id", analysis.ResultsHandler(svc))
			analyze.GET("/queue", analysis.QueueHandler(svc))
			analyze.GET("/report/:id", analysis.ReportHandler(svc))
			analyze.DELETE("/cleanup", analysis.CleanupAllHandler(svc))
			analyze.DELETE("/cleanup/:id", analysis.CleanupHandler(svc))
		}
	}
}
