// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// アップロード設定
	UploadDir   string // アップロードファイルの保存先ディレクトリ
	MaxFileSize int64  // 単一ファイルの最大サイズ（バイト）

	// ナラティブ生成（Gemini）設定
	GeminiAPIKey      string // Google Gemini APIキー
	GeminiModel       string // 使用するチャットモデル名
	LLMTimeoutSeconds int    // 外部生成呼び出しのタイムアウト（秒）

	// ジョブ実行設定
	JobTimeoutSeconds int // 1ジョブの実行全体に許容する時間（秒）
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	loadEnvFile()

	config := &Config{
		// サーバー設定
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),

		// CORS設定
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),

		// アップロード設定
		UploadDir:   getEnv("UPLOAD_DIR", filepath.Join(os.TempDir(), "ledger-lens", "uploads")),
		MaxFileSize: getEnvAsInt64("MAX_FILE_SIZE", 52428800), // 50MB

		// ナラティブ生成設定
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		LLMTimeoutSeconds: getEnvAsInt("LLM_TIMEOUT_SECONDS", 60),

		// ジョブ実行設定
		JobTimeoutSeconds: getEnvAsInt("JOB_TIMEOUT_SECONDS", 300),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
// ローカル開発ではAPIキーは任意（未設定ならナラティブ生成は失敗としてジョブに記録される）。
func (c *Config) Validate() error {
	if c.GinMode == "release" {
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required in release mode")
		}
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive")
	}
	if c.LLMTimeoutSeconds <= 0 {
		return fmt.Errorf("LLM_TIMEOUT_SECONDS must be positive")
	}
	if c.JobTimeoutSeconds <= 0 {
		return fmt.Errorf("JOB_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 は環境変数を64ビット整数として取得します。
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
