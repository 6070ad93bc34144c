package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config carries the environment-derived pipeline settings. Command flags
// may override individual fields.
type Config struct {
	Model        string
	MaxAttempts  int
	Parallel     int
	CancelPolicy string // "partial" or "fail"
	ResultPGDSN  string
	Artifact     ArtifactConfig
}

// ArtifactConfig describes the optional S3/MinIO artifact sink.
type ArtifactConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		Model:        firstNonEmpty(strings.TrimSpace(os.Getenv("IFT_MODEL")), "gemini-2.5-flash"),
		MaxAttempts:  envInt("IFT_MAX_ATTEMPTS", 3),
		Parallel:     envInt("IFT_PARALLEL", 1),
		CancelPolicy: firstNonEmpty(strings.TrimSpace(os.Getenv("IFT_CANCEL_POLICY")), "partial"),
		ResultPGDSN:  strings.TrimSpace(os.Getenv("RESULT_STORE_PG_DSN")),
		Artifact:     loadArtifactConfig(),
	}, nil
}

func loadArtifactConfig() ArtifactConfig {
	endpoint := strings.TrimSpace(os.Getenv("ARTIFACT_S3_ENDPOINT"))
	return ArtifactConfig{
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_BUCKET")), "llm-ift-artifacts"),
		UseSSL:    envBool("ARTIFACT_S3_USE_SSL", false),
	}
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
