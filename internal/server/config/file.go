package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bily-amin/habitica/internal/flagx"
	"github.com/bily-amin/habitica/internal/timex"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config for file decoding. Durations accept "1m30s" or
// integer nanoseconds; absent keys leave the current value untouched.
type fileConfig struct {
	EndpointAddrGRPC            string         `json:"endpoint_addr_grpc" yaml:"endpoint_addr_grpc"`
	DatabaseDSN                 string         `json:"database_dsn" yaml:"database_dsn"`
	SecretKey                   string         `json:"secret_key" yaml:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration" yaml:"access_token_validity_duration"`
	PublicGroupID               string         `json:"public_group_id" yaml:"public_group_id"`
	S3RootUser                  string         `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password" yaml:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region                    string         `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	ExportURLValidity           timex.Duration `json:"export_url_validity" yaml:"export_url_validity"`
	CleanupWorkers              int            `json:"cleanup_workers" yaml:"cleanup_workers"`
	CleanupQueueSize            int            `json:"cleanup_queue_size" yaml:"cleanup_queue_size"`
	CleanupAttempts             int            `json:"cleanup_attempts" yaml:"cleanup_attempts"`
	CleanupBaseDelay            timex.Duration `json:"cleanup_base_delay" yaml:"cleanup_base_delay"`
	NotifyWebhookURL            string         `json:"notify_webhook_url" yaml:"notify_webhook_url"`
	OTLPEndpoint                string         `json:"otlp_endpoint" yaml:"otlp_endpoint"`
	LogLevel                    string         `json:"log_level" yaml:"log_level"`
}

// parseFile overlays the file given by -c/-config, if any. Files ending in
// .yaml or .yml are decoded as YAML, anything else as JSON.
func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	fc := &fileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc *fileConfig) apply(cfg *Config) {
	setString(&cfg.EndpointAddrGRPC, fc.EndpointAddrGRPC)
	setString(&cfg.DatabaseDSN, fc.DatabaseDSN)
	setString(&cfg.SecretKey, fc.SecretKey)
	setDuration(&cfg.AccessTokenValidityDuration, fc.AccessTokenValidityDuration)
	setString(&cfg.PublicGroupID, fc.PublicGroupID)
	setString(&cfg.S3RootUser, fc.S3RootUser)
	setString(&cfg.S3RootPassword, fc.S3RootPassword)
	setString(&cfg.S3Bucket, fc.S3Bucket)
	setString(&cfg.S3Region, fc.S3Region)
	setString(&cfg.S3BaseEndpoint, fc.S3BaseEndpoint)
	setDuration(&cfg.ExportURLValidity, fc.ExportURLValidity)
	setInt(&cfg.CleanupWorkers, fc.CleanupWorkers)
	setInt(&cfg.CleanupQueueSize, fc.CleanupQueueSize)
	setInt(&cfg.CleanupAttempts, fc.CleanupAttempts)
	setDuration(&cfg.CleanupBaseDelay, fc.CleanupBaseDelay)
	setString(&cfg.NotifyWebhookURL, fc.NotifyWebhookURL)
	setString(&cfg.OTLPEndpoint, fc.OTLPEndpoint)
	setString(&cfg.LogLevel, fc.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
