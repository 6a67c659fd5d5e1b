package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const DefaultSourceURL = "https://opendata.ecdc.europa.eu/covid19/nationalcasedeath_eueea_daily_ei/csv/data.csv"

type Config struct {
	// Source
	SourceURL       string        // dataset probed and downloaded each run
	ProbeTimeout    time.Duration // bound on the HEAD availability probe
	DownloadTimeout time.Duration // bound on the full CSV download
	RetryAttempts   int           // how many times to retry the probe
	RetryBackoff    time.Duration // backoff between probe retries

	// Storage
	DataDir             string // raw csv + archive, e.g. /mnt/my_storage
	ExportDir           string // flat csv outputs
	TableName           string // raw table; its history is the watermark
	LatestFiveDaysTable string
	TotalCasesTable     string
	DatabaseURL         string // empty means use the in-memory store

	// Ops
	LogDir          string
	LogLevel        string
	Addr            string   // status API bind address (refreshd only)
	APIKeys         []string // read access to the status API; empty disables auth
	APIAdminKeys    []string // may trigger passes over the API
	AllowedOrigins  []string // CORS; empty allows any origin
	APIRatePerMin   int
	RunInterval     time.Duration // refreshd pass interval; 0 disables the loop
	SlackWebhook    string
	AlertOnRecovery bool

	// Optional fan-out after a completed run
	NATSURL     string
	NATSSubject string
	S3Bucket    string
	S3Key       string
	S3Region    string
	S3Endpoint  string // custom endpoint (MinIO); enables path-style addressing
}

var defaults = map[string]any{
	"SOURCE_URL":             DefaultSourceURL,
	"PROBE_TIMEOUT":          "60s",
	"DOWNLOAD_TIMEOUT":       "5m",
	"RETRY_ATTEMPTS":         2,
	"RETRY_BACKOFF_MS":       300,
	"DATA_DIR":               "data",
	"EXPORT_DIR":             filepath.Join("data", "export"),
	"TABLE_NAME":             "covid",
	"LATEST_FIVE_DAYS_TABLE": "covid_latest_five_days",
	"TOTAL_CASES_TABLE":      "covid_total_cases",
	"DATABASE_URL":           "",
	"LOG_DIR":                "logs",
	"LOG_LEVEL":              "info",
	"API_ADDR":               "127.0.0.1:8080",
	"API_KEYS":               "",
	"API_ADMIN_KEYS":         "",
	"ALLOWED_ORIGINS":        "",
	"API_RPM":                120,
	"RUN_INTERVAL":           "1h",
	"SLACK_WEBHOOK":          "",
	"ALERT_ON_RECOVERY":      true,
	"NATS_URL":               "",
	"NATS_SUBJECT":           "covid.refresh.completed",
	"S3_BUCKET":              "",
	"S3_KEY":                 "covid/covid.zip",
	"S3_REGION":              "us-east-1",
	"S3_ENDPOINT":            "",
}

// FromEnv reads the configuration from environment variables, optionally
// layered over a config file named by REFRESH_CONFIG. Environment wins.
// Malformed numbers and durations fall back to their defaults.
func FromEnv() (Config, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.AutomaticEnv()

	if path := strings.TrimSpace(v.GetString("REFRESH_CONFIG")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		SourceURL:       strings.TrimSpace(v.GetString("SOURCE_URL")),
		ProbeTimeout:    durationOr(v, "PROBE_TIMEOUT", 60*time.Second),
		DownloadTimeout: durationOr(v, "DOWNLOAD_TIMEOUT", 5*time.Minute),
		RetryAttempts:   intOr(v, "RETRY_ATTEMPTS", 2, 1),
		RetryBackoff:    time.Duration(intOr(v, "RETRY_BACKOFF_MS", 300, 0)) * time.Millisecond,

		DataDir:             v.GetString("DATA_DIR"),
		ExportDir:           v.GetString("EXPORT_DIR"),
		TableName:           v.GetString("TABLE_NAME"),
		LatestFiveDaysTable: v.GetString("LATEST_FIVE_DAYS_TABLE"),
		TotalCasesTable:     v.GetString("TOTAL_CASES_TABLE"),
		DatabaseURL:         v.GetString("DATABASE_URL"),

		LogDir:          v.GetString("LOG_DIR"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		Addr:            v.GetString("API_ADDR"),
		APIKeys:         splitList(v.GetString("API_KEYS")),
		APIAdminKeys:    splitList(v.GetString("API_ADMIN_KEYS")),
		AllowedOrigins:  splitList(v.GetString("ALLOWED_ORIGINS")),
		APIRatePerMin:   intOr(v, "API_RPM", 120, 0),
		RunInterval:     durationOr(v, "RUN_INTERVAL", time.Hour),
		SlackWebhook:    v.GetString("SLACK_WEBHOOK"),
		AlertOnRecovery: v.GetBool("ALERT_ON_RECOVERY"),

		NATSURL:     v.GetString("NATS_URL"),
		NATSSubject: v.GetString("NATS_SUBJECT"),
		S3Bucket:    v.GetString("S3_BUCKET"),
		S3Key:       v.GetString("S3_KEY"),
		S3Region:    v.GetString("S3_REGION"),
		S3Endpoint:  v.GetString("S3_ENDPOINT"),
	}
	return cfg, nil
}

func (c Config) RawCSVPath() string  { return filepath.Join(c.DataDir, c.TableName+".csv") }
func (c Config) ArchivePath() string { return filepath.Join(c.DataDir, c.TableName+".zip") }

func (c Config) LatestFiveDaysCSV() string {
	return filepath.Join(c.ExportDir, c.LatestFiveDaysTable+".csv")
}

func (c Config) TotalCasesCSV() string {
	return filepath.Join(c.ExportDir, c.TotalCasesTable+".csv")
}

func durationOr(v *viper.Viper, key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return def
	}
	return d
}

func intOr(v *viper.Viper, key string, def, min int) int {
	raw := strings.TrimSpace(v.GetString(key))
	n, err := strconv.Atoi(raw)
	if err != nil || n < min {
		return def
	}
	return n
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
