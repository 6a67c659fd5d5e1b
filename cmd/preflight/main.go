// cmd/preflight/main.go
package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/hamed0406/covidrefresh/internal/config"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg, err := config.FromEnv()
	if err != nil {
		fail("config: " + err.Error())
	}

	u, err := url.Parse(cfg.SourceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		fail("SOURCE_URL is not an http(s) URL: " + cfg.SourceURL)
	}
	ok("SOURCE_URL=" + cfg.SourceURL)

	if cfg.TableName == "" || cfg.LatestFiveDaysTable == "" || cfg.TotalCasesTable == "" {
		fail("TABLE_NAME, LATEST_FIVE_DAYS_TABLE and TOTAL_CASES_TABLE must all be set.")
	}
	if cfg.TableName == cfg.LatestFiveDaysTable || cfg.TableName == cfg.TotalCasesTable || cfg.LatestFiveDaysTable == cfg.TotalCasesTable {
		fail("table names must be distinct (the archive is keyed by file name).")
	}

	if fi, err := os.Stat(cfg.DataDir); err != nil {
		warn("DATA_DIR " + cfg.DataDir + " does not exist yet; it will be created on the first run.")
	} else if !fi.IsDir() {
		fail("DATA_DIR " + cfg.DataDir + " is not a directory.")
	} else {
		ok("DATA_DIR=" + cfg.DataDir)
	}

	if cfg.DatabaseURL == "" {
		warn("DATABASE_URL empty: history lives in memory, every restart is a first run.")
	} else {
		ok("DATABASE_URL present")
	}

	// Raw env so spacing mistakes are visible before splitting.
	for _, name := range []string{"API_KEYS", "API_ADMIN_KEYS"} {
		if strings.Contains(strings.TrimSpace(os.Getenv(name)), " ") {
			warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
		}
	}
	if len(cfg.APIKeys) == 0 {
		warn("API_KEYS is empty; read routes are open.")
	}
	if len(cfg.APIAdminKeys) == 0 {
		warn("API_ADMIN_KEYS is empty; anyone reaching the API can trigger POST /api/runs.")
	}
	ok("API_ADDR=" + cfg.Addr)

	if len(cfg.AllowedOrigins) == 0 {
		warn("ALLOWED_ORIGINS empty; any origin may call the API from a browser.")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}

	if cfg.RunInterval == 0 {
		warn("RUN_INTERVAL=0: refreshd will only run when triggered.")
	} else {
		ok("RUN_INTERVAL=" + cfg.RunInterval.String())
	}

	if cfg.S3Bucket != "" {
		ok("S3_BUCKET=" + cfg.S3Bucket + " key=" + cfg.S3Key)
	}
	if cfg.NATSURL != "" {
		ok("NATS_URL present, subject " + cfg.NATSSubject)
	}
	if cfg.SlackWebhook == "" {
		warn("SLACK_WEBHOOK empty: failures are only logged.")
	}

	ok("preflight passed")
}
