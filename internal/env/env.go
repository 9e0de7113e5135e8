package env

import (
	"log"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// actual environment variables
var JWT_SECRET []byte
var DATABASE_URL string
var REDIS_ADDR string
var GITHUB_WEBHOOK_SECRET string
var GITHUB_TOKEN string
var GITHUB_REPO string
var GRAFANA_URL string
var GRAFANA_API_KEY string
var GRAFANA_DASHBOARD_UID string
var OPERATOR_USERNAME string
var OPERATOR_PASSWORD_HASH string
var PREFORK bool

// this is required
var VERSION string

type Config struct {
	Root       string
	AppVersion string
}

func Init(envRoot string, appVersion string) {
	loadEnv(envRoot)
	loadVersion(appVersion)

	PREFORK, _ = strconv.ParseBool(os.Getenv("PREFORK"))
	DATABASE_URL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	REDIS_ADDR = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	JWT_SECRET = []byte(os.Getenv("JWT_SECRET"))
	GITHUB_WEBHOOK_SECRET = strings.TrimSpace(os.Getenv("GITHUB_WEBHOOK_SECRET"))
	GITHUB_TOKEN = strings.TrimSpace(os.Getenv("GITHUB_TOKEN"))
	GITHUB_REPO = strings.TrimSpace(os.Getenv("GITHUB_REPO"))
	GRAFANA_URL = strings.TrimSpace(os.Getenv("GRAFANA_URL"))
	GRAFANA_API_KEY = strings.TrimSpace(os.Getenv("GRAFANA_API_KEY"))
	GRAFANA_DASHBOARD_UID = strings.TrimSpace(os.Getenv("GRAFANA_DASHBOARD_UID"))
	OPERATOR_USERNAME = strings.TrimSpace(os.Getenv("OPERATOR_USERNAME"))
	OPERATOR_PASSWORD_HASH = strings.TrimSpace(os.Getenv("OPERATOR_PASSWORD_HASH"))

	if REDIS_ADDR == "" {
		REDIS_ADDR = "127.0.0.1:6379"
	}
	if GRAFANA_DASHBOARD_UID == "" {
		GRAFANA_DASHBOARD_UID = "dora-metrics"
	}
}

func loadEnv(envRoot string) {
	if envRoot == "" {
		envRoot = repoRoot()
	}

	path := path.Join(envRoot, ".env")
	if err := godotenv.Overload(path); err != nil {
		log.Printf("no env file at %s, relying on process environment", path)
	}
}

func loadVersion(appVersion string) {
	if appVersion == "" {
		data, err := os.ReadFile(filepath.Join(repoRoot(), "VERSION"))
		if err != nil {
			VERSION = "unknown"
			return
		}

		trimmed := strings.TrimSpace(string(data))
		if trimmed != "" {
			VERSION = trimmed
		} else {
			VERSION = "unknown"
		}
	} else {
		VERSION = appVersion
	}
}

func repoRoot() string {
	_, b, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(b), "../..")
}
