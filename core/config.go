package core

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	APIConfig struct {
		BaseURL string
		Timeout time.Duration
		// MockMode serves known endpoints from the mock table before touching the network.
		MockMode bool
		// DBFallback enables the mock table as a second chance after infra failures.
		DBFallback bool

		FailureThreshold int
		Cooldown         time.Duration
		RequestTTL       time.Duration
	}

	UploadConfig struct {
		ChunkSize        int64
		Concurrency      int
		Simulate         bool
		SimulateInterval time.Duration
		DownloadDelay    time.Duration
		DownloadDir      string
	}

	MockServerConfig struct {
		Address            string
		SecretKey          string
		JWTExpirationDelta time.Duration
		DisableReqLogs     bool
	}

	Config struct {
		Env          string // DEV (default), TEST, QA, PROD
		Debug        bool
		TestMode     bool
		AppName      string
		Build        string
		RollbarToken string
		SessionPath  string

		API        APIConfig
		Upload     UploadConfig
		MockServer MockServerConfig
	}
)

// NewConfig reads the configuration from defaults, the optional `config/.env.<env>` file and the environment.
func NewConfig() (*Config, error) {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	env := strings.ToUpper(firstEnv("ENV", "NODE_ENV"))
	switch env {
	case "", "DEVELOPMENT":
		env = "DEV"
	case "PRODUCTION":
		env = "PROD"
	case "TEST":
		v.SetDefault("testMode", true)
	}

	// defaults
	v.SetDefault("debug", env != "PROD")
	v.SetDefault("appName", "Masomo Admin")
	v.SetDefault("build", "dev")
	v.SetDefault("sessionPath", defaultSessionPath())
	v.SetDefault("api.baseURL", "http://localhost:8000")
	v.SetDefault("api.timeout", 15*time.Second)
	v.SetDefault("api.mockMode", true)
	v.SetDefault("api.dbFallback", true)
	v.SetDefault("api.failureThreshold", 3)
	v.SetDefault("api.cooldown", 5*time.Minute)
	v.SetDefault("api.requestTTL", 10*time.Second)
	v.SetDefault("upload.chunkSize", int64(2<<20))
	v.SetDefault("upload.concurrency", 3)
	v.SetDefault("upload.simulate", false)
	v.SetDefault("upload.simulateInterval", 200*time.Millisecond)
	v.SetDefault("upload.downloadDelay", time.Second)
	v.SetDefault("upload.downloadDir", ".")
	v.SetDefault("mockServer.address", ":8000")
	v.SetDefault("mockServer.secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("mockServer.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("mockServer.disableReqLogs", false)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(configDir(), ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "stat %s", dotEnvPath)
	}

	for key, names := range envBindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, errors.Wrapf(err, "binding env for %q", key)
		}
	}

	conf := &Config{
		Env:          env,
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		AppName:      v.GetString("appName"),
		Build:        v.GetString("build"),
		RollbarToken: v.GetString("rollbarToken"),
		SessionPath:  v.GetString("sessionPath"),
		API: APIConfig{
			BaseURL:          strings.TrimRight(v.GetString("api.baseURL"), "/"),
			Timeout:          v.GetDuration("api.timeout"),
			MockMode:         v.GetBool("api.mockMode"),
			DBFallback:       v.GetBool("api.dbFallback"),
			FailureThreshold: v.GetInt("api.failureThreshold"),
			Cooldown:         v.GetDuration("api.cooldown"),
			RequestTTL:       v.GetDuration("api.requestTTL"),
		},
		Upload: UploadConfig{
			ChunkSize:        v.GetInt64("upload.chunkSize"),
			Concurrency:      v.GetInt("upload.concurrency"),
			Simulate:         v.GetBool("upload.simulate"),
			SimulateInterval: v.GetDuration("upload.simulateInterval"),
			DownloadDelay:    v.GetDuration("upload.downloadDelay"),
			DownloadDir:      v.GetString("upload.downloadDir"),
		},
		MockServer: MockServerConfig{
			Address:            v.GetString("mockServer.address"),
			SecretKey:          v.GetString("mockServer.secretKey"),
			JWTExpirationDelta: v.GetDuration("mockServer.jwtExpirationDelta"),
			DisableReqLogs:     v.GetBool("mockServer.disableReqLogs"),
		},
	}
	return conf, nil
}

// envBindings maps config keys to the environment variables that may set them (first one set wins).
var envBindings = map[string][]string{
	"debug":                         {"DEBUG"},
	"build":                         {"BUILD"},
	"rollbarToken":                  {"ROLLBAR_TOKEN"},
	"sessionPath":                   {"SESSION_PATH"},
	"api.baseURL":                   {"API_BASE_URL", "VUE_APP_API_URL"},
	"api.timeout":                   {"API_TIMEOUT"},
	"api.mockMode":                  {"USE_MOCK", "VUE_APP_USE_MOCK"},
	"api.dbFallback":                {"USE_DB_FALLBACK"},
	"api.failureThreshold":          {"API_FAILURE_THRESHOLD"},
	"api.cooldown":                  {"API_COOLDOWN"},
	"api.requestTTL":                {"API_REQUEST_TTL"},
	"upload.chunkSize":              {"UPLOAD_CHUNK_SIZE"},
	"upload.concurrency":            {"UPLOAD_CONCURRENCY"},
	"upload.simulate":               {"UPLOAD_SIMULATE"},
	"upload.simulateInterval":       {"UPLOAD_SIMULATE_INTERVAL"},
	"upload.downloadDelay":          {"DOWNLOAD_DELAY"},
	"upload.downloadDir":            {"DOWNLOAD_DIR"},
	"mockServer.address":            {"MOCKAPI_ADDRESS"},
	"mockServer.secretKey":          {"MOCKAPI_SECRET_KEY", "SECRET_KEY"},
	"mockServer.jwtExpirationDelta": {"MOCKAPI_JWT_EXPIRATION"},
	"mockServer.disableReqLogs":     {"MOCKAPI_DISABLE_REQ_LOGS"},
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if val := strings.TrimSpace(os.Getenv(name)); val != "" {
			return val
		}
	}
	return ""
}

func configDir() string {
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		return dir
	}
	return "config"
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".masomo-session.json"
	}
	return filepath.Join(home, ".masomo", "session.json")
}
