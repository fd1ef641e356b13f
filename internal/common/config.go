package common

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Store backends
const (
	BackendSQLite    = "sqlite"
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
)

// Config holds all application configuration
type Config struct {
	Store   StoreConfig
	Server  ServerConfig
	OCR     OCRConfig
	Extract ExtractConfig
	Log     LogConfig
}

// StoreConfig holds document store configuration
type StoreConfig struct {
	Backend          string
	DSN              string
	SQLitePath       string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration

	FirestoreProject    string
	FirestoreCollection string

	// Originals are archived to GCS when BlobBucket is set, else to BlobDir when set.
	BlobBucket string
	BlobDir    string
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr  string
	RateLimit float64
	RateBurst int
	// IntakeRoots are the directories ProcessFile may read from; none disables it.
	IntakeRoots []string
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	HeicConverter    string
	TessdataDir      string
	ArtifactCacheDir string
	Language         string
	PageWorkers      int
	MaxPages         int
	Timeout          time.Duration
}

// ExtractConfig holds field extraction configuration
type ExtractConfig struct {
	PreClean         bool
	ReviewConfidence float64
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Format string
}

var defaults = map[string]any{
	"store_backend":             BackendSQLite,
	"db_url":                    "",
	"sqlite_path":               "./docintake.db",
	"db_max_conns":              20,
	"db_min_conns":              5,
	"db_max_conn_lifetime":      30 * time.Minute,
	"db_max_conn_idle_time":     5 * time.Minute,
	"db_dial_timeout":           3 * time.Second,
	"db_statement_timeout":      time.Duration(0),
	"firestore_project":         "",
	"firestore_collection":      "documents",
	"gcs_bucket":                "",
	"blob_dir":                  "",
	"grpc_addr":                 ":8080",
	"grpc_rate_limit":           20.0,
	"grpc_rate_burst":           40,
	"intake_roots":              "",
	"heic_converter":            "magick",
	"tessdata_prefix":           "",
	"artifact_cache_dir":        "./tmp",
	"ocr_language":              "eng",
	"ocr_page_workers":          4,
	"ocr_max_pages":             5,
	"ocr_timeout":               2 * time.Minute,
	"extract_preclean":          true,
	"extract_review_confidence": 0.6,
	"log_level":                 "info",
	"log_format":                "json",
}

// NewViper returns a viper instance reading the environment with defaults applied.
func NewViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	return v
}

// BindFlags defines the shared command line flags on fs and binds them to v.
// Flags override environment variables.
func BindFlags(fs *pflag.FlagSet, v *viper.Viper) {
	fs.String("store", v.GetString("store_backend"), "document store backend: sqlite, postgres or firestore")
	fs.String("db-url", v.GetString("db_url"), "postgres connection string")
	fs.String("sqlite-path", v.GetString("sqlite_path"), "sqlite database file (use :memory: for in-memory)")
	fs.String("grpc-addr", v.GetString("grpc_addr"), "gRPC listen address")
	fs.String("intake-roots", v.GetString("intake_roots"), "directories remote callers may process files from, separated by the OS path list separator")
	fs.String("log-level", v.GetString("log_level"), "log level (debug, info, warn, error)")
	fs.String("log-format", v.GetString("log_format"), "log format (json, text)")
	fs.Bool("preclean", v.GetBool("extract_preclean"), "clean OCR text before field extraction")

	_ = v.BindPFlag("store_backend", fs.Lookup("store"))
	_ = v.BindPFlag("db_url", fs.Lookup("db-url"))
	_ = v.BindPFlag("sqlite_path", fs.Lookup("sqlite-path"))
	_ = v.BindPFlag("grpc_addr", fs.Lookup("grpc-addr"))
	_ = v.BindPFlag("intake_roots", fs.Lookup("intake-roots"))
	_ = v.BindPFlag("log_level", fs.Lookup("log-level"))
	_ = v.BindPFlag("log_format", fs.Lookup("log-format"))
	_ = v.BindPFlag("extract_preclean", fs.Lookup("preclean"))
}

// LoadConfigFrom populates a Config from v.
func LoadConfigFrom(v *viper.Viper) *Config {
	return &Config{
		Store: StoreConfig{
			Backend:             strings.ToLower(v.GetString("store_backend")),
			DSN:                 v.GetString("db_url"),
			SQLitePath:          v.GetString("sqlite_path"),
			MaxConns:            v.GetInt32("db_max_conns"),
			MinConns:            v.GetInt32("db_min_conns"),
			MaxConnLifetime:     v.GetDuration("db_max_conn_lifetime"),
			MaxConnIdleTime:     v.GetDuration("db_max_conn_idle_time"),
			DialTimeout:         v.GetDuration("db_dial_timeout"),
			StatementTimeout:    v.GetDuration("db_statement_timeout"),
			FirestoreProject:    v.GetString("firestore_project"),
			FirestoreCollection: v.GetString("firestore_collection"),
			BlobBucket:          v.GetString("gcs_bucket"),
			BlobDir:             v.GetString("blob_dir"),
		},
		Server: ServerConfig{
			GRPCAddr:    v.GetString("grpc_addr"),
			RateLimit:   v.GetFloat64("grpc_rate_limit"),
			RateBurst:   v.GetInt("grpc_rate_burst"),
			IntakeRoots: splitRoots(v.GetString("intake_roots")),
		},
		OCR: OCRConfig{
			HeicConverter:    v.GetString("heic_converter"),
			TessdataDir:      v.GetString("tessdata_prefix"),
			ArtifactCacheDir: v.GetString("artifact_cache_dir"),
			Language:         v.GetString("ocr_language"),
			PageWorkers:      v.GetInt("ocr_page_workers"),
			MaxPages:         v.GetInt("ocr_max_pages"),
			Timeout:          v.GetDuration("ocr_timeout"),
		},
		Extract: ExtractConfig{
			PreClean:         v.GetBool("extract_preclean"),
			ReviewConfidence: v.GetFloat64("extract_review_confidence"),
		},
		Log: LogConfig{
			Level:  v.GetString("log_level"),
			Format: v.GetString("log_format"),
		},
	}
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			return NewAppError("CONFIG_ERROR", "SQLITE_PATH is required for the sqlite store", ErrInvalidInput)
		}
	case BackendPostgres:
		if c.Store.DSN == "" {
			return NewAppError("CONFIG_ERROR", "DB_URL is required for the postgres store", ErrInvalidInput)
		}
	case BackendFirestore:
		if c.Store.FirestoreProject == "" {
			return NewAppError("CONFIG_ERROR", "FIRESTORE_PROJECT is required for the firestore store", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", "STORE_BACKEND must be sqlite, postgres or firestore", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	if c.OCR.PageWorkers < 1 {
		return NewAppError("CONFIG_ERROR", "OCR_PAGE_WORKERS must be at least 1", ErrInvalidInput)
	}
	if c.Extract.ReviewConfidence < 0 || c.Extract.ReviewConfidence > 1 {
		return NewAppError("CONFIG_ERROR", "EXTRACT_REVIEW_CONFIDENCE must be within [0,1]", ErrInvalidInput)
	}
	v := NewValidator().
		Field("LOG_FORMAT", strings.ToLower(c.Log.Format), OneOf("", "json", "text")).
		Field("LOG_LEVEL", strings.ToLower(c.Log.Level), OneOf("", "debug", "info", "warn", "warning", "error"))
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}

func splitRoots(s string) []string {
	var roots []string
	for _, r := range filepath.SplitList(s) {
		if r = strings.TrimSpace(r); r != "" {
			roots = append(roots, r)
		}
	}
	return roots
}
