package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Default bucket names. Bucket identities are fixed configuration and never
// taken from a job payload.
const (
	DefaultRawBucket       = "320-raw-videos"
	DefaultProcessedBucket = "320-processed-videos"
)

// Load seeds the process environment from the given .env files.
// Variables already present in the environment win. Missing files are not an
// error: the worker runs fine on plain environment variables.
func Load(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// GetPort returns the HTTP listening port.
// Priority: PORT environment variable > 3000
func GetPort() string {
	return getEnv("PORT", "3000")
}

// GetDataDir returns the directory holding the outcome journals.
// Checked at call time so tests can point it elsewhere.
func GetDataDir() string {
	return getEnv("VIDPROC_DATA_DIR", "./data")
}

// GetFailuresDBPath returns the full path to the failures journal.
// Path: {DATA_DIR}/failures.db
func GetFailuresDBPath() string {
	return filepath.Join(GetDataDir(), "failures.db")
}

// GetSuccessDBPath returns the full path to the success journal.
// Path: {DATA_DIR}/success.db
func GetSuccessDBPath() string {
	return filepath.Join(GetDataDir(), "success.db")
}

// GetRawVideoDir is the scratch directory raw downloads are staged in.
func GetRawVideoDir() string {
	return getEnv("RAW_VIDEO_DIR", "./raw-videos")
}

// GetProcessedVideoDir is the scratch directory transcoder output is staged in.
func GetProcessedVideoDir() string {
	return getEnv("PROCESSED_VIDEO_DIR", "./processed-videos")
}

func GetRawBucket() string {
	return getEnv("RAW_VIDEO_BUCKET", DefaultRawBucket)
}

func GetProcessedBucket() string {
	return getEnv("PROCESSED_VIDEO_BUCKET", DefaultProcessedBucket)
}

// GetStorageBackend selects the object gateway: gcs, s3, sftp or local.
func GetStorageBackend() string {
	return getEnv("STORAGE_BACKEND", "gcs")
}

// GetLocalBucketRoot is the directory that holds one sub-directory per bucket
// when the local backend is selected.
func GetLocalBucketRoot() string {
	return getEnv("LOCAL_BUCKET_ROOT", "./buckets")
}

// GetGCSCredentialsFile returns a service account key path, or "" to use
// application default credentials.
func GetGCSCredentialsFile() string {
	return os.Getenv("GCS_CREDENTIALS_FILE")
}

// S3Settings groups the S3 backend configuration.
type S3Settings struct {
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string // optional, for S3 compatible stores
	PathStyle bool
}

func GetS3Settings() S3Settings {
	return S3Settings{
		Region:    getEnv("AWS_REGION", "us-east-1"),
		AccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		Endpoint:  os.Getenv("S3_ENDPOINT"),
		PathStyle: os.Getenv("S3_PATH_STYLE") == "true",
	}
}

// SFTPSettings groups the SFTP backend configuration.
type SFTPSettings struct {
	Host       string
	Port       string
	User       string
	Password   string
	PrivateKey string // base64 or raw PEM
}

func GetSFTPSettings() SFTPSettings {
	return SFTPSettings{
		Host:       os.Getenv("SFTP_HOST"),
		Port:       getEnv("SFTP_PORT", "22"),
		User:       os.Getenv("SFTP_USER"),
		Password:   os.Getenv("SFTP_PASSWORD"),
		PrivateKey: os.Getenv("SFTP_PRIVATE_KEY"),
	}
}

// GetTranscodeEngine names the registered engine used for every job.
func GetTranscodeEngine() string {
	return getEnv("TRANSCODE_ENGINE", "ffmpeg")
}

func GetFFmpegBin() string {
	return getEnv("FFMPEG_BIN", "ffmpeg")
}

// GetRedisAddr returns the Redis address of the job queue, "" disables the consumer.
func GetRedisAddr() string {
	return os.Getenv("REDIS_ADDR")
}

func GetRedisQueue() string {
	return getEnv("REDIS_QUEUE", "video-jobs")
}

// GetQueueConcurrency bounds how many queued jobs run at once.
func GetQueueConcurrency() int {
	n := getEnvInt("QUEUE_CONCURRENCY", 2)
	if n < 1 {
		return 1
	}
	return n
}

func GetLogLevel() string {
	return getEnv("LOG_LEVEL", "info")
}

// GetLogFile returns an optional log file path; console logging is always on.
func GetLogFile() string {
	return os.Getenv("LOG_FILE")
}
