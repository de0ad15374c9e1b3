package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures the full runtime configuration for the AudioFlow service.
type Config struct {
	App     AppConfig
	HTTP    HTTPConfig
	Kafka   KafkaConfig
	Storage StorageConfig
	Tracing TracingConfig
	Upload  UploadConfig
	Tools   ToolsConfig
}

type AppConfig struct {
	Name        string `env:"APP_NAME" envDefault:"audioflow"`
	Environment string `env:"APP_ENV" envDefault:"development"`
	Version     string `env:"APP_VERSION" envDefault:"0.1.0"`
	LogLevel    string `env:"APP_LOG_LEVEL" envDefault:"info"`
}

type HTTPConfig struct {
	Addr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5m"`
	IdleTimeout time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
}

type KafkaConfig struct {
	Brokers          []string      `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	MediaTopic       string        `env:"KAFKA_MEDIA_TOPIC" envDefault:"media"`
	PodcastTopic     string        `env:"KAFKA_PODCAST_TOPIC" envDefault:"podcast"`
	GroupID          string        `env:"KAFKA_GROUP_ID" envDefault:"audioflow"`
	SendTimeout      time.Duration `env:"KAFKA_SEND_TIMEOUT" envDefault:"5s"`
	Retries          int           `env:"KAFKA_RETRIES" envDefault:"3"`
	CompressionCodec string        `env:"KAFKA_COMPRESSION_CODEC" envDefault:"snappy"`
	BatchTimeout     time.Duration `env:"KAFKA_BATCH_TIMEOUT" envDefault:"50ms"`
}

type StorageConfig struct {
	Provider  string `env:"STORAGE_PROVIDER" envDefault:"minio"`
	Endpoint  string `env:"STORAGE_ENDPOINT" envDefault:"localhost:9000"`
	Region    string `env:"STORAGE_REGION" envDefault:"us-east-1"`
	AccessKey string `env:"STORAGE_ACCESS_KEY" envDefault:"minioadmin"`
	SecretKey string `env:"STORAGE_SECRET_KEY" envDefault:"minioadmin"`
	UseSSL    bool   `env:"STORAGE_USE_SSL" envDefault:"false"`
	FSRoot    string `env:"STORAGE_FS_ROOT" envDefault:""`
	HLSBucket string `env:"STORAGE_HLS_BUCKET" envDefault:"audio-hls"`
}

type TracingConfig struct {
	Endpoint     string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	Insecure     bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	SampleRatio  float64 `env:"OTEL_TRACES_SAMPLER_RATIO" envDefault:"1.0"`
	ResourceAttr string  `env:"OTEL_RESOURCE_ATTRIBUTES" envDefault:"service.namespace=audioflow"`
}

type UploadConfig struct {
	MaxSizeBytes int64 `env:"UPLOAD_MAX_SIZE_BYTES" envDefault:"52428800"`
}

type ToolsConfig struct {
	FFmpegPath       string        `env:"TOOLS_FFMPEG_PATH" envDefault:"ffmpeg"`
	FFprobePath      string        `env:"TOOLS_FFPROBE_PATH" envDefault:"ffprobe"`
	ProbeTimeout     time.Duration `env:"TOOLS_PROBE_TIMEOUT" envDefault:"30s"`
	DecodeTimeout    time.Duration `env:"TOOLS_DECODE_TIMEOUT" envDefault:"2m"`
	TranscodeTimeout time.Duration `env:"TOOLS_TRANSCODE_TIMEOUT" envDefault:"5m"`
	MaxConcurrent    int           `env:"TOOLS_MAX_CONCURRENT" envDefault:"4"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
