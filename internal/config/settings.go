package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Settings holds the tunables read from config.yaml and DENTALTRACKER_* env vars.
type Settings struct {
	FFmpeg   FFmpegSettings
	Logging  LoggingSettings
	Tracker  TrackerSettings
	Schedule ScheduleSettings
	Storage  StorageSettings
}

type FFmpegSettings struct {
	Binary          string
	InputFrameRate  int
	OutputFrameRate int
	Codec           string
	PixelFormat     string
}

type LoggingSettings struct {
	Level string
}

type TrackerSettings struct {
	MessageTTL time.Duration
}

type ScheduleSettings struct {
	Cron string
}

// StorageSettings configures the optional S3-compatible bucket that finished
// timelapses can be published to. An empty Endpoint disables publishing.
type StorageSettings struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

// Load reads settings from the data directory and the environment. A missing
// config file is not an error.
func Load() (*Settings, error) {
	v := viper.New()
	v.SetConfigFile(GetConfigFile())
	v.SetConfigType("yaml")
	v.SetEnvPrefix("DENTALTRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	var cfg Settings
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ffmpeg.binary", "ffmpeg")
	v.SetDefault("ffmpeg.inputframerate", 2)
	v.SetDefault("ffmpeg.outputframerate", 30)
	v.SetDefault("ffmpeg.codec", "libx264")
	v.SetDefault("ffmpeg.pixelformat", "yuv420p")

	v.SetDefault("logging.level", "info")

	v.SetDefault("tracker.messagettl", "3s")

	v.SetDefault("schedule.cron", "0 0 9 * * 0")

	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.accesskey", "")
	v.SetDefault("storage.secretkey", "")
	v.SetDefault("storage.bucket", "dentaltracker")
	v.SetDefault("storage.usessl", true)
	v.SetDefault("storage.region", "")
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
