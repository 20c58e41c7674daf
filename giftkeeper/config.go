package giftkeeper

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/disgoorg/snowflake/v2"
	"github.com/giftkeeper/giftkeeper/giftkeeper/storage"
	"github.com/pelletier/go-toml/v2"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	cfg := Config{
		Log:     LogConfig{Level: slog.LevelInfo},
		Storage: StorageConfig{Driver: "json", Path: "./gifts.json"},
		Steam:   SteamConfig{RefreshHours: 24},
	}
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Config struct {
	Log     LogConfig        `toml:"log"`
	Bot     BotConfig        `toml:"bot"`
	Storage StorageConfig    `toml:"storage"`
	DB      storage.DBConfig `toml:"db"`
	Steam   SteamConfig      `toml:"steam"`
	Backup  BackupConfig     `toml:"backup"`
}

type BotConfig struct {
	DevGuilds []snowflake.ID `toml:"dev_guilds"`
	Token     string         `toml:"token"`
}

type LogConfig struct {
	Level slog.Level `toml:"level"`
}

// StorageConfig selects the persistence backend: "json" keeps the pool in a
// local file, "postgres" in the configured database.
type StorageConfig struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
}

type SteamConfig struct {
	RefreshHours int `toml:"refresh_hours"`
}

// BackupConfig enables snapshot uploads of the gift pool to an S3-compatible
// bucket after every save. Disabled when the bucket is empty.
type BackupConfig struct {
	Key    string `toml:"key"`
	Secret string `toml:"secret"`
	Region string `toml:"region"`
	Bucket string `toml:"bucket"`
	Prefix string `toml:"prefix"`
}
