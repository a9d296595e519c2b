package server

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	StoreRTDB      = "rtdb"
	StoreFirestore = "firestore"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	DatabaseURL   string        `env:"CARCARE_DATABASE_URL"`
	ProjectID     string        `env:"GOOGLE_CLOUD_PROJECT"`
	Store         string        `env:"CARCARE_STORE"            envDefault:"rtdb"`
	LogLevel      string        `env:"CARCARE_LOG_LEVEL"        envDefault:"info"`
	NearbyRadius  float64       `env:"CARCARE_NEARBY_RADIUS_KM" envDefault:"3"`
	GroupCapacity int           `env:"CARCARE_GROUP_CAPACITY"   envDefault:"6"`
	ClickAction   string        `env:"CARCARE_CLICK_ACTION"`
	VoiceBucket   string        `env:"CARCARE_VOICE_BUCKET"`
	SignedURLTTL  time.Duration `env:"CARCARE_SIGNED_URL_TTL"   envDefault:"96h"`
}

// LoadConfig reads the function configuration from the environment.
func LoadConfig() (Config, error) {
	return loadConfig(env.ToMap(os.Environ()))
}

func loadConfig(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case c.Store != StoreRTDB && c.Store != StoreFirestore:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	case c.NearbyRadius <= 0:
		return fmt.Errorf("%w: nearby radius must be positive, got %v", ErrInvalidConfig, c.NearbyRadius)
	case c.GroupCapacity <= 0:
		return fmt.Errorf("%w: group capacity must be positive, got %d", ErrInvalidConfig, c.GroupCapacity)
	case c.VoiceBucket != "" && c.SignedURLTTL <= 0:
		return fmt.Errorf("%w: signed url ttl must be positive, got %v", ErrInvalidConfig, c.SignedURLTTL)
	}
	return nil
}
