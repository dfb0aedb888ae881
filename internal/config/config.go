package config

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/marcus/shopsync/internal/models"
)

// Consent mirrors the platform notification permission states.
type Consent string

const (
	ConsentDefault Consent = "default"
	ConsentGranted Consent = "granted"
	ConsentDenied  Consent = "denied"
)

// ServerConfig holds backend connection settings.
type ServerConfig struct {
	URL string `json:"url,omitempty"`
}

// NotificationsConfig holds push notification settings.
type NotificationsConfig struct {
	VAPIDPublicKey  string  `json:"vapid_public_key,omitempty"`
	VAPIDPrivateKey string  `json:"vapid_private_key,omitempty"`
	Subscriber      string  `json:"subscriber,omitempty"` // contact email for the push service
	Consent         Consent `json:"consent,omitempty"`
}

// ReplayConfig holds queue replay tuning.
type ReplayConfig struct {
	MaxRetries *int   `json:"max_retries,omitempty"` // nil = default 5
	Backoff    string `json:"backoff,omitempty"`     // duration string, default "30s"
	Interval   string `json:"interval,omitempty"`    // daemon poll interval, default "1m"
	BatchSize  *int   `json:"batch_size,omitempty"`  // nil = default 50
}

// Config is the global shopsync config stored at ~/.config/shopsync/config.json.
type Config struct {
	DeviceID      string              `json:"device_id,omitempty"`
	Server        ServerConfig        `json:"server"`
	Notifications NotificationsConfig `json:"notifications"`
	Replay        ReplayConfig        `json:"replay"`
}

const defaultServerURL = "http://localhost:8080"

// ConfigDir returns ~/.config/shopsync, creating it if necessary.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".config", "shopsync")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// DataDir returns the directory holding the local queue database.
// Priority: SHOPSYNC_DIR env > ~/.local/share/shopsync.
func DataDir() (string, error) {
	if v := os.Getenv("SHOPSYNC_DIR"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".local", "share", "shopsync"), nil
}

// Load reads the global config from ~/.config/shopsync/config.json.
func Load() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the global config to ~/.config/shopsync/config.json.
func Save(cfg *Config) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// GetServerURL returns the backend base URL.
// Priority: SHOPSYNC_SERVER_URL env > config.json > default.
func GetServerURL() string {
	if v := os.Getenv("SHOPSYNC_SERVER_URL"); v != "" {
		return v
	}
	cfg, err := Load()
	if err == nil && cfg.Server.URL != "" {
		return cfg.Server.URL
	}
	return defaultServerURL
}

// GetDeviceID returns the device ID from config, generating and persisting
// one on first use.
func GetDeviceID() (string, error) {
	cfg, err := Load()
	if err != nil {
		return "", err
	}
	if cfg.DeviceID != "" {
		return cfg.DeviceID, nil
	}
	id, err := GenerateDeviceID()
	if err != nil {
		return "", err
	}
	cfg.DeviceID = id
	if err := Save(cfg); err != nil {
		return "", err
	}
	return id, nil
}

// GenerateDeviceID creates a new random device ID (16 bytes hex).
func GenerateDeviceID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GetVAPIDPublicKey returns the push-transport public key.
// Priority: SHOPSYNC_VAPID_PUBLIC_KEY env > config.json.
func GetVAPIDPublicKey() string {
	if v := os.Getenv("SHOPSYNC_VAPID_PUBLIC_KEY"); v != "" {
		return v
	}
	cfg, err := Load()
	if err == nil {
		return cfg.Notifications.VAPIDPublicKey
	}
	return ""
}

// GetVAPIDPrivateKey returns the push-transport private key, when this agent
// is configured to deliver notifications directly.
// Priority: SHOPSYNC_VAPID_PRIVATE_KEY env > config.json.
func GetVAPIDPrivateKey() string {
	if v := os.Getenv("SHOPSYNC_VAPID_PRIVATE_KEY"); v != "" {
		return v
	}
	cfg, err := Load()
	if err == nil {
		return cfg.Notifications.VAPIDPrivateKey
	}
	return ""
}

// GetSubscriber returns the contact address reported to the push service.
func GetSubscriber() string {
	if v := os.Getenv("SHOPSYNC_SUBSCRIBER"); v != "" {
		return v
	}
	cfg, err := Load()
	if err == nil && cfg.Notifications.Subscriber != "" {
		return cfg.Notifications.Subscriber
	}
	return ""
}

// GetConsent returns the persisted notification consent state.
func GetConsent() Consent {
	cfg, err := Load()
	if err != nil || cfg.Notifications.Consent == "" {
		return ConsentDefault
	}
	return cfg.Notifications.Consent
}

// SetConsent persists the notification consent state.
func SetConsent(c Consent) error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	cfg.Notifications.Consent = c
	return Save(cfg)
}

// ForceOffline reports whether the runtime is forced into offline mode.
// SHOPSYNC_OFFLINE=1 is the scripted-use analog of a lost connection.
func ForceOffline() bool {
	v := strings.ToLower(os.Getenv("SHOPSYNC_OFFLINE"))
	return v == "1" || v == "true"
}

// GetMaxRetries returns the replay retry budget before dead-lettering.
// Priority: SHOPSYNC_MAX_RETRIES env > config.json > default (5).
func GetMaxRetries() int {
	if v := os.Getenv("SHOPSYNC_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	cfg, err := Load()
	if err == nil && cfg.Replay.MaxRetries != nil && *cfg.Replay.MaxRetries >= 0 {
		return *cfg.Replay.MaxRetries
	}
	return 5
}

// GetBackoffBase returns the base delay for exponential replay backoff.
// Priority: SHOPSYNC_BACKOFF env > config.json > 30s.
func GetBackoffBase() time.Duration {
	if v := os.Getenv("SHOPSYNC_BACKOFF"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	cfg, err := Load()
	if err == nil && cfg.Replay.Backoff != "" {
		if d, err := time.ParseDuration(cfg.Replay.Backoff); err == nil {
			return d
		}
	}
	return 30 * time.Second
}

// GetDaemonInterval returns the daemon connectivity poll interval.
// Priority: SHOPSYNC_INTERVAL env > config.json > 1m.
func GetDaemonInterval() time.Duration {
	if v := os.Getenv("SHOPSYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	cfg, err := Load()
	if err == nil && cfg.Replay.Interval != "" {
		if d, err := time.ParseDuration(cfg.Replay.Interval); err == nil {
			return d
		}
	}
	return time.Minute
}

// GetBatchSize returns the max items sent per replay request.
// Priority: SHOPSYNC_BATCH_SIZE env > config.json > 50.
func GetBatchSize() int {
	if v := os.Getenv("SHOPSYNC_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	cfg, err := Load()
	if err == nil && cfg.Replay.BatchSize != nil && *cfg.Replay.BatchSize > 0 {
		return *cfg.Replay.BatchSize
	}
	return 50
}

// LoadSubscription reads the persisted push subscription, or nil when none
// exists.
func LoadSubscription() (*models.Subscription, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "subscription.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var sub models.Subscription
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// SaveSubscription writes the push subscription state (0600 perms).
// Partial subscriptions are refused.
func SaveSubscription(sub *models.Subscription) error {
	if !sub.Complete() {
		return fmt.Errorf("refusing to persist incomplete subscription")
	}
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(sub, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "subscription.json"), data, 0600)
}

// ClearSubscription removes the persisted subscription state.
func ClearSubscription() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(dir, "subscription.json"))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
