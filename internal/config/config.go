package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            int
	Password        string
	LogDirectory    string
	DatabasePath    string
	StaticDirectory string

	CameraDevice         int // Device index of the rear-facing camera
	CameraFallbackDevice int // Device index used when the rear camera fails to open, -1 disables
	CameraWidth          int
	CameraHeight         int
	CameraImage          string // Still image served in place of a device, for demos and kiosks without a camera

	RefreshRate  int           // Display refreshes per second driving the frame sampler
	ScanInterval time.Duration // Delay between decode attempts

	VerifyURL     string
	VerifyTimeout time.Duration

	Decoder          string // "zxing" or "opencv"
	DecoderTryHarder bool
	DisplayTimezone  string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; variables already set win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:                 getEnvAsInt("PORT", 8080),
		Password:             getEnv("PASSWORD", "attendant"),
		LogDirectory:         getEnv("LOG_DIR", filepath.Join(".", "logs")),
		DatabasePath:         getEnv("DB_PATH", filepath.Join(".", "data", "sessions.db")),
		StaticDirectory:      getEnv("STATIC_DIR", "static"),
		CameraDevice:         getEnvAsInt("CAMERA_DEVICE", 0),
		CameraFallbackDevice: getEnvAsInt("CAMERA_FALLBACK_DEVICE", -1),
		CameraWidth:          getEnvAsInt("CAMERA_WIDTH", 1280),
		CameraHeight:         getEnvAsInt("CAMERA_HEIGHT", 720),
		CameraImage:          getEnv("CAMERA_IMAGE", ""),
		RefreshRate:          getEnvAsInt("REFRESH_HZ", 60),
		ScanInterval:         time.Duration(getEnvAsInt("SCAN_INTERVAL_MS", 300)) * time.Millisecond,
		VerifyURL:            getEnv("VERIFY_URL", "http://localhost:8000/process_qr"),
		VerifyTimeout:        time.Duration(getEnvAsInt("VERIFY_TIMEOUT", 10)) * time.Second,
		Decoder:              getEnv("DECODER", "zxing"),
		DecoderTryHarder:     getEnvAsBool("DECODER_TRY_HARDER", false),
		DisplayTimezone:      getEnv("DISPLAY_TIMEZONE", ""),
	}
}

// RefreshInterval converts RefreshRate into the period between display refreshes.
func (c *Config) RefreshInterval() time.Duration {
	if c.RefreshRate <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.RefreshRate)
}

// Location resolves DisplayTimezone, falling back to the local zone.
func (c *Config) Location() *time.Location {
	loc, _ := c.LoadLocation()
	return loc
}

// LoadLocation is Location that also reports why an explicit
// DisplayTimezone could not be used. The returned zone is never nil.
func (c *Config) LoadLocation() (*time.Location, error) {
	if c.DisplayTimezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return time.Local, fmt.Errorf("invalid DISPLAY_TIMEZONE %q: %w", c.DisplayTimezone, err)
	}
	return loc, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
