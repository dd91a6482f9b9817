package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvFileVar names the variable pointing at an alternate .env file.
const EnvFileVar = "FRAMECAP_ENV"

// LoadEnv loads a .env file into the process environment and applies
// FRAMECAP_* overrides to c. Sources, in order: .env next to the executable,
// then the file named by FRAMECAP_ENV. Variables already set in the
// environment win over the file. Returns the .env path used, if any.
func (c *Config) LoadEnv() string {
	envPath := resolveEnvPath()
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}
	c.applyEnv(os.Getenv)
	return envPath
}

func resolveEnvPath() string {
	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}
	if alt := os.Getenv(EnvFileVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}
	return ""
}

// ReadEnvFile returns the key/value pairs of a .env file without touching
// the process environment.
func ReadEnvFile(path string) (map[string]string, error) {
	return godotenv.Read(path)
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("FRAMECAP_REMOTE"); v != "" {
		c.Browser.Remote = v
	}
	if v := getenv("FRAMECAP_STEALTH"); v != "" {
		c.Browser.Stealth = strings.ToLower(v)
	}
	if v := getenv("FRAMECAP_XVFB_DISPLAY"); v != "" {
		c.Browser.XvfbDisplay = v
	}
	if d, ok := envDuration(getenv("FRAMECAP_SETTLE_DELAY")); ok {
		c.Capture.SettleDelay = d
	}
	if n, ok := envInt(getenv("FRAMECAP_MAX_LONG_EDGE")); ok {
		c.Capture.MaxLongEdge = n
	}
	if n, ok := envInt(getenv("FRAMECAP_MAX_PIXELS")); ok {
		c.Capture.MaxPixels = n
	}
	if v := getenv("FRAMECAP_WATERMARK"); v != "" {
		c.Compose.Watermark = v
	}
	if v := getenv("FRAMECAP_OUTPUT_DIR"); v != "" {
		c.Output.Dir = v
	}
	if v := getenv("FRAMECAP_FILENAME"); v != "" {
		c.Output.Filename = v
	}
	if strings.ToLower(getenv("FRAMECAP_NO_CLIPBOARD")) == "true" {
		c.Output.NoClipboard = true
	}
	if v := getenv("FRAMECAP_WEBHOOKS"); v != "" {
		for _, u := range strings.Split(v, ",") {
			if u = strings.TrimSpace(u); u != "" {
				c.Output.Webhooks = append(c.Output.Webhooks, u)
			}
		}
	}
	if v := getenv("FRAMECAP_PREFS_DB"); v != "" {
		c.Prefs.Path = v
	}
	if v := getenv("FRAMECAP_HTTP_ADDR"); v != "" {
		c.Server.Addr = v
	}
}

func envInt(v string) (int, bool) {
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func envDuration(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}
