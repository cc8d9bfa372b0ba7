package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ConfigFileName = "config.yml"
	AppDirName     = "textube"
)

const (
	// DefaultChunkDurationMs is the nominal length of one recognition chunk.
	DefaultChunkDurationMs = 30000

	// DefaultServerPort is the listen port of textube-server.
	DefaultServerPort = 8080
)

// ConfigDir returns the standard config directory for textube.
// Windows: %APPDATA%\textube\
// macOS/Linux: ~/.config/textube/
func ConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, AppDirName), nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppDirName), nil
}

// ConfigPath returns the path to the config file.
// e.g., ~/.config/textube/config.yml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

type Config struct {
	// WorkDir holds per-job temporary audio files (asset and chunks)
	WorkDir string `yaml:"work_dir,omitempty"`

	// Language hint passed to recognition engines ("auto" to detect)
	Language string `yaml:"language,omitempty"`

	Log        LogConfig        `yaml:"log,omitempty"`
	Acquire    AcquireConfig    `yaml:"acquire,omitempty"`
	Transcribe TranscribeConfig `yaml:"transcribe,omitempty"`
	Server     ServerConfig     `yaml:"server,omitempty"`

	// WebDAV servers usable as "name:/path" sources
	WebDAVServers map[string]WebDAVServer `yaml:"webdav_servers,omitempty"`
}

// LogConfig controls the zerolog output.
type LogConfig struct {
	// Level is one of trace, debug, info, warn, error (default: info)
	Level string `yaml:"level,omitempty"`

	// Format is "console" (default) or "json"
	Format string `yaml:"format,omitempty"`
}

// AcquireConfig holds settings for fetching remote audio.
type AcquireConfig struct {
	// YTDLPPath is the yt-dlp executable (default: "yt-dlp" from PATH)
	YTDLPPath string `yaml:"ytdlp_path,omitempty"`

	// FFmpegPath is the ffmpeg executable; empty means PATH lookup,
	// falling back to the embedded WASM build
	FFmpegPath string `yaml:"ffmpeg_path,omitempty"`

	// Format is the yt-dlp format selector (default: "bestaudio/best")
	Format string `yaml:"format,omitempty"`

	// Timeout bounds a single fetch (e.g., "10m"); zero means no limit
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// TranscribeConfig selects and configures the recognition engine.
type TranscribeConfig struct {
	// Engine is "streaming" or "batch" (default: batch)
	Engine string `yaml:"engine,omitempty"`

	// Tier is the batch model size: base, small, medium, large (default: small)
	Tier string `yaml:"tier,omitempty"`

	// Backend is the batch backend: "local" (whisper.cpp) or "openai"
	Backend string `yaml:"backend,omitempty"`

	// ChunkDurationMs is the segment length in milliseconds (default: 30000)
	ChunkDurationMs int `yaml:"chunk_duration_ms,omitempty"`

	// ModelsDir stores downloaded whisper models
	ModelsDir string `yaml:"models_dir,omitempty"`

	// StreamingModelDir is a sherpa-onnx streaming transducer model directory
	StreamingModelDir string `yaml:"streaming_model_dir,omitempty"`

	// WhisperCLIPath is the whisper.cpp CLI used by non-cgo builds
	WhisperCLIPath string `yaml:"whisper_cli_path,omitempty"`

	// Threads caps recognition threads (default: min(NumCPU, 8))
	Threads int `yaml:"threads,omitempty"`

	OpenAI OpenAIConfig `yaml:"openai,omitempty"`
}

// OpenAIConfig configures the remote batch backend.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model,omitempty"`
}

// ServerConfig holds HTTP server settings for `textube-server`
type ServerConfig struct {
	// Port is the HTTP listen port (default: 8080)
	Port int `yaml:"port,omitempty"`

	// APIKey for authentication (optional, if set job requests must include X-API-Key header)
	APIKey string `yaml:"api_key,omitempty"`
}

// WebDAVServer represents a WebDAV server configuration
type WebDAVServer struct {
	// URL is the WebDAV server URL (e.g., "https://pikpak.com/dav")
	URL string `yaml:"url"`

	// Username for authentication
	Username string `yaml:"username,omitempty"`

	// Password for authentication
	Password string `yaml:"password,omitempty"`
}

// GetWebDAVServer returns a WebDAV server by name, or nil if not found
func (c *Config) GetWebDAVServer(name string) *WebDAVServer {
	if c.WebDAVServers == nil {
		return nil
	}
	if s, ok := c.WebDAVServers[name]; ok {
		return &s
	}
	return nil
}

// SetWebDAVServer adds or updates a WebDAV server
func (c *Config) SetWebDAVServer(name string, server WebDAVServer) {
	if c.WebDAVServers == nil {
		c.WebDAVServers = make(map[string]WebDAVServer)
	}
	c.WebDAVServers[name] = server
}

// ChunkDuration returns the configured chunk length.
func (c *Config) ChunkDuration() time.Duration {
	return time.Duration(c.Transcribe.ChunkDurationMs) * time.Millisecond
}

// DefaultWorkDir returns the default directory for job temp files.
func DefaultWorkDir() string {
	return filepath.Join(os.TempDir(), AppDirName)
}

// DefaultModelsDir returns the default models directory.
// In Docker, models are stored in /home/textube/models to avoid bind mount conflicts.
func DefaultModelsDir() string {
	if IsRunningInDocker() {
		return "/home/textube/models"
	}

	dir, err := ConfigDir()
	if err != nil {
		return filepath.Join(".", "models")
	}
	return filepath.Join(dir, "models")
}

// IsRunningInDocker detects if we're running inside a Docker container
func IsRunningInDocker() bool {
	// Check for .dockerenv file
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	// Check cgroup
	if data, err := os.ReadFile("/proc/1/cgroup"); err == nil {
		content := string(data)
		if strings.Contains(content, "docker") || strings.Contains(content, "containerd") {
			return true
		}
	}
	// Check for kubernetes
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true
	}
	return false
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued fields with defaults.
func (c *Config) ApplyDefaults() {
	if c.WorkDir == "" {
		c.WorkDir = DefaultWorkDir()
	}
	if c.Language == "" {
		c.Language = "auto"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Acquire.YTDLPPath == "" {
		c.Acquire.YTDLPPath = "yt-dlp"
	}
	if c.Acquire.Format == "" {
		c.Acquire.Format = "bestaudio/best"
	}
	if c.Transcribe.Engine == "" {
		c.Transcribe.Engine = "batch"
	}
	if c.Transcribe.Tier == "" {
		c.Transcribe.Tier = "small"
	}
	if c.Transcribe.Backend == "" {
		c.Transcribe.Backend = "local"
	}
	if c.Transcribe.ChunkDurationMs <= 0 {
		c.Transcribe.ChunkDurationMs = DefaultChunkDurationMs
	}
	if c.Transcribe.ModelsDir == "" {
		c.Transcribe.ModelsDir = DefaultModelsDir()
	}
	if c.Transcribe.WhisperCLIPath == "" {
		c.Transcribe.WhisperCLIPath = "whisper-cli"
	}
	if c.Transcribe.OpenAI.Model == "" {
		c.Transcribe.OpenAI.Model = "whisper-1"
	}
	if c.Server.Port <= 0 {
		c.Server.Port = DefaultServerPort
	}
}

// Exists checks if config file exists
func Exists() bool {
	path, err := ConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Load reads the config from ~/.config/textube/config.yml
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the config from an explicit path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	// Expand tilde in path fields
	cfg.WorkDir = expandPath(cfg.WorkDir)
	cfg.Acquire.YTDLPPath = expandPath(cfg.Acquire.YTDLPPath)
	cfg.Acquire.FFmpegPath = expandPath(cfg.Acquire.FFmpegPath)
	cfg.Transcribe.ModelsDir = expandPath(cfg.Transcribe.ModelsDir)
	cfg.Transcribe.StreamingModelDir = expandPath(cfg.Transcribe.StreamingModelDir)
	cfg.Transcribe.WhisperCLIPath = expandPath(cfg.Transcribe.WhisperCLIPath)

	cfg.ApplyDefaults()
	return cfg, nil
}

// expandPath expands the tilde (~) in the path to the user's home directory.
// It handles both forward and backward slashes to ensure cross-platform compatibility
// for configuration files.
func expandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~") {
		// Only expand if it's explicitly "~", "~/", or "~\"
		if len(path) == 1 || path[1] == '/' || path[1] == '\\' {
			home, err := os.UserHomeDir()
			if err == nil {
				subPath := path[1:]
				// Handle the separator manually to ensure clean join across platforms
				// This allows "~\Downloads" to work correctly on macOS/Linux as well
				if len(subPath) > 0 && (subPath[0] == '/' || subPath[0] == '\\') {
					subPath = subPath[1:]
				}
				return filepath.Join(home, subPath)
			}
		}
	}

	return path
}

// Save writes the config to ~/.config/textube/config.yml
func Save(cfg *Config) error {
	configPath, err := ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	return SaveTo(configPath, cfg)
}

// SaveTo writes the config to an explicit path.
func SaveTo(configPath string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	// Ensure config directory exists
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Add a header comment
	header := "# textube configuration file\n# Run 'textube init' to regenerate with defaults\n\n"
	content := header + string(data)

	return os.WriteFile(configPath, []byte(content), 0644)
}

// SavePath returns the path where config will be saved
func SavePath() string {
	if path, err := ConfigPath(); err == nil {
		return path
	}
	return ConfigFileName
}

// Init creates a new config.yml with default values
func Init() error {
	if Exists() {
		path, _ := ConfigPath()
		return fmt.Errorf("%s already exists", path)
	}
	return Save(DefaultConfig())
}

// LoadOrDefault loads config if it exists, otherwise returns defaults
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		cfg = DefaultConfig()
	}
	return cfg
}
