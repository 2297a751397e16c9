package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	appdefaults "github.com/saker-ai/vps-client/config"
	"github.com/saker-ai/vps-client/internal/logger"
	"github.com/saker-ai/vps-client/pkg/vps"
)

const (
	envPrefix   = "vps"
	rootDirEnv  = "VPS_ROOT_DIR"
	configName  = "conf"
	maskedValue = "********"
)

// flagKeys maps command line flag names onto config keys.
var flagKeys = map[string]string{
	"backend-url": "backend_url",
	"http-addr":   "http_addr",
	"log-level":   "log.level",
	"user-id":     "user_id",
}

// Config represents the client config.
type Config struct {
	RootDir    string `mapstructure:"-" yaml:"-"`
	ConfigFile string `mapstructure:"-" yaml:"-"`

	HTTPAddr       string         `mapstructure:"http_addr" yaml:"http_addr"`
	BackendURL     string         `mapstructure:"backend_url" yaml:"backend_url"`
	ConnectTimeout time.Duration  `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	WriteTimeout   time.Duration  `mapstructure:"write_timeout" yaml:"write_timeout"`
	AskTimeout     time.Duration  `mapstructure:"ask_timeout" yaml:"ask_timeout"`
	UserID         string         `mapstructure:"user_id" yaml:"user_id"`
	Token          string         `mapstructure:"token" yaml:"token"`
	UserChannel    string         `mapstructure:"user_channel" yaml:"user_channel"`
	TTSEngine      string         `mapstructure:"tts_engine" yaml:"tts_engine"`
	STTEngine      string         `mapstructure:"stt_engine" yaml:"stt_engine"`
	Dubbing        int32          `mapstructure:"dubbing" yaml:"dubbing"`
	EnableLogging  bool           `mapstructure:"enable_logging" yaml:"enable_logging"`
	Device         vps.DeviceInfo `mapstructure:"device" yaml:"device"`
	TLS            vps.TLSConfig  `mapstructure:"tls" yaml:"tls"`
	Log            logger.Config  `mapstructure:"log" yaml:"log"`
	HTTPTLS        HTTPTLSConfig  `mapstructure:"http_tls" yaml:"http_tls"`
}

// HTTPTLSConfig controls TLS on the bridge listener. Without cert files an
// in-memory self-signed certificate is used.
type HTTPTLSConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	CertPath string `mapstructure:"cert_path" yaml:"cert_path"`
	KeyPath  string `mapstructure:"key_path" yaml:"key_path"`
}

// Load reads conf.yaml from the root dir over the embedded defaults. A
// missing conf.yaml is not an error.
func Load() (Config, error) {
	return load("", nil)
}

// LoadConfig reads configPath over the embedded defaults. An empty path
// behaves like Load.
func LoadConfig(configPath string) (Config, error) {
	return load(configPath, nil)
}

// LoadWithFlags is LoadConfig with command line overrides. Only flags the
// user actually set take precedence over file and env values.
func LoadWithFlags(configPath string, flags *pflag.FlagSet) (Config, error) {
	return load(configPath, flags)
}

func load(configPath string, flags *pflag.FlagSet) (Config, error) {
	path := strings.TrimSpace(configPath)
	var (
		rootDir string
		err     error
	)
	if path != "" {
		if path, err = filepath.Abs(path); err != nil {
			return Config{}, err
		}
		rootDir = rootFromFile(path)
	} else if rootDir, err = resolveRootDir(); err != nil {
		return Config{}, err
	}

	v, err := newViper()
	if err != nil {
		return Config{}, err
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(rootDir)
		if err := v.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, err
			}
		}
	}
	if err := bindFlags(v, flags); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.RootDir = rootDir
	cfg.ConfigFile = v.ConfigFileUsed()
	cfg.Log.File.Path = resolvePath(rootDir, cfg.Log.File.Path, filepath.Join("data", "logs"))
	cfg.HTTPTLS.CertPath = resolvePath(rootDir, cfg.HTTPTLS.CertPath, filepath.Join("certs", "server.crt"))
	cfg.HTTPTLS.KeyPath = resolvePath(rootDir, cfg.HTTPTLS.KeyPath, filepath.Join("certs", "server.key"))
	if cfg.TLS.PinnedCerts, err = ExpandCertPaths(rootDir, cfg.TLS.PinnedCerts); err != nil {
		return Config{}, err
	}
	fillIdentity(&cfg)
	return cfg, nil
}

func newViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(appdefaults.Default)); err != nil {
		return nil, fmt.Errorf("load embedded config: %w", err)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// fillIdentity generates the credentials a fresh install has not set yet.
func fillIdentity(cfg *Config) {
	if strings.TrimSpace(cfg.UserID) == "" {
		cfg.UserID = uuid.NewString()
	}
	if strings.TrimSpace(cfg.Token) == "" {
		cfg.Token = vps.NewToken()
	}
}

// Engine returns the engine config described by cfg.
func (c Config) Engine() vps.Config {
	return vps.Config{
		BackendURL:     c.BackendURL,
		ConnectTimeout: c.ConnectTimeout,
		WriteTimeout:   c.WriteTimeout,
		UserID:         c.UserID,
		Token:          c.Token,
		UserChannel:    c.UserChannel,
		TTSEngine:      c.TTSEngine,
		STTEngine:      c.STTEngine,
		Dubbing:        c.Dubbing,
		EnableLogging:  c.EnableLogging,
		Device:         c.Device,
		TLS:            c.TLS,
	}
}

// Validate checks the engine settings and the bridge address.
func (c Config) Validate() error {
	if err := c.Engine().Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return fmt.Errorf("%w: http_addr is empty", vps.ErrInvalidConfig)
	}
	if c.AskTimeout < 0 {
		return fmt.Errorf("%w: ask_timeout %s is negative", vps.ErrInvalidConfig, c.AskTimeout)
	}
	return nil
}

// Dump writes the effective config as YAML with the token masked.
func (c Config) Dump(w io.Writer) error {
	if c.Token != "" {
		c.Token = maskedValue
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}

// rootFromFile treats the parent of a config/ directory as the root.
func rootFromFile(path string) string {
	if root := strings.TrimSpace(os.Getenv(rootDirEnv)); root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			return abs
		}
	}
	rootDir := filepath.Dir(path)
	if filepath.Base(rootDir) == "config" {
		rootDir = filepath.Dir(rootDir)
	}
	return rootDir
}

func resolveRootDir() (string, error) {
	if root := strings.TrimSpace(os.Getenv(rootDirEnv)); root != "" {
		return filepath.Abs(root)
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := wd
	for i := 0; i < 6; i++ {
		if fileExists(filepath.Join(dir, configName+".yaml")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return wd, nil
}

func resolvePath(rootDir string, configured string, fallback string) string {
	path := strings.TrimSpace(configured)
	if path == "" {
		path = fallback
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(rootDir, path)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
