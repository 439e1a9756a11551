package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		setup   func()
		cleanup func()
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "load with defaults (no config file)",
			setup: func() {
				viper.Reset()
			},
			cleanup: func() {},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				if cfg.App.Platform != PlatformNative {
					t.Errorf("App.Platform = %s, want %s", cfg.App.Platform, PlatformNative)
				}
				if !cfg.App.IsNative() {
					t.Error("App.IsNative() = false, want true")
				}
				if cfg.Store.Path != filepath.Join("./data", "scheduler.db") {
					t.Errorf("Store.Path = %s, want data/scheduler.db", cfg.Store.Path)
				}
				if cfg.Files.Root != filepath.Join("./data", "files") {
					t.Errorf("Files.Root = %s, want data/files", cfg.Files.Root)
				}
				if !cfg.Mode.ForceOfflineOnStart {
					t.Error("Mode.ForceOfflineOnStart = false, want true")
				}
				if cfg.Push.DailyLimit != 10 {
					t.Errorf("Push.DailyLimit = %d, want 10", cfg.Push.DailyLimit)
				}
				if cfg.Server.Port != 8787 {
					t.Errorf("Server.Port = %d, want 8787", cfg.Server.Port)
				}
				if cfg.Lifecycle.DefaultProfile.Name != "Default" {
					t.Errorf("Lifecycle.DefaultProfile.Name = %s, want Default", cfg.Lifecycle.DefaultProfile.Name)
				}
			},
		},
		{
			name: "load with environment variables",
			setup: func() {
				viper.Reset()
				viper.SetEnvPrefix("APP")
				viper.AutomaticEnv()
				os.Setenv("APP_APP_PLATFORM", "web")
				os.Setenv("APP_STORE_PATH", "/var/lib/scheduler/local.db")
				os.Setenv("APP_PUSH_DAILYLIMIT", "3")
				os.Setenv("APP_REMOTE_BASEURL", "https://api.example.com")
				// AutomaticEnv does not resolve nested keys on Unmarshal
				viper.BindEnv("app.platform", "APP_APP_PLATFORM")
				viper.BindEnv("store.path", "APP_STORE_PATH")
				viper.BindEnv("push.dailylimit", "APP_PUSH_DAILYLIMIT")
				viper.BindEnv("remote.baseurl", "APP_REMOTE_BASEURL")
			},
			cleanup: func() {
				os.Unsetenv("APP_APP_PLATFORM")
				os.Unsetenv("APP_STORE_PATH")
				os.Unsetenv("APP_PUSH_DAILYLIMIT")
				os.Unsetenv("APP_REMOTE_BASEURL")
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				if cfg.App.Platform != PlatformWeb {
					t.Errorf("App.Platform = %s, want web", cfg.App.Platform)
				}
				if cfg.Store.Path != "/var/lib/scheduler/local.db" {
					t.Errorf("Store.Path = %s, want /var/lib/scheduler/local.db", cfg.Store.Path)
				}
				if cfg.Push.DailyLimit != 3 {
					t.Errorf("Push.DailyLimit = %d, want 3", cfg.Push.DailyLimit)
				}
				if cfg.Remote.BaseURL != "https://api.example.com" {
					t.Errorf("Remote.BaseURL = %s, want https://api.example.com", cfg.Remote.BaseURL)
				}
			},
		},
		{
			name: "invalid platform is rejected",
			setup: func() {
				viper.Reset()
				os.Setenv("APP_APP_PLATFORM", "toaster")
				viper.BindEnv("app.platform", "APP_APP_PLATFORM")
			},
			cleanup: func() {
				os.Unsetenv("APP_APP_PLATFORM")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			defer func() {
				if tt.cleanup != nil {
					tt.cleanup()
				}
			}()

			cfg, err := Load()
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr && cfg == nil {
				t.Fatal("Load() returned nil config")
			}

			if tt.check != nil && cfg != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestSetDefaults(t *testing.T) {
	viper.Reset()
	setDefaults()

	tests := []struct {
		name string
		key  string
		want interface{}
	}{
		{"app name", "app.name", "upload-scheduler"},
		{"app platform", "app.platform", PlatformNative},
		{"app networkcapable", "app.networkcapable", true},
		{"store path", "store.path", "scheduler.db"},
		{"files root", "files.root", "files"},
		{"mode forceofflineonstart", "mode.forceofflineonstart", true},
		{"lifecycle closeonbackground", "lifecycle.closeonbackground", false},
		{"push dailylimit", "push.dailylimit", 10},
		{"push thresholdpercent", "push.thresholdpercent", 100},
		{"media ffmpegpath", "media.ffmpegpath", "ffmpeg"},
		{"media thumbnailwidth", "media.thumbnailwidth", 320},
		{"server port", "server.port", 8787},
		{"logging level", "logging.level", "info"},
		{"logging file", "logging.file", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := viper.Get(tt.key)
			if got != tt.want {
				t.Errorf("viper.Get(%s) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}

	if viper.GetDuration("store.busytimeout") != 5*time.Second {
		t.Errorf("store.busytimeout = %v, want 5s", viper.GetDuration("store.busytimeout"))
	}
	if viper.GetDuration("remote.timeout") != 15*time.Second {
		t.Errorf("remote.timeout = %v, want 15s", viper.GetDuration("remote.timeout"))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "valid native",
			cfg:     Config{App: AppConfig{Platform: PlatformNative, Version: "1.0.0"}},
			wantErr: false,
		},
		{
			name:    "valid web",
			cfg:     Config{App: AppConfig{Platform: PlatformWeb, Version: "1.0.0"}},
			wantErr: false,
		},
		{
			name:    "missing version",
			cfg:     Config{App: AppConfig{Platform: PlatformNative}},
			wantErr: true,
		},
		{
			name:    "negative daily limit",
			cfg:     Config{App: AppConfig{Platform: PlatformNative, Version: "1"}, Push: PushConfig{DailyLimit: -1}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
