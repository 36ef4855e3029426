package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolate points XDG and the working directory at fresh temp dirs so no real
// config files leak into a test.
func isolate(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()

	origWd, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change to temp dir: %v", err)
	}

	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "config"))
	return tmpDir
}

func TestGlobalPath(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME set", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		if got := GlobalPath(); got != "/custom/config/rirakoi/rirakoi.yml" {
			t.Errorf("GlobalPath() = %v, want /custom/config/rirakoi/rirakoi.yml", got)
		}
	})

	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		got := GlobalPath()
		if !filepath.IsAbs(got) {
			t.Errorf("GlobalPath() should return absolute path, got %v", got)
		}
		if filepath.Base(got) != "rirakoi.yml" {
			t.Errorf("GlobalPath() should end with rirakoi.yml, got %v", got)
		}
	})
}

func TestProjectPath(t *testing.T) {
	if got := ProjectPath(); got != "rirakoi.yml" {
		t.Errorf("ProjectPath() = %v, want rirakoi.yml", got)
	}
}

func TestExists(t *testing.T) {
	isolate(t)

	if Exists() {
		t.Fatal("Exists() = true, want false when no config files exist")
	}

	if err := os.WriteFile(ProjectPath(), []byte("customer_id: \"42\"\n"), 0644); err != nil {
		t.Fatalf("Failed to write project config: %v", err)
	}
	if !Exists() {
		t.Error("Exists() = false, want true when project config exists")
	}
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIBaseURL != "http://127.0.0.1:8000" {
		t.Errorf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.CustomerID != "1" {
		t.Errorf("CustomerID = %q, want 1", cfg.CustomerID)
	}
	if cfg.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v, want 15s", cfg.Timeout)
	}
	if cfg.CacheBackend != CacheNATS {
		t.Errorf("CacheBackend = %q, want nats", cfg.CacheBackend)
	}
	if cfg.DataDir != ".rirakoi" {
		t.Errorf("DataDir = %q, want .rirakoi", cfg.DataDir)
	}
}

func TestLoad_ProjectOverridesGlobal(t *testing.T) {
	isolate(t)

	global := GlobalPath()
	if err := os.MkdirAll(filepath.Dir(global), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(global, []byte("customer_id: \"7\"\ntimeout: 5s\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ProjectPath(), []byte("customer_id: \"9\"\ncache_backend: file\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CustomerID != "9" {
		t.Errorf("CustomerID = %q, want project value 9", cfg.CustomerID)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want global value 5s", cfg.Timeout)
	}
	if cfg.CacheBackend != CacheFile {
		t.Errorf("CacheBackend = %q, want file", cfg.CacheBackend)
	}
}

func TestLoad_EnvOverridesFiles(t *testing.T) {
	isolate(t)

	if err := os.WriteFile(ProjectPath(), []byte("api_base_url: http://files.example\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RIRAKOI_API_BASE_URL", "http://env.example")
	t.Setenv("RIRAKOI_HEADLESS", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIBaseURL != "http://env.example" {
		t.Errorf("APIBaseURL = %q, want env value", cfg.APIBaseURL)
	}
	if !cfg.Headless {
		t.Error("Headless = false, want true from env")
	}
}

func TestValidate(t *testing.T) {
	valid := Config{APIBaseURL: "http://x", Timeout: time.Second, CacheBackend: CacheMemory}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing base url", func(c *Config) { c.APIBaseURL = " " }, true},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, true},
		{"unknown backend", func(c *Config) { c.CacheBackend = "sqlite" }, true},
		{"redis backend", func(c *Config) { c.CacheBackend = CacheRedis }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWriteProject_RoundTrip(t *testing.T) {
	isolate(t)

	in := &Config{
		APIBaseURL:   "http://127.0.0.1:9000",
		CustomerID:   "15",
		UserID:       "3",
		Timeout:      20 * time.Second,
		DataDir:      ".rirakoi",
		CacheBackend: CacheFile,
		LogLevel:     "debug",
	}
	if err := WriteProject(in); err != nil {
		t.Fatalf("WriteProject() error = %v", err)
	}

	out, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if out.APIBaseURL != in.APIBaseURL || out.CustomerID != in.CustomerID || out.Timeout != in.Timeout {
		t.Errorf("round trip mismatch: got %+v", out)
	}
}
