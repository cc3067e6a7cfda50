package main

import (
	"io/ioutil"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "blockfs.yaml")
	if err := ioutil.WriteFile(file, []byte(`
image: /tmp/photos.img
label: photos
blocks: 100
logLevel: debug
`), 0644); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	t.Setenv("BLOCKFS_CONFIG_FILE", file)
	t.Setenv("BLOCKFS_BLOCKS", "200")

	c, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig(): unexpected err: %v", err)
	}
	if c.Image != "/tmp/photos.img" {
		t.Fatalf("Config.Image: wanted `/tmp/photos.img`; found `%s`", c.Image)
	}
	if c.Blocks != 200 {
		t.Fatalf("Config.Blocks: wanted `200`; found `%d`", c.Blocks)
	}
	if c.LogLevel != "debug" {
		t.Fatalf("Config.LogLevel: wanted `debug`; found `%s`", c.LogLevel)
	}
	if c.CacheCapacity != 1024 {
		t.Fatalf("Config.CacheCapacity: wanted `1024`; found `%d`", c.CacheCapacity)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Config.Validate(): unexpected err: %v", err)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Setenv(
		"BLOCKFS_CONFIG_FILE",
		filepath.Join(t.TempDir(), "does-not-exist.yaml"),
	)
	c, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig(): unexpected err: %v", err)
	}
	if c.Backend != BackendFile {
		t.Fatalf("Config.Backend: wanted `%s`; found `%s`", BackendFile, c.Backend)
	}
}

func TestLoadConfig_UnknownField(t *testing.T) {
	file := filepath.Join(t.TempDir(), "blockfs.yaml")
	if err := ioutil.WriteFile(file, []byte("imagee: x\n"), 0644); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	t.Setenv("BLOCKFS_CONFIG_FILE", file)
	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig(): wanted error; found `nil`")
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Backend:       BackendFile,
			CacheCapacity: 1,
			LogLevel:      "info",
			LogFormat:     "text",
		}
	}
	for _, testCase := range []struct {
		name    string
		edit    func(*Config)
		wantErr string
	}{{
		name: "valid",
		edit: func(*Config) {},
	}, {
		name:    "missing-backend",
		edit:    func(c *Config) { c.Backend = "" },
		wantErr: "missing required configuration: backend / BLOCKFS_BACKEND",
	}, {
		name:    "unknown-backend",
		edit:    func(c *Config) { c.Backend = "tape" },
		wantErr: "invalid backend `tape`: wanted `file` or `bolt`",
	}, {
		name:    "zero-cache",
		edit:    func(c *Config) { c.CacheCapacity = 0 },
		wantErr: "invalid cache capacity `0`",
	}, {
		name:    "bad-log-format",
		edit:    func(c *Config) { c.LogFormat = "xml" },
		wantErr: "invalid log format `xml`: wanted `text` or `json`",
	}} {
		t.Run(testCase.name, func(t *testing.T) {
			c := valid()
			testCase.edit(&c)
			err := c.Validate()
			if testCase.wantErr == "" {
				if err != nil {
					t.Fatalf("Config.Validate(): unexpected err: %v", err)
				}
				return
			}
			if err == nil || err.Error() != testCase.wantErr {
				t.Fatalf(
					"Config.Validate(): wanted `%s`; found `%v`",
					testCase.wantErr,
					err,
				)
			}
		})
	}
}

func TestConfigImagePath(t *testing.T) {
	for _, testCase := range []struct {
		config Config
		wanted string
	}{
		{Config{Image: "/srv/a.img"}, "/srv/a.img"},
		{Config{Label: "Family Photos"}, "family-photos.img"},
		{Config{Label: "Family Photos", Backend: BackendBolt}, "family-photos.db"},
		{Config{}, "blockfs.img"},
	} {
		if found := testCase.config.ImagePath(); found != testCase.wanted {
			t.Fatalf(
				"Config.ImagePath(): wanted `%s`; found `%s`",
				testCase.wanted,
				found,
			)
		}
	}
}

func TestParsePerm(t *testing.T) {
	perm, err := parsePerm("750")
	if err != nil {
		t.Fatalf("parsePerm(): unexpected err: %v", err)
	}
	if perm != 0o750 {
		t.Fatalf("parsePerm(): wanted `%o`; found `%o`", 0o750, perm)
	}
	if _, err := parsePerm("17777"); err == nil {
		t.Fatal("parsePerm(): wanted error; found `nil`")
	}
	if _, err := parsePerm("9"); err == nil {
		t.Fatal("parsePerm(): wanted error; found `nil`")
	}
}
