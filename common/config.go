package common

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultPageSize matches the spec's configurable-but-4096-by-default page
// size. It is fixed for the lifetime of a database once chosen.
const DefaultPageSize = 4096

// DefaultBufferPoolPages is the buffer pool's default capacity in pages.
const DefaultBufferPoolPages = 50

// Config is the engine's ambient configuration, the way the teacher's
// btree.Config carries {DataDir, Order, CacheSize} with a DefaultConfig
// constructor — generalized here to also be loadable from YAML.
type Config struct {
	DataDir         string `yaml:"data_dir"`
	PageSize        int    `yaml:"page_size"`
	BufferPoolPages int    `yaml:"buffer_pool_pages"`
	LockWaitBackoff string `yaml:"lock_wait_backoff"` // parsed by time.ParseDuration
}

// DefaultConfig returns sensible defaults rooted at dataDir, mirroring the
// teacher's btree.DefaultConfig.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:         dataDir,
		PageSize:        DefaultPageSize,
		BufferPoolPages: DefaultBufferPoolPages,
		LockWaitBackoff: "10ms",
	}
}

// LoadConfig reads a YAML config file, filling any field left zero with
// DefaultConfig's value.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig(".")
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading config %s", path)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parsing config %s", path)
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.BufferPoolPages == 0 {
		cfg.BufferPoolPages = DefaultBufferPoolPages
	}
	if cfg.LockWaitBackoff == "" {
		cfg.LockWaitBackoff = "10ms"
	}
	return cfg, nil
}
