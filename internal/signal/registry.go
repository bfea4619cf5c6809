package signal

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"callout/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Pattern 描述告警文本中单一喊单类别的词法模式。
// 同一类别只允许一个模式；正则可通过配置文件覆盖以适配新的喊单措辞。
type Pattern struct {
	Name  string `mapstructure:"name" yaml:"name"`
	Regex string `mapstructure:"regex" yaml:"regex"`

	re *regexp.Regexp
}

// fileConfig 映射 patterns 覆盖文件。
type fileConfig struct {
	Patterns []Pattern `mapstructure:"patterns" yaml:"patterns"`
}

// Snapshot 是一次加载得到的有序模式组。
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Patterns []Pattern
}

// 默认模式组，按固定顺序独立应用。与 extractors 的 key 一一对应。
var defaultPatterns = []Pattern{
	{Name: "entry", Regex: `(?i)(?:@\S+\s+)?\bin\s+(?:([A-Za-z]+)\s+(\d{1,2}/\d{1,2})|(\d{1,2}/\d{1,2})\s+([A-Za-z]+))\s+(\d+\.?\d*)([CP])\s*@\s*([\d.]+)`},
	{Name: "add", Regex: `(?i)(?:@\S+\s+)?added\s+to\s+([A-Za-z]+),?\s*new\s+avg\s+is\s*([\d.]+)`},
	{Name: "trim", Regex: `(?i)(?:@\S+\s+)?trimming\s+([A-Za-z]+)\s*@?\s*(-?\d+)%?`},
	{Name: "exit", Regex: `(?i)(?:@\S+\s+)?(?:all\s+out\s+of|out\s+of|\bout)\s+([A-Za-z]+)(?:\s*@?\s*(-?\d+)%)?`},
	{Name: "unnamed", Regex: `(?i)\b([A-Za-z]+)\s+(\d+)\s*([CP])\s+(\d{1,2}/\d{1,2})\s*["“]?(\d+\.\d+)["”]?`},
	{Name: "filled", Regex: `(?i)filled on ([A-Za-z]+) ([A-Za-z]+ \d{4}) (\d+) (calls|puts).*?at (\d+\.\d+)`},
	{Name: "stop", Regex: `(?i)(?:@\S+\s+)?stop(?:ped)?\s+(?:out\s+)?(?:of\s+)?([A-Za-z]+)\s*@\s*([\d.]+)`},
}

// overrideSchema 校验覆盖文件结构，防止热加载坏文件打穿解析器。
const overrideSchema = `{
  "type": "object",
  "properties": {
    "patterns": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "regex"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "regex": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

// Registry 管理模式组：内置默认 + 可选文件覆盖 + 热加载。
type Registry struct {
	path   string
	v      *viper.Viper
	schema *jsonschema.Schema
	log    *logger.TagLogger

	mu       sync.RWMutex
	snapshot Snapshot
	version  int64
}

// NewRegistry 构建仅使用内置默认模式的 registry。
func NewRegistry() *Registry {
	r := &Registry{log: logger.Tagged("patterns")}
	r.snapshot = Snapshot{Version: 1, LoadedAt: time.Now(), Patterns: mustCompile(defaultPatterns)}
	r.version = 1
	return r
}

// NewRegistryFromFile 读取覆盖文件；watch 为 true 时监听文件变更热加载。
func NewRegistryFromFile(path string, watch bool) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("pattern registry requires path")
	}
	schema, err := jsonschema.CompileString("patterns.schema.json", overrideSchema)
	if err != nil {
		return nil, fmt.Errorf("compile pattern schema failed: %w", err)
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read pattern config failed: %w", err)
	}
	r := &Registry{path: path, v: v, schema: schema, log: logger.Tagged("patterns")}
	if err := r.reload(); err != nil {
		return nil, err
	}
	if watch {
		v.OnConfigChange(func(evt fsnotify.Event) {
			if err := r.reload(); err != nil {
				r.log.Errorf("pattern reload failed (%s): %v", evt.Name, err)
				return
			}
			snap := r.Snapshot()
			r.log.Infof("patterns reloaded: version=%d count=%d", snap.Version, len(snap.Patterns))
		})
		v.WatchConfig()
	}
	return r, nil
}

func (r *Registry) reload() error {
	if err := r.v.ReadInConfig(); err != nil {
		return err
	}
	settings := r.v.AllSettings()
	if err := r.validateSettings(settings); err != nil {
		return err
	}
	var fc fileConfig
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{Result: &fc, TagName: "mapstructure"})
	if err != nil {
		return err
	}
	if err := dec.Decode(settings); err != nil {
		return fmt.Errorf("decode pattern config failed: %w", err)
	}

	merged := make([]Pattern, len(defaultPatterns))
	copy(merged, defaultPatterns)
	for _, override := range fc.Patterns {
		name := strings.ToLower(strings.TrimSpace(override.Name))
		if _, ok := extractors[name]; !ok {
			return fmt.Errorf("pattern %q has no extractor, allowed: %s", override.Name, strings.Join(knownPatternNames(), ", "))
		}
		if _, err := regexp.Compile(override.Regex); err != nil {
			return fmt.Errorf("pattern %q regex invalid: %w", override.Name, err)
		}
		replaced := false
		for i := range merged {
			if merged[i].Name == name {
				merged[i].Regex = override.Regex
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, Pattern{Name: name, Regex: override.Regex})
		}
	}

	compiled := mustCompile(merged)
	r.mu.Lock()
	r.version++
	r.snapshot = Snapshot{Version: r.version, LoadedAt: time.Now(), Patterns: compiled}
	r.mu.Unlock()
	return nil
}

func (r *Registry) validateSettings(settings map[string]any) error {
	if r.schema == nil {
		return nil
	}
	// jsonschema 只接受 JSON 解码后的值，viper settings 先绕一次 JSON。
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if err := r.schema.Validate(doc); err != nil {
		return fmt.Errorf("pattern config schema violation: %w", err)
	}
	return nil
}

// Snapshot 返回当前模式组（调用方只读）。
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// DumpYAML 导出当前生效的模式组，供运维接口查看。
func (r *Registry) DumpYAML() (string, error) {
	snap := r.Snapshot()
	out, err := yaml.Marshal(fileConfig{Patterns: snap.Patterns})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func mustCompile(patterns []Pattern) []Pattern {
	out := make([]Pattern, 0, len(patterns))
	for _, p := range patterns {
		p.re = regexp.MustCompile(p.Regex)
		out = append(out, p)
	}
	return out
}

func knownPatternNames() []string {
	names := make([]string, 0, len(extractors))
	for name := range extractors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
