package skill

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// record is the on-disk shape of a skill. JSON, JSONC and YAML all decode
// into it.
type record struct {
	Meta struct {
		Executor       string `json:"executor" yaml:"executor"`
		FileExtension  string `json:"file_extension" yaml:"file_extension"`
		StaticAnalysis string `json:"static_analysis" yaml:"static_analysis"`
		Timeout        int    `json:"timeout" yaml:"timeout"` // seconds
	} `json:"meta" yaml:"meta"`
	Interpreter []Message `json:"interpreter" yaml:"interpreter"`
	Fabricator  []Message `json:"fabricator" yaml:"fabricator"`
}

// recordExtensions lists the file types the loader treats as skill records.
var recordExtensions = map[string]bool{
	".json":  true,
	".jsonc": true,
	".yaml":  true,
	".yml":   true,
}

// defaultExecutor is used when a record leaves meta.executor empty.
const defaultExecutor = "bash"

// nativeExtensions maps executors to the suffix their scripts conventionally use.
var nativeExtensions = map[string]string{
	"bash":    ".sh",
	"sh":      ".sh",
	"zsh":     ".sh",
	"python3": ".py",
	"python":  ".py",
	"node":    ".js",
	"ruby":    ".rb",
	"perl":    ".pl",
}

// NameFromPath returns the skill name for a record path: the base name
// without its extension.
func NameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ParseRecord decodes one skill record. The format is chosen by ext
// (".json", ".jsonc", ".yaml", ".yml"). Missing fields fall back to
// defaults; a record that does not decode is an error.
func ParseRecord(name, ext string, data []byte) (*Skill, error) {
	var rec record

	switch strings.ToLower(ext) {
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &rec); err != nil {
			return nil, fmt.Errorf("parsing skill %s: %w", name, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("parsing skill %s: %w", name, err)
		}
	default:
		return nil, fmt.Errorf("unsupported skill record type %q", ext)
	}

	s := &Skill{
		Name:               name,
		Executor:           strings.TrimSpace(rec.Meta.Executor),
		FileExtension:      strings.TrimSpace(rec.Meta.FileExtension),
		StaticAnalysis:     strings.TrimSpace(rec.Meta.StaticAnalysis),
		InterpreterHistory: nonNil(rec.Interpreter),
		FabricatorHistory:  nonNil(rec.Fabricator),
		LoadedAt:           time.Now(),
	}
	if rec.Meta.Timeout > 0 {
		s.Timeout = time.Duration(rec.Meta.Timeout) * time.Second
	}

	if s.Executor == "" {
		s.Executor = defaultExecutor
	}
	if s.FileExtension == "" {
		s.FileExtension = nativeExtensions[s.Executor]
		if s.FileExtension == "" {
			s.FileExtension = ".txt"
		}
	}
	if !strings.HasPrefix(s.FileExtension, ".") {
		s.FileExtension = "." + s.FileExtension
	}

	return s, nil
}

// ParseFile reads and parses the record at path.
func ParseFile(path string) (*Skill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	s, err := ParseRecord(NameFromPath(path), filepath.Ext(path), data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.SourcePath = path
	return s, nil
}

func nonNil(messages []Message) []Message {
	if messages == nil {
		return []Message{}
	}
	return messages
}
