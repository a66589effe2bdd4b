package builder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// ConfigFilename is the optional per-project configuration file
const ConfigFilename = "Rebuild.toml"

var defaultProfiles = map[string]ProfileSection{
	"release": {
		OptLevel: int64(3),
	},
	"debug": {
		OptLevel: "", // no -O
		Cflags:   []string{"-g"},
	},
}

type Config struct {
	Project   ProjectSection            `toml:"project"`
	Toolchain ToolchainSection          `toml:"toolchain"`
	Profile   map[string]ProfileSection `toml:"profile"`
}

// DefaultConfig is used when a project has no Rebuild.toml
func DefaultConfig() *Config {
	return &Config{Profile: maps.Clone(defaultProfiles)}
}

func (c Config) Profiles() []string {
	profiles := make([]string, 0, len(c.Profile))
	for k := range c.Profile {
		profiles = append(profiles, k)
	}
	slices.Sort(profiles)
	return profiles
}

// Layout resolves the configured directories against the project directory
func (c Config) Layout(basedir string) Layout {
	l := NewLayout(basedir)
	if c.Project.Sources != "" {
		l.SourceDir = resolvePath(basedir, c.Project.Sources)
	}
	if c.Project.Output != "" {
		l.OutputDir = resolvePath(basedir, c.Project.Output)
	}
	if len(c.Toolchain.Extensions) > 0 {
		l.Extensions = c.Toolchain.Extensions
	}
	name := c.Project.Name
	if name == "" {
		name = defaultArtifact
	}
	l.Artifact = filepath.Join(l.OutputDir, artifactName(name))
	return l
}

func resolvePath(basedir, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(basedir, path)
}

// Cflags returns the profile flags followed by the toolchain flags
func (c Config) Cflags(profile string) ([]string, error) {
	prof, ok := c.Profile[profile]
	if !ok {
		return nil, fmt.Errorf("unknown profile %q, known profiles: %s", profile, strings.Join(c.Profiles(), ", "))
	}
	var cflags []string
	if level := optLevel(prof.OptLevel); level != "" {
		cflags = append(cflags, "-O"+level)
	}
	cflags = append(cflags, prof.Cflags...)
	cflags = append(cflags, c.Toolchain.Cflags...)
	return cflags, nil
}

// optLevel renders an opt-level value, which TOML may give as an integer or a string
func optLevel(v any) string {
	switch v := v.(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case string:
		return v
	default:
		return ""
	}
}

// ProfileSection defines the [profile.*] sections
type ProfileSection struct {
	OptLevel any      `toml:"opt-level"`
	Cflags   []string `toml:"cflags"`
}

// ProjectSection defines the [project] section
type ProjectSection struct {
	Name     string `toml:"name"`     // artifact name, "target" by default
	Sources  string `toml:"sources"`  // source root, "src" by default
	Output   string `toml:"output"`   // output root, "out" by default
	Prebuild string `toml:"prebuild"` // expression that must evaluate to true before building
}

// ToolchainSection defines the [toolchain(.*)] section
type ToolchainSection struct {
	Compiler   string   `toml:"compiler"`
	Linker     string   `toml:"linker"`
	Extensions []string `toml:"extensions"`
	Cflags     []string `toml:"cflags"`
	Ldflags    []string `toml:"ldflags"`
}

// mergeStructs merges src into dst: slices are appended, maps merged, bools or'ed
// and any other non-zero field overwrites
func mergeStructs(dst, src any) error {
	dstVal := reflect.ValueOf(dst)
	if dstVal.Kind() != reflect.Pointer || dstVal.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("dst must be a pointer to a struct")
	}

	dstElem := dstVal.Elem()
	srcVal := reflect.ValueOf(src)

	if srcVal.Kind() == reflect.Pointer {
		srcVal = srcVal.Elem()
	}

	if srcVal.Kind() != reflect.Struct {
		return fmt.Errorf("src must be a struct or a pointer to a struct")
	}

	if dstElem.Type() != srcVal.Type() {
		return fmt.Errorf("dst and src must be of the same struct type")
	}

	for i := range srcVal.NumField() {
		srcField := srcVal.Field(i)
		dstField := dstElem.Field(i)

		if !dstField.CanSet() {
			continue
		}

		switch dstField.Kind() {
		case reflect.Slice:
			if !srcField.IsNil() {
				dstField.Set(reflect.AppendSlice(dstField, srcField))
			}
		case reflect.Map:
			if !srcField.IsNil() {
				if dstField.IsNil() {
					dstField.Set(reflect.MakeMap(dstField.Type()))
				}
				for _, key := range srcField.MapKeys() {
					dstField.SetMapIndex(key, srcField.MapIndex(key))
				}
			}
		case reflect.Bool:
			dstField.SetBool(dstField.Bool() || srcField.Bool())
		default:
			if !srcField.IsZero() {
				dstField.Set(srcField)
			}
		}
	}

	return nil
}

// merge merges src into dst, a pointer to either a struct or a map
func merge(dst, src any) error {
	dstVal := reflect.ValueOf(dst)
	if dstVal.Kind() != reflect.Pointer || dstVal.Elem().Kind() != reflect.Map {
		return mergeStructs(dst, src)
	}

	dstMap := dstVal.Elem()
	srcMap := reflect.ValueOf(src)
	if srcMap.Kind() != reflect.Map || srcMap.Type() != dstMap.Type() {
		return fmt.Errorf("dst and src must be of the same map type")
	}
	if srcMap.IsNil() {
		return nil
	}
	if dstMap.IsNil() {
		dstMap.Set(reflect.MakeMap(dstMap.Type()))
	}
	for _, key := range srcMap.MapKeys() {
		dstMap.SetMapIndex(key, srcMap.MapIndex(key))
	}
	return nil
}

func remarshal(data any, dst any) error {
	b, err := toml.Marshal(data)
	if err != nil {
		return err
	}
	return toml.Unmarshal(b, dst)
}

// unmarshalSection parses a section without conditional logic
func unmarshalSection(rawCfg map[string]any, name string, dst any) error {
	if data, ok := rawCfg[name]; ok {
		if err := remarshal(data, dst); err != nil {
			return fmt.Errorf("failed to parse [%s] section: %w", name, err)
		}
	}
	return nil
}

// unmarshalConditionalSection parses a section whose subtables may be keyed by an
// expression, e.g. [toolchain.'target_os == "windows"']. Subtables whose expression
// evaluates to true are merged into the base section.
func unmarshalConditionalSection[T any](rawCfg map[string]any, name string, dst *T, env ConfigEnv) error {
	sectionData, ok := rawCfg[name]
	if !ok {
		return nil
	}

	sectionMap, ok := sectionData.(map[string]any)
	if !ok {
		return fmt.Errorf("invalid [%s] section format: expected a table", name)
	}

	baseFields := make(map[string]any)
	conditionalFields := make(map[string]map[string]any)

	for key, val := range sectionMap {
		if subMap, ok := val.(map[string]any); ok {
			_, err := expr.Compile(key, expr.Env(env), expr.AsBool())
			if err == nil {
				conditionalFields[key] = subMap
			} else {
				baseFields[key] = val
			}
		} else {
			baseFields[key] = val
		}
	}

	if len(baseFields) > 0 {
		if err := remarshal(baseFields, dst); err != nil {
			return fmt.Errorf("failed to parse base [%s] section: %w", name, err)
		}
	}

	// evaluate in a stable order so appended flags don't depend on map iteration
	for _, expression := range slices.Sorted(maps.Keys(conditionalFields)) {
		program, err := expr.Compile(expression, expr.Env(env), expr.AsBool())
		if err != nil {
			return fmt.Errorf("failed to compile expression for [%s.%q]: %w", name, expression, err)
		}

		result, err := expr.Run(program, env)
		if err != nil {
			return fmt.Errorf("failed to run expression for [%s.%q]: %w", name, expression, err)
		}
		if matched, ok := result.(bool); !ok || !matched {
			continue
		}

		var condSection T
		if err := remarshal(conditionalFields[expression], &condSection); err != nil {
			return fmt.Errorf("failed to parse conditional section [%s.%q]: %w", name, expression, err)
		}
		if err := merge(dst, condSection); err != nil {
			return fmt.Errorf("failed to merge conditional section [%s.%q]: %w", name, expression, err)
		}
	}

	return nil
}

var exprRegex = regexp.MustCompile(`\{\{(.+?)\}\}`)

// evaluateString finds and evaluates all {{...}} expressions in a string
func evaluateString(s string, env ConfigEnv) (string, error) {
	matches := exprRegex.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	var sb strings.Builder
	lastIndex := 0

	for _, m := range matches {
		sb.WriteString(s[lastIndex:m[0]])

		expression := strings.TrimSpace(s[m[2]:m[3]])
		program, err := expr.Compile(expression, expr.Env(env))
		if err != nil {
			return "", fmt.Errorf("failed to compile expression %q: %w", expression, err)
		}

		result, err := expr.Run(program, env)
		if err != nil {
			return "", fmt.Errorf("failed to run expression %q: %w", expression, err)
		}

		fmt.Fprintf(&sb, "%v", result)
		lastIndex = m[1]
	}

	sb.WriteString(s[lastIndex:])

	return sb.String(), nil
}

// processExpressions recursively walks the parsed TOML data and evaluates expressions in strings
func processExpressions(data any, env ConfigEnv) (any, error) {
	switch v := data.(type) {
	case map[string]any:
		for key, val := range v {
			processedVal, err := processExpressions(val, env)
			if err != nil {
				return nil, err
			}
			v[key] = processedVal
		}
		return v, nil
	case []any:
		for i, item := range v {
			processedItem, err := processExpressions(item, env)
			if err != nil {
				return nil, err
			}
			v[i] = processedItem
		}
		return v, nil
	case string:
		return evaluateString(v, env)
	default:
		return data, nil
	}
}

func ParseConfig(rdr io.Reader, env ConfigEnv) (*Config, error) {
	var rawConfig map[string]any
	dec := toml.NewDecoder(rdr)
	if err := dec.Decode(&rawConfig); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			return nil, errors.New(derr.String())
		}
		return nil, err
	}

	// prebuild is an expression itself, evaluated later
	var prebuild any
	if project, ok := rawConfig["project"].(map[string]any); ok {
		prebuild = project["prebuild"]
		delete(project, "prebuild")
	}

	processedConfig, err := processExpressions(rawConfig, env)
	if err != nil {
		return nil, fmt.Errorf("error processing expressions in config: %w", err)
	}
	rawConfig = processedConfig.(map[string]any)

	cfg := DefaultConfig()

	if err := unmarshalSection(rawConfig, "project", &cfg.Project); err != nil {
		return nil, err
	}
	if s, ok := prebuild.(string); ok {
		cfg.Project.Prebuild = s
	} else if prebuild != nil {
		return nil, fmt.Errorf("project.prebuild must be a string, got %T", prebuild)
	}
	if err := unmarshalConditionalSection(rawConfig, "toolchain", &cfg.Toolchain, env); err != nil {
		return nil, err
	}
	if err := unmarshalConditionalSection(rawConfig, "profile", &cfg.Profile, env); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ParseConfigFromFile parses a config file from a filepath
func ParseConfigFromFile(path string, env ConfigEnv) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ParseConfig(bufio.NewReader(f), env)
}

// LoadConfig loads <dir>/.env (if any) into the process environment, then parses
// <dir>/Rebuild.toml, falling back to the defaults when there is none
func LoadConfig(dir string) (*Config, ConfigEnv, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, ConfigEnv{}, fmt.Errorf("failed to load .env: %w", err)
	}

	env := NewConfigEnv(dir)
	cfg, err := ParseConfigFromFile(filepath.Join(dir, ConfigFilename), env)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), env, nil
	}
	if err != nil {
		return nil, env, fmt.Errorf("%s: %w", ConfigFilename, err)
	}
	return cfg, env, nil
}

//
// expr-lang helpers
//

// RunPrebuild evaluates project.prebuild, which must return true for the build to proceed
func (cfg Config) RunPrebuild(env ConfigEnv) error {
	if cfg.Project.Prebuild == "" {
		return nil
	}

	program, err := expr.Compile(cfg.Project.Prebuild, expr.Env(env))
	if err != nil {
		return fmt.Errorf("failed to compile prebuild check: %w", err)
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return fmt.Errorf("failed to run prebuild check: %w", err)
	}

	if result, ok := result.(bool); !ok || !result {
		return fmt.Errorf("%w\n%s", errPrebuildFail, cfg.Project.Prebuild)
	}

	return nil
}

type ConfigEnv struct {
	TargetOS   string            `expr:"target_os"`
	TargetArch string            `expr:"target_arch"`
	Environ    map[string]string `expr:"environ"`
	basedir    string
}

func NewConfigEnv(basedir string) ConfigEnv {
	environ := make(map[string]string)
	for _, e := range os.Environ() {
		if k, v, ok := strings.Cut(e, "="); ok {
			environ[k] = v
		}
	}

	return ConfigEnv{
		TargetOS:   runtime.GOOS,
		TargetArch: runtime.GOARCH,
		Environ:    environ,
		basedir:    basedir,
	}
}

func (env ConfigEnv) path(path string) (string, error) {
	fullPath := filepath.Join(env.basedir, path)
	rel, err := filepath.Rel(env.basedir, fullPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside of project directory %q", path, env.basedir)
	}
	return fullPath, nil
}

// Exists reports whether path exists inside the project directory
func (env ConfigEnv) Exists(path string) (bool, error) {
	fullPath, err := env.path(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(fullPath)
	return err == nil, nil
}

func (env ConfigEnv) ReadFile(path string) (string, error) {
	fullPath, err := env.path(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Patch applies a diff-match-patch patch to a file in the project directory and
// reports whether any hunk applied
func (env ConfigEnv) Patch(path, patchText string) (bool, error) {
	fullPath, err := env.path(path)
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return false, err
	}

	dmp := diffmatchpatch.New()
	patches, err := dmp.PatchFromText(patchText)
	if err != nil {
		return false, err
	}
	patchedText, results := dmp.PatchApply(patches, string(data))
	if !slices.Contains(results, true) {
		return false, nil // nothing was applied, nothing to write
	}

	if err := os.WriteFile(fullPath, []byte(patchedText), 0o644); err != nil {
		return false, err
	}
	return true, nil
}
