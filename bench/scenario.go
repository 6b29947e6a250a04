package bench

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrAssetMissing  = errors.New("bench: wasm asset missing")
	ErrInvalidValue  = errors.New("bench: value takes at most one of text, hex or abi")
	ErrEmptyManifest = errors.New("bench: manifest has no scenarios")
	ErrNegativePad   = errors.New("bench: pad must not be negative")
)

type Scenario struct {
	Name   string
	Wasm   []byte
	Input  []byte
	Expect []byte // nil means any output is accepted
}

// Value is a byte string written in a manifest as text, hex or ABI-encoded
// string arguments, optionally behind a method selector.
type Value struct {
	Text   string   `yaml:"text"`
	Hex    string   `yaml:"hex"`
	ABI    []string `yaml:"abi"`
	Method string   `yaml:"method"`
}

func (v *Value) Bytes() ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	set := 0
	for _, ok := range []bool{v.Text != "", v.Hex != "", v.ABI != nil} {
		if ok {
			set++
		}
	}
	if set > 1 {
		return nil, ErrInvalidValue
	}

	var data []byte
	switch {
	case v.Hex != "":
		decoded, err := hex.DecodeString(strings.TrimPrefix(v.Hex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid hex value: %w", err)
		}
		data = decoded
	case v.ABI != nil:
		encoded, err := EncodeStrings(v.ABI...)
		if err != nil {
			return nil, err
		}
		data = encoded
	default:
		data = []byte(v.Text)
	}

	if v.Method != "" {
		data = append(MethodSelector(v.Method), data...)
	}
	return data, nil
}

type ScenarioConfig struct {
	Name   string `yaml:"name"`
	Wasm   string `yaml:"wasm"`
	Input  *Value `yaml:"input"`
	Expect *Value `yaml:"expect"`
}

type Manifest struct {
	Pad       *int             `yaml:"pad"`
	Genesis   string           `yaml:"genesis"`
	Scenarios []ScenarioConfig `yaml:"scenarios"`

	dir string
}

func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if len(manifest.Scenarios) == 0 {
		return nil, ErrEmptyManifest
	}
	if manifest.Pad != nil && *manifest.Pad < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativePad, *manifest.Pad)
	}
	manifest.dir = filepath.Dir(path)
	return &manifest, nil
}

// Scenario resolves one manifest entry. Wasm paths are relative to the
// manifest; a missing file yields ErrAssetMissing.
func (m *Manifest) Scenario(cfg ScenarioConfig) (Scenario, error) {
	path := cfg.Wasm
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.dir, path)
	}
	wasm, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Scenario{}, fmt.Errorf("%w: %s", ErrAssetMissing, path)
	}
	if err != nil {
		return Scenario{}, err
	}

	input, err := cfg.Input.Bytes()
	if err != nil {
		return Scenario{}, fmt.Errorf("scenario %s input: %w", cfg.Name, err)
	}
	expect, err := cfg.Expect.Bytes()
	if err != nil {
		return Scenario{}, fmt.Errorf("scenario %s expect: %w", cfg.Name, err)
	}

	return Scenario{
		Name:   cfg.Name,
		Wasm:   wasm,
		Input:  input,
		Expect: expect,
	}, nil
}

// Resolve loads every entry, returning the names skipped for missing assets
// separately.
func (m *Manifest) Resolve() ([]Scenario, []string, error) {
	var scenarios []Scenario
	var skipped []string
	for _, cfg := range m.Scenarios {
		scenario, err := m.Scenario(cfg)
		if errors.Is(err, ErrAssetMissing) {
			skipped = append(skipped, cfg.Name)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		scenarios = append(scenarios, scenario)
	}
	return scenarios, skipped, nil
}

// GenesisPath returns the manifest's genesis file, or "" for the default.
func (m *Manifest) GenesisPath() string {
	if m.Genesis == "" || filepath.IsAbs(m.Genesis) {
		return m.Genesis
	}
	return filepath.Join(m.dir, m.Genesis)
}
