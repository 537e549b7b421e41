package account

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	PresetStandard = "standard"
	PresetWhale    = "whale"

	DefaultCurrency = "USD"
	DefaultTTL      = 24 * time.Hour
	DefaultIDPrefix = "demo_"
)

var (
	StandardStartingBalance = decimal.NewFromInt(10_000)
	WhaleStartingBalance    = decimal.NewFromInt(1_000_000_000)
)

// Preset is a named starting configuration for demo accounts.
type Preset struct {
	Name            string
	StartingBalance decimal.Decimal
	Currency        string
	TTL             time.Duration
}

// BuiltinPresets returns the presets that ship with the server.
func BuiltinPresets() map[string]Preset {
	return map[string]Preset{
		PresetStandard: {Name: PresetStandard, StartingBalance: StandardStartingBalance, Currency: DefaultCurrency, TTL: DefaultTTL},
		PresetWhale:    {Name: PresetWhale, StartingBalance: WhaleStartingBalance, Currency: DefaultCurrency, TTL: DefaultTTL},
	}
}

type presetFile struct {
	Presets map[string]struct {
		StartingBalance string        `yaml:"starting_balance"`
		Currency        string        `yaml:"currency"`
		TTL             time.Duration `yaml:"ttl"`
	} `yaml:"presets"`
}

// LoadPresets reads presets from a YAML file and merges them over the built-in ones.
// Fields left out of a file entry fall back to the built-in standard preset.
func LoadPresets(path string) (map[string]Preset, error) {
	presets := BuiltinPresets()
	if path == "" {
		return presets, nil
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read presets file")
	}
	return parsePresets(payload, presets)
}

func parsePresets(payload []byte, presets map[string]Preset) (map[string]Preset, error) {
	var file presetFile
	if err := yaml.Unmarshal(payload, &file); err != nil {
		return nil, errors.Wrap(err, "decode presets file")
	}

	base := presets[PresetStandard]
	for name, raw := range file.Presets {
		p := Preset{Name: name, StartingBalance: base.StartingBalance, Currency: base.Currency, TTL: base.TTL}
		if raw.StartingBalance != "" {
			balance, err := decimal.NewFromString(raw.StartingBalance)
			if err != nil {
				return nil, errors.Wrapf(err, "preset %s: starting_balance", name)
			}
			p.StartingBalance = balance
		}
		if raw.Currency != "" {
			p.Currency = raw.Currency
		}
		if raw.TTL != 0 {
			p.TTL = raw.TTL
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		presets[name] = p
	}
	return presets, nil
}

// Validate checks that the preset can produce a solvent, expiring account.
func (p Preset) Validate() error {
	if p.StartingBalance.IsNegative() {
		return fmt.Errorf("preset %s: starting balance must not be negative, got %s", p.Name, p.StartingBalance)
	}
	if p.Currency == "" {
		return fmt.Errorf("preset %s: currency is required", p.Name)
	}
	if p.TTL <= 0 {
		return fmt.Errorf("preset %s: ttl must be positive, got %s", p.Name, p.TTL)
	}
	return nil
}
