package plugin

import (
	"fmt"
	"reflect"

	"gopkg.in/yaml.v3"
)

// ResetSettings zeroes the settings struct cfg points at, so a following
// decode replaces the settings instead of merging into them.
func ResetSettings(cfg Configurable) {
	v := reflect.ValueOf(cfg.Settings())
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return
	}
	v.Elem().Set(reflect.Zero(v.Elem().Type()))
}

// DecodeSettings replaces p's settings with the YAML in data. Plugins that
// are not Configurable accept only empty input.
func DecodeSettings(p Plugin, data []byte) error {
	cfg, ok := p.(Configurable)
	if !ok {
		if len(data) == 0 {
			return nil
		}
		return fmt.Errorf("plugin kind %s has no settings", p.Kind())
	}
	ResetSettings(cfg)
	if err := yaml.Unmarshal(data, cfg.Settings()); err != nil {
		return fmt.Errorf("failed to decode %s settings: %w", p.Kind(), err)
	}
	return nil
}
