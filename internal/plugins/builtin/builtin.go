// Package builtin registers every plugin kind shipped with dnaconverter in
// plugin.DefaultRegistry. Import it for side effects.
package builtin

import (
	_ "dnaconverter/internal/plugins/clamp"
	_ "dnaconverter/internal/plugins/curve"
	_ "dnaconverter/internal/plugins/modifier"
)
