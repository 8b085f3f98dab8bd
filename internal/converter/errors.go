package converter

import "errors"

var (
	// ErrInvalidPluginType is returned when a kind is unknown or its factory
	// does not produce a usable plugin. The controller is left unchanged.
	ErrInvalidPluginType = errors.New("invalid plugin type")

	// ErrNullFactoryOrRegistry is returned when the controller or its kind
	// table is missing.
	ErrNullFactoryOrRegistry = errors.New("missing plugin kind table or controller")

	// ErrDuplicatePlugin is returned by Insert for a plugin the controller
	// already holds.
	ErrDuplicatePlugin = errors.New("plugin already belongs to controller")

	// ErrNotMember is returned when an operation names a plugin the
	// controller does not hold.
	ErrNotMember = errors.New("plugin does not belong to controller")
)
