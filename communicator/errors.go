package communicator

import "errors"

// Common errors returned by the communicator package.
var (
	// ErrNilGenerator is returned when a nil data generator is added or removed.
	ErrNilGenerator = errors.New("generator cannot be null")

	// ErrNilProvider is returned when a nil data provider is bound.
	ErrNilProvider = errors.New("data provider cannot be null")

	// ErrNegativePushSize is returned by SetMinPushSize for negative sizes.
	ErrNegativePushSize = errors.New("value cannot be negative")

	// ErrFilterSlotInvalid is returned by a filter slot after the data
	// provider it was issued for has been replaced.
	ErrFilterSlotInvalid = errors.New("filter slot is no longer valid after data provider has been changed")

	// ErrRemoveActiveDataHandler is returned when removal of the built-in
	// key writing generator is attempted.
	ErrRemoveActiveDataHandler = errors.New("the active data handler cannot be removed")
)
