package export

import "errors"

var (
	// ErrAuthenticationTimeout means the post-login marker never appeared.
	ErrAuthenticationTimeout = errors.New("export: authentication timed out")

	// ErrDeviceSelectionTimeout means the device selector or the configured
	// device entry never became available.
	ErrDeviceSelectionTimeout = errors.New("export: device selection timed out")
)
