package manifest

import "errors"

// Sentinel errors for the manifest package
var (
	// ErrNoRepositories indicates the manifest lists no rule files
	ErrNoRepositories = errors.New("manifest must list at least one repository")

	// ErrEmptyRules indicates an entry is missing the required rules field
	ErrEmptyRules = errors.New("repository rules path cannot be empty")

	// ErrDuplicateRules indicates two entries point at the same rule file
	ErrDuplicateRules = errors.New("rule file listed more than once")

	// ErrInvalidFormat indicates the manifest file is not valid YAML or JSON
	ErrInvalidFormat = errors.New("manifest must be valid YAML or JSON")

	// ErrFileNotFound indicates the manifest file does not exist
	ErrFileNotFound = errors.New("manifest file not found")

	// ErrUnsupportedExt indicates an unsupported file extension
	ErrUnsupportedExt = errors.New("unsupported file extension (use .yaml, .yml, or .json)")
)
