// Package manifest loads batch files that list several rule files to sync
// in one invocation.
//
// # Manifest Format
//
// Manifests can be written in YAML or JSON format:
//
//	repositories:
//	  - rules: widget.conf
//	  - rules: /etc/releasesync/gadget.conf
//	    download_dir: /var/cache/gadget
//	options:
//	  continue_on_error: true
//	  concurrency: 2
//	  download_dir: downloads
//
// Relative paths resolve against the directory holding the manifest. An
// entry without download_dir downloads into a directory named after its
// rule file under options.download_dir.
//
// # Error Handling
//
// The package defines sentinel errors for common failure cases:
//   - ErrNoRepositories: manifest lists no rule files
//   - ErrEmptyRules: an entry is missing its rules path
//   - ErrDuplicateRules: two entries share a rule file, and so a ledger
//   - ErrInvalidFormat: file is not valid YAML/JSON
//   - ErrFileNotFound: manifest file does not exist
//   - ErrUnsupportedExt: unsupported file extension
package manifest
