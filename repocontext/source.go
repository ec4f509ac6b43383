/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package repocontext

import "time"

// Source abstracts the read-only repository snapshot a context is built
// from. Implementations must be stable for the lifetime of a session: the
// same Source must report the same files and content on every call.
type Source interface {
	// Files returns every tracked file path, sorted lexically.
	Files() ([]string, error)
	// Read returns the content of the file at path.
	Read(path string) ([]byte, error)
	// LastModified returns the time of the last recorded change to path.
	// The zero time means no history is available for the path.
	LastModified(path string) time.Time
	// Export copies the snapshot's working tree into dir, which must be an
	// existing empty directory. Used to stage sandboxes for patch
	// application and check execution.
	Export(dir string) error
}
