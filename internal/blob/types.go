// Package blob re-exports the core artifact-storage abstractions for stable
// imports. Packages outside the blob facade must depend on blob.Store, never
// on the infra implementations directly.
package blob

import (
	"spendgraph/internal/blob/core"
)

type (
	// Driver identifies an artifact storage backend driver.
	Driver = core.Driver
	// PutOptions configures an artifact write.
	PutOptions = core.PutOptions
	// Info describes stored artifact metadata.
	Info = core.Info
	// Store is the interface for artifact storage backends.
	Store = core.Store
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory test driver.
	DriverMemory = core.DriverMemory
)
