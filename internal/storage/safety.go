package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/manav03panchal/fintrack/internal/errors"
)

// Free space thresholds for the directory holding the database.
const (
	// MinFreeSpace is required before a file store is opened.
	MinFreeSpace = 10 << 20
	// MinFreeSpaceWarning triggers a low-space warning.
	MinFreeSpaceWarning = 50 << 20
)

// Headroom grades the free space left for database writes.
type Headroom int

const (
	HeadroomOK Headroom = iota
	HeadroomLow
	HeadroomCritical
)

// DiskSpaceInfo describes the filesystem holding a path.
type DiskSpaceInfo struct {
	Path       string
	TotalBytes uint64
	FreeBytes  uint64
}

// FreePercent returns the percentage of free space.
func (d *DiskSpaceInfo) FreePercent() float64 {
	if d.TotalBytes == 0 {
		return 0
	}
	return float64(d.FreeBytes) / float64(d.TotalBytes) * 100
}

// FreeMB returns the free space in whole megabytes.
func (d *DiskSpaceInfo) FreeMB() uint64 {
	return d.FreeBytes >> 20
}

// Headroom grades FreeBytes against the thresholds.
func (d *DiskSpaceInfo) Headroom() Headroom {
	switch {
	case d.FreeBytes < MinFreeSpace:
		return HeadroomCritical
	case d.FreeBytes < MinFreeSpaceWarning:
		return HeadroomLow
	}
	return HeadroomOK
}

// CheckDiskSpace fails with ErrStorageUnavailable when the filesystem at
// path is nearly full. An unreadable filesystem is not treated as full.
func CheckDiskSpace(path string) error {
	info, err := GetDiskSpace(path)
	if err != nil || info.Headroom() != HeadroomCritical {
		return nil
	}
	return errors.NewSystemError(
		fmt.Sprintf("insufficient disk space for %s: %d MB free, need at least %d MB",
			info.Path, info.FreeMB(), MinFreeSpace>>20),
		errors.ErrStorageUnavailable,
	)
}

// CheckDiskSpaceWarning returns a warning message if disk space is low,
// or an empty string.
func CheckDiskSpaceWarning(path string) string {
	info, err := GetDiskSpace(path)
	if err != nil || info.Headroom() == HeadroomOK {
		return ""
	}
	return fmt.Sprintf("low disk space (%d MB free)", info.FreeMB())
}

// existingAncestor walks up from path to the first directory that exists,
// so the database directory can be checked before it is created.
func existingAncestor(path string) string {
	for {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}
