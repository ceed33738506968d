package storage

import (
	"fmt"

	_ "modernc.org/sqlite"
)

// Driver names registered with database/sql.
const (
	DriverSQLite = "sqlite"  // modernc.org/sqlite, pure Go
	DriverCGO    = "sqlite3" // github.com/mattn/go-sqlite3, cgo builds only
)

// cgoDriverAvailable is set by driver_cgo.go when the binary is built with cgo.
var cgoDriverAvailable bool

// checkDriver reports whether the named driver is usable in this build.
func checkDriver(name string) error {
	switch name {
	case "", DriverSQLite:
		return nil
	case DriverCGO:
		if !cgoDriverAvailable {
			return fmt.Errorf("driver %q requires a cgo build", name)
		}
		return nil
	default:
		return fmt.Errorf("unknown sqlite driver %q", name)
	}
}

// fileDSN builds a data source name enabling WAL and a busy timeout in the
// syntax each driver understands.
func fileDSN(driver, path string) string {
	if driver == DriverCGO {
		return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	}
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
}
