//go:build cgo

package storage

import (
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	cgoDriverAvailable = true
}
