// Package repository holds the sqlx-backed stores for products and users
// together with the sentinel errors handlers translate into HTTP statuses.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrConflict is returned when an insert or update would duplicate a
// product's natural key (name, mfr, type).  Handlers translate this into an
// HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrProductNotFound is returned when an update or delete matched no row.
var ErrProductNotFound = errors.New("product not found")

// ErrUsernameExists is returned by UserRepo.Create for a taken username.
var ErrUsernameExists = errors.New("username already exists")

// ErrUserNotFound is returned when no user row matches the lookup.
var ErrUserNotFound = errors.New("user not found")

const mysqlDuplicateEntry = 1062

// isDuplicateKey reports whether err is a uniqueness violation from either
// supported driver.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDuplicateEntry
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(se.Error(), "UNIQUE")
		}
	}
	return false
}
