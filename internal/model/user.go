package model

import "time"

// RoleUser is given to every newly registered account.
const RoleUser = "user"

// User represents an application user record as stored in the `users`
// table.  PasswordHash holds the encoded pbkdf2 value; rows created before
// hashing was introduced may still carry a legacy credential until the
// owner logs in again.
type User struct {
	ID           int64     `db:"id"`
	Username     string    `db:"username"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
}
