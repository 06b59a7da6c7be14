package models

import "time"

// Student is the academic profile an enrollment belongs to. Linked to an
// app user by email; the link is resolved by the external auth layer.
type Student struct {
	ID        int64     `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Email     string    `db:"email" json:"email"`
	Program   string    `db:"program" json:"program,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
