package models

import "time"

// Course is a catalog entry with a fixed seat ceiling and a derived
// enrollment counter. CurrentEnrollment must always equal the number of
// non-rejected enrollment rows for the course; it is adjusted inside the
// same transaction as every enrollment mutation.
type Course struct {
	ID                string    `db:"id" json:"id"`
	Title             string    `db:"title" json:"title"`
	Credits           int       `db:"credits" json:"credits"`
	Description       string    `db:"description" json:"description,omitempty"`
	MaxCapacity       int       `db:"max_capacity" json:"max_capacity"`
	CurrentEnrollment int       `db:"current_enrollment" json:"current_enrollment"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// SeatsLeft returns the remaining admission headroom.
func (c Course) SeatsLeft() int {
	left := c.MaxCapacity - c.CurrentEnrollment
	if left < 0 {
		return 0
	}
	return left
}

// CourseFilter provides filters for catalog listing.
type CourseFilter struct {
	Query    string
	Page     int
	PageSize int
}
