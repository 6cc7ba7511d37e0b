// Package dummydb provides in-memory repositories for tests and local development.
package dummydb

import (
	"sync"

	"github.com/tmalose/peerly/core/course"
	"github.com/tmalose/peerly/core/review"
	"github.com/tmalose/peerly/core/user"
)

type enrollment struct {
	courseID  string
	studentID string
}

// DB holds all tables behind one lock so multi-table operations stay atomic.
type DB struct {
	sync.RWMutex

	users       []*user.User
	courses     []*course.Course
	enrollments []enrollment
	teams       []*course.Team
	templates   []*review.Template
	reviews     []*review.Review
	assignments []*review.Assignment
	responses   []*review.Response
}

func Open() (*DB, error) {
	return &DB{}, nil
}

func (db *DB) getUser(id string) *user.User {
	for _, u := range db.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

// Reset drops all rows; test helper.
func (db *DB) Reset() {
	db.Lock()
	defer db.Unlock()
	db.users = nil
	db.courses = nil
	db.enrollments = nil
	db.teams = nil
	db.templates = nil
	db.reviews = nil
	db.assignments = nil
	db.responses = nil
}
