package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tmalose/peerly/core"
)

type Course struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Code         string    `json:"code"`
	InstructorID string    `json:"instructor_id"`
	CreatedAt    time.Time `json:"created_at"` // UTC
}

type Team struct {
	ID       string       `json:"id"`
	CourseID string       `json:"course_id"`
	Name     string       `json:"name"`
	Members  []TeamMember `json:"members"`
}

type TeamMember struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// MemberIDs returns the team's roster in stored order.
func (t Team) MemberIDs() []string {
	ids := make([]string, 0, len(t.Members))
	for _, m := range t.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Code        string `json:"code" validate:"required"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Code = core.CleanString(nc.Code, true /* lower */)
	return validate.Struct(nc)
}

// NewTeam contains information needed to create a team within a Course.
type NewTeam struct {
	Name       string   `json:"name" validate:"required"`
	StudentIDs []string `json:"studentIds" validate:"required,min=1"`
}

func (nt *NewTeam) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	return validate.Struct(nt)
}

// EnrollStudents is an instructor's enroll-by-email request.
type EnrollStudents struct {
	Emails []string `json:"emails" validate:"required,min=1,dive,email"`
}

func (es *EnrollStudents) Validate(validate *validator.Validate) error {
	for i, email := range es.Emails {
		es.Emails[i] = core.CleanString(email, true /* lower */)
	}
	return validate.Struct(es)
}

// Batch reports: best-effort operations record per-item outcomes instead of aborting.

type EnrollmentFailure struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

type EnrollmentReport struct {
	Success []string            `json:"success"`
	Failed  []EnrollmentFailure `json:"failed"`
}

type MemberFailure struct {
	StudentID string `json:"studentId"`
	Reason    string `json:"reason"`
}

type MemberReport struct {
	Success []string        `json:"success"`
	Failed  []MemberFailure `json:"failed"`
}

// GetFilter selects a single Course; exactly one field should be set.
type GetFilter struct {
	ID   string
	Code string
}
