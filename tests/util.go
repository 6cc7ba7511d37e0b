package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/tmalose/peerly/core/course"
	"github.com/tmalose/peerly/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateCourse(
	t *testing.T,
	repo course.Repository,
	title, code, instructorID string,
) course.Course {
	t.Helper()

	crs, err := repo.CreateCourse(context.Background(), course.Course{
		Title:        title,
		Code:         code,
		InstructorID: instructorID,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

func EnrollStudents(t *testing.T, repo course.Repository, courseID string, studentIDs ...string) {
	t.Helper()

	for _, id := range studentIDs {
		if err := repo.EnrollStudent(context.Background(), courseID, id); err != nil {
			t.Fatalf("EnrollStudents() failed: %v", err)
		}
	}
}

func CreateTeam(t *testing.T, repo course.Repository, courseID, name string, memberIDs ...string) course.Team {
	t.Helper()

	team, err := repo.CreateTeam(context.Background(), course.Team{CourseID: courseID, Name: name})
	if err != nil {
		t.Fatalf("CreateTeam() failed: %v", err)
	}
	for _, id := range memberIDs {
		if err = repo.AddTeamMember(context.Background(), team.ID, id); err != nil {
			t.Fatalf("CreateTeam() failed: %v", err)
		}
	}
	return team
}
