package course_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/tmalose/peerly/core"
	"github.com/tmalose/peerly/core/course"
	"github.com/tmalose/peerly/core/user"
	dummydb "github.com/tmalose/peerly/storage/database/dummy"
	testutil "github.com/tmalose/peerly/tests"
)

var ctx = context.Background()

func newTestService(t *testing.T) (*course.Service, user.Repository, course.Repository) {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	usrRepo := dummydb.NewUserRepository(db)
	crsRepo := dummydb.NewCourseRepository(db)
	return course.NewService(crsRepo, usrRepo), usrRepo, crsRepo
}

func TestServiceCreate(t *testing.T) {
	svc, usrRepo, _ := newTestService(t)
	instructor := testutil.CreateUser(t, usrRepo, "Prof", "prof@peerly.test", "", []string{user.RoleInstructor}, true)

	crs, err := svc.Create(ctx, instructor.ID, course.NewCourse{Title: "Algorithms", Code: "cs201"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if crs.ID == "" || crs.InstructorID != instructor.ID || crs.Code != "cs201" {
		t.Errorf("Create() = %+v", crs)
	}

	t.Run("duplicate code", func(t *testing.T) {
		_, err := svc.Create(ctx, instructor.ID, course.NewCourse{Title: "Algorithms II", Code: "cs201"})
		vErr, ok := errors.Cause(err).(*core.ValidationError)
		if !ok {
			t.Fatalf("Create() error = %v, want a validation error", err)
		}
		if len(vErr.Fields) != 1 || vErr.Fields[0].Field != "code" {
			t.Errorf("Create() error fields = %+v", vErr.Fields)
		}
	})
}

func TestServiceGetOwned(t *testing.T) {
	svc, usrRepo, crsRepo := newTestService(t)
	owner := testutil.CreateUser(t, usrRepo, "Prof", "prof@peerly.test", "", []string{user.RoleInstructor}, true)
	other := testutil.CreateUser(t, usrRepo, "Other Prof", "other@peerly.test", "", []string{user.RoleInstructor}, true)
	crs := testutil.CreateCourse(t, crsRepo, "Algorithms", "cs201", owner.ID)

	if _, err := svc.GetOwned(ctx, owner.ID, crs.ID); err != nil {
		t.Errorf("GetOwned() failed: %v", err)
	}
	if _, err := svc.GetOwned(ctx, other.ID, crs.ID); errors.Cause(err) != course.ErrNotOwner {
		t.Errorf("GetOwned() error = %v, want %v", err, course.ErrNotOwner)
	}
	if _, err := svc.GetOwned(ctx, owner.ID, "nope"); errors.Cause(err) != course.ErrNotFound {
		t.Errorf("GetOwned() error = %v, want %v", err, course.ErrNotFound)
	}
}

func TestServiceEnrollByEmails(t *testing.T) {
	svc, usrRepo, crsRepo := newTestService(t)
	instructor := testutil.CreateUser(t, usrRepo, "Prof", "prof@peerly.test", "", []string{user.RoleInstructor}, true)
	crs := testutil.CreateCourse(t, crsRepo, "Algorithms", "cs201", instructor.ID)
	student := testutil.CreateUser(t, usrRepo, "Anna", "anna@peerly.test", "", []string{user.RoleStudent}, true)
	enrolled := testutil.CreateUser(t, usrRepo, "Ben", "ben@peerly.test", "", []string{user.RoleStudent}, true)
	testutil.EnrollStudents(t, crsRepo, crs.ID, enrolled.ID)

	es := course.EnrollStudents{Emails: []string{
		student.Email,
		"ghost@peerly.test",  // no such user
		instructor.Email,     // not a student
		enrolled.Email,       // already enrolled
	}}
	report, err := svc.EnrollByEmails(ctx, instructor.ID, crs.ID, es)
	if err != nil {
		t.Fatalf("EnrollByEmails() failed: %v", err)
	}
	if len(report.Success) != 1 || report.Success[0] != student.Email {
		t.Errorf("EnrollByEmails() success = %v, want [%s]", report.Success, student.Email)
	}
	wantFailed := map[string]string{
		"ghost@peerly.test": "user not found",
		instructor.Email:    "user is not a student",
		enrolled.Email:      course.ErrAlreadyEnrolled.Error(),
	}
	if len(report.Failed) != len(wantFailed) {
		t.Fatalf("EnrollByEmails() failed = %+v, want %d entries", report.Failed, len(wantFailed))
	}
	for _, f := range report.Failed {
		if want := wantFailed[f.Email]; f.Reason != want {
			t.Errorf("failure for %s = %q, want %q", f.Email, f.Reason, want)
		}
	}

	students, err := svc.Students(ctx, instructor.ID, crs.ID)
	if err != nil {
		t.Fatalf("Students() failed: %v", err)
	}
	if len(students) != 2 {
		t.Errorf("Students() returned %d, want 2", len(students))
	}

	t.Run("not owner", func(t *testing.T) {
		other := testutil.CreateUser(t, usrRepo, "Other Prof", "other@peerly.test", "", []string{user.RoleInstructor}, true)
		if _, err := svc.EnrollByEmails(ctx, other.ID, crs.ID, es); errors.Cause(err) != course.ErrNotOwner {
			t.Errorf("EnrollByEmails() error = %v, want %v", err, course.ErrNotOwner)
		}
	})
}

func TestServiceEnrollByCode(t *testing.T) {
	svc, usrRepo, crsRepo := newTestService(t)
	instructor := testutil.CreateUser(t, usrRepo, "Prof", "prof@peerly.test", "", []string{user.RoleInstructor}, true)
	crs := testutil.CreateCourse(t, crsRepo, "Algorithms", "cs201", instructor.ID)
	student := testutil.CreateUser(t, usrRepo, "Anna", "anna@peerly.test", "", []string{user.RoleStudent}, true)

	got, err := svc.EnrollByCode(ctx, student.ID, " CS201 ") // cleaned and lowered
	if err != nil {
		t.Fatalf("EnrollByCode() failed: %v", err)
	}
	if got.ID != crs.ID {
		t.Errorf("EnrollByCode() = %+v, want course %s", got, crs.ID)
	}

	t.Run("already enrolled", func(t *testing.T) {
		_, err := svc.EnrollByCode(ctx, student.ID, "cs201")
		if _, ok := errors.Cause(err).(*core.ValidationError); !ok {
			t.Errorf("EnrollByCode() error = %v, want a validation error", err)
		}
	})

	t.Run("unknown code", func(t *testing.T) {
		if _, err := svc.EnrollByCode(ctx, student.ID, "nope"); errors.Cause(err) != course.ErrNotFound {
			t.Errorf("EnrollByCode() error = %v, want %v", err, course.ErrNotFound)
		}
	})
}

func TestServiceCreateTeam(t *testing.T) {
	svc, usrRepo, crsRepo := newTestService(t)
	instructor := testutil.CreateUser(t, usrRepo, "Prof", "prof@peerly.test", "", []string{user.RoleInstructor}, true)
	crs := testutil.CreateCourse(t, crsRepo, "Algorithms", "cs201", instructor.ID)
	anna := testutil.CreateUser(t, usrRepo, "Anna", "anna@peerly.test", "", []string{user.RoleStudent}, true)
	ben := testutil.CreateUser(t, usrRepo, "Ben", "ben@peerly.test", "", []string{user.RoleStudent}, true)
	outsider := testutil.CreateUser(t, usrRepo, "Carl", "carl@peerly.test", "", []string{user.RoleStudent}, true)
	testutil.EnrollStudents(t, crsRepo, crs.ID, anna.ID, ben.ID)

	team, report, err := svc.CreateTeam(ctx, instructor.ID, crs.ID, course.NewTeam{
		Name:       "Team 1",
		StudentIDs: []string{anna.ID, ben.ID, outsider.ID},
	})
	if err != nil {
		t.Fatalf("CreateTeam() failed: %v", err)
	}
	if team.ID == "" || team.CourseID != crs.ID || team.Name != "Team 1" {
		t.Errorf("CreateTeam() = %+v", team)
	}
	if len(report.Success) != 2 {
		t.Errorf("CreateTeam() success = %v, want [%s %s]", report.Success, anna.ID, ben.ID)
	}
	if len(report.Failed) != 1 || report.Failed[0].StudentID != outsider.ID ||
		report.Failed[0].Reason != course.ErrNotEnrolled.Error() {
		t.Errorf("CreateTeam() failed = %+v", report.Failed)
	}

	teams, err := svc.Teams(ctx, crs.ID)
	if err != nil {
		t.Fatalf("Teams() failed: %v", err)
	}
	if len(teams) != 1 {
		t.Fatalf("Teams() returned %d, want 1", len(teams))
	}
	gotIDs := teams[0].MemberIDs()
	if len(gotIDs) != 2 || gotIDs[0] != anna.ID || gotIDs[1] != ben.ID {
		t.Errorf("team members = %v, want [%s %s]", gotIDs, anna.ID, ben.ID)
	}
	if teams[0].Members[0].Name != anna.Name {
		t.Errorf("member name = %q, want %q", teams[0].Members[0].Name, anna.Name)
	}
}
