package course

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/tmalose/peerly/core"
	"github.com/tmalose/peerly/core/user"
)

var (
	// errors
	ErrNotFound        = errors.New("course not found")
	ErrTeamNotFound    = errors.New("team not found")
	ErrNotOwner        = errors.New("course does not belong to this instructor")
	ErrCodeExists      = errors.New("course code already exists")
	ErrAlreadyEnrolled = errors.New("already enrolled in this course")
	ErrAlreadyMember   = errors.New("student is already a member of this team")
	ErrNotEnrolled     = errors.New("student not enrolled in course")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		GetCourse(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Course, error)
		QueryCoursesByInstructor(ctx context.Context, instructorID string, exec ...core.DBExecutor) ([]Course, error)
		QueryCoursesByStudent(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]Course, error)
		// EnrollStudent returns ErrAlreadyEnrolled when the (course, student) pair exists.
		EnrollStudent(ctx context.Context, courseID, studentID string, exec ...core.DBExecutor) error
		QueryStudents(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]user.User, error)
		CreateTeam(ctx context.Context, team Team, exec ...core.DBExecutor) (Team, error)
		// AddTeamMember returns ErrAlreadyMember when the (team, user) pair exists.
		AddTeamMember(ctx context.Context, teamID, userID string, exec ...core.DBExecutor) error
		// QueryTeams returns a course's teams with their members, in creation order.
		QueryTeams(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]Team, error)
	}

	ServiceInterface interface {
		Create(ctx context.Context, instructorID string, nc NewCourse) (Course, error)
		GetByID(ctx context.Context, id string) (Course, error)
		GetOwned(ctx context.Context, instructorID, courseID string) (Course, error)
		QueryByInstructor(ctx context.Context, instructorID string) ([]Course, error)
		QueryByStudent(ctx context.Context, studentID string) ([]Course, error)
		EnrollByEmails(ctx context.Context, instructorID, courseID string, es EnrollStudents) (EnrollmentReport, error)
		EnrollByCode(ctx context.Context, studentID, code string) (Course, error)
		CreateTeam(ctx context.Context, instructorID, courseID string, nt NewTeam) (Team, MemberReport, error)
		Teams(ctx context.Context, courseID string) ([]Team, error)
		Students(ctx context.Context, instructorID, courseID string) ([]user.User, error)
	}

	Service struct {
		repo    Repository
		usrRepo user.Repository
	}
)

var _ ServiceInterface = (*Service)(nil) // interface compliance check

func NewService(repo Repository, usrRepo user.Repository) *Service {
	return &Service{
		repo:    repo,
		usrRepo: usrRepo,
	}
}

func (svc *Service) Create(ctx context.Context, instructorID string, nc NewCourse) (Course, error) {
	if _, err := svc.repo.GetCourse(ctx, GetFilter{Code: nc.Code}); err == nil {
		return Course{}, core.NewValidationError(ErrCodeExists, core.FieldError{Field: "code", Error: ErrCodeExists.Error()})
	} else if errors.Cause(err) != ErrNotFound {
		return Course{}, err
	}

	crs := Course{
		Title:        nc.Title,
		Description:  nc.Description,
		Code:         nc.Code,
		InstructorID: instructorID,
		CreatedAt:    time.Now().UTC(),
	}
	return svc.repo.CreateCourse(ctx, crs)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, GetFilter{ID: id})
}

// GetOwned fetches a course and checks it belongs to the given instructor.
func (svc *Service) GetOwned(ctx context.Context, instructorID, courseID string) (Course, error) {
	crs, err := svc.repo.GetCourse(ctx, GetFilter{ID: courseID})
	if err != nil {
		return Course{}, err
	}
	if crs.InstructorID != instructorID {
		return Course{}, ErrNotOwner
	}
	return crs, nil
}

func (svc *Service) QueryByInstructor(ctx context.Context, instructorID string) ([]Course, error) {
	return svc.repo.QueryCoursesByInstructor(ctx, instructorID)
}

func (svc *Service) QueryByStudent(ctx context.Context, studentID string) ([]Course, error) {
	return svc.repo.QueryCoursesByStudent(ctx, studentID)
}

// EnrollByEmails enrolls students one by one; failures are collected per email
// and never abort the batch.
func (svc *Service) EnrollByEmails(ctx context.Context, instructorID, courseID string, es EnrollStudents) (EnrollmentReport, error) {
	crs, err := svc.GetOwned(ctx, instructorID, courseID)
	if err != nil {
		return EnrollmentReport{}, err
	}

	report := EnrollmentReport{Success: []string{}, Failed: []EnrollmentFailure{}}
	for _, email := range es.Emails {
		student, err := svc.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
		if err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				report.Failed = append(report.Failed, EnrollmentFailure{Email: email, Reason: "user not found"})
				continue
			}
			return report, err
		}
		if !student.IsStudent() {
			report.Failed = append(report.Failed, EnrollmentFailure{Email: email, Reason: "user is not a student"})
			continue
		}
		if err := svc.repo.EnrollStudent(ctx, crs.ID, student.ID); err != nil {
			report.Failed = append(report.Failed, EnrollmentFailure{Email: email, Reason: errors.Cause(err).Error()})
			continue
		}
		report.Success = append(report.Success, email)
	}
	return report, nil
}

func (svc *Service) EnrollByCode(ctx context.Context, studentID, code string) (Course, error) {
	crs, err := svc.repo.GetCourse(ctx, GetFilter{Code: core.CleanString(code, true /* lower */)})
	if err != nil {
		return Course{}, err
	}
	if err := svc.repo.EnrollStudent(ctx, crs.ID, studentID); err != nil {
		if errors.Cause(err) == ErrAlreadyEnrolled {
			return Course{}, core.NewValidationError(ErrAlreadyEnrolled)
		}
		return Course{}, err
	}
	return crs, nil
}

// CreateTeam creates the team then adds members best-effort: a student who is
// not enrolled, or already added, lands in the report instead of failing the call.
func (svc *Service) CreateTeam(ctx context.Context, instructorID, courseID string, nt NewTeam) (Team, MemberReport, error) {
	crs, err := svc.GetOwned(ctx, instructorID, courseID)
	if err != nil {
		return Team{}, MemberReport{}, err
	}

	team, err := svc.repo.CreateTeam(ctx, Team{CourseID: crs.ID, Name: nt.Name})
	if err != nil {
		return Team{}, MemberReport{}, err
	}

	students, err := svc.repo.QueryStudents(ctx, crs.ID)
	if err != nil {
		return team, MemberReport{}, err
	}
	enrolled := make(map[string]user.User, len(students))
	for _, s := range students {
		enrolled[s.ID] = s
	}

	report := MemberReport{Success: []string{}, Failed: []MemberFailure{}}
	for _, studentID := range nt.StudentIDs {
		student, ok := enrolled[studentID]
		if !ok {
			report.Failed = append(report.Failed, MemberFailure{StudentID: studentID, Reason: ErrNotEnrolled.Error()})
			continue
		}
		if err := svc.repo.AddTeamMember(ctx, team.ID, student.ID); err != nil {
			report.Failed = append(report.Failed, MemberFailure{StudentID: studentID, Reason: errors.Cause(err).Error()})
			continue
		}
		team.Members = append(team.Members, TeamMember{UserID: student.ID, Name: student.Name})
		report.Success = append(report.Success, studentID)
	}
	return team, report, nil
}

func (svc *Service) Teams(ctx context.Context, courseID string) ([]Team, error) {
	return svc.repo.QueryTeams(ctx, courseID)
}

// Students lists a course's roster, for the owning instructor only.
func (svc *Service) Students(ctx context.Context, instructorID, courseID string) ([]user.User, error) {
	crs, err := svc.GetOwned(ctx, instructorID, courseID)
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryStudents(ctx, crs.ID)
}
