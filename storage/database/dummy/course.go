package dummydb

import (
	"context"

	"github.com/google/uuid"

	"github.com/tmalose/peerly/core"
	"github.com/tmalose/peerly/core/course"
	"github.com/tmalose/peerly/core/user"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) getCourse(id string) *course.Course {
	for _, crs := range repo.db.courses {
		if crs.ID == id {
			return crs
		}
	}
	return nil
}

func (repo *courseRepository) getTeam(id string) *course.Team {
	for _, team := range repo.db.teams {
		if team.ID == id {
			return team
		}
	}
	return nil
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.courses {
		if existing.Code == crs.Code {
			return course.Course{}, course.ErrCodeExists
		}
	}
	crs.ID = uuid.New().String()
	repo.db.courses = append(repo.db.courses, &crs)
	return crs, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, filter course.GetFilter, exec ...core.DBExecutor) (course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, crs := range repo.db.courses {
		if (filter.ID != "" && crs.ID == filter.ID) || (filter.Code != "" && crs.Code == filter.Code) {
			return *crs, nil
		}
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryCoursesByInstructor(ctx context.Context, instructorID string, exec ...core.DBExecutor) ([]course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	courses := make([]course.Course, 0)
	for _, crs := range repo.db.courses {
		if crs.InstructorID == instructorID {
			courses = append(courses, *crs)
		}
	}
	return courses, nil
}

func (repo *courseRepository) QueryCoursesByStudent(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	courses := make([]course.Course, 0)
	for _, enr := range repo.db.enrollments {
		if enr.studentID == studentID {
			if crs := repo.getCourse(enr.courseID); crs != nil {
				courses = append(courses, *crs)
			}
		}
	}
	return courses, nil
}

func (repo *courseRepository) EnrollStudent(ctx context.Context, courseID, studentID string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, enr := range repo.db.enrollments {
		if enr.courseID == courseID && enr.studentID == studentID {
			return course.ErrAlreadyEnrolled
		}
	}
	repo.db.enrollments = append(repo.db.enrollments, enrollment{courseID: courseID, studentID: studentID})
	return nil
}

func (repo *courseRepository) QueryStudents(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	students := make([]user.User, 0)
	for _, enr := range repo.db.enrollments {
		if enr.courseID == courseID {
			if usr := repo.db.getUser(enr.studentID); usr != nil {
				students = append(students, *usr)
			}
		}
	}
	return students, nil
}

func (repo *courseRepository) CreateTeam(ctx context.Context, team course.Team, exec ...core.DBExecutor) (course.Team, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	team.ID = uuid.New().String()
	repo.db.teams = append(repo.db.teams, &team)
	return team, nil
}

func (repo *courseRepository) AddTeamMember(ctx context.Context, teamID, userID string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	team := repo.getTeam(teamID)
	if team == nil {
		return course.ErrTeamNotFound
	}
	for _, m := range team.Members {
		if m.UserID == userID {
			return course.ErrAlreadyMember
		}
	}
	var name string
	if usr := repo.db.getUser(userID); usr != nil {
		name = usr.Name
	}
	team.Members = append(team.Members, course.TeamMember{UserID: userID, Name: name})
	return nil
}

func (repo *courseRepository) QueryTeams(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]course.Team, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	teams := make([]course.Team, 0)
	for _, team := range repo.db.teams {
		if team.CourseID == courseID {
			teams = append(teams, *team)
		}
	}
	return teams, nil
}
