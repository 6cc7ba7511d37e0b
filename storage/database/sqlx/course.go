package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/tmalose/peerly/core"
	"github.com/tmalose/peerly/core/course"
	"github.com/tmalose/peerly/core/user"
)

type courseRow struct {
	ID           string    `db:"id"`
	Title        string    `db:"title"`
	Description  string    `db:"description"`
	Code         string    `db:"code"`
	InstructorID string    `db:"instructor_id"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r courseRow) course() course.Course {
	return course.Course{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		Code:         r.Code,
		InstructorID: r.InstructorID,
		CreatedAt:    r.CreatedAt,
	}
}

type teamMemberRow struct {
	TeamID     string    `db:"team_id"`
	TeamName   string    `db:"team_name"`
	CourseID   string    `db:"course_id"`
	CreatedAt  time.Time `db:"created_at"`
	StudentID  sql.NullString `db:"student_id"`
	MemberName sql.NullString `db:"member_name"`
}

type courseRepository struct {
	db core.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db core.DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo courseRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.db
}

// trapNoRowsErr maps psql "no rows" err to course.ErrNotFound
func (repo courseRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return course.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// isUniqueViolation reports a psql unique constraint error.
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

func (repo courseRepository) CreateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	crs.ID = uuid.New().String()
	q := `INSERT INTO course (id, title, description, code, instructor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := repo.getExec(exec).ExecContext(ctx, q,
		crs.ID, crs.Title, crs.Description, crs.Code, crs.InstructorID, crs.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return course.Course{}, course.ErrCodeExists
		}
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return crs, nil
}

func (repo courseRepository) GetCourse(ctx context.Context, filter course.GetFilter, exec ...core.DBExecutor) (course.Course, error) {
	q := "SELECT * FROM course WHERE "
	var arg interface{}
	switch {
	case filter.ID != "":
		q += "id = $1"
		arg = filter.ID
	case filter.Code != "":
		q += "code = $1"
		arg = filter.Code
	default:
		return course.Course{}, errors.New("empty course filter")
	}

	var row courseRow
	if err := repo.getExec(exec).GetContext(ctx, &row, q, arg); err != nil {
		return course.Course{}, repo.trapNoRowsErr(err, "getting course")
	}
	return row.course(), nil
}

func (repo courseRepository) QueryCoursesByInstructor(ctx context.Context, instructorID string, exec ...core.DBExecutor) ([]course.Course, error) {
	q := "SELECT * FROM course WHERE instructor_id = $1 ORDER BY created_at DESC"
	var rows []courseRow
	if err := repo.getExec(exec).SelectContext(ctx, &rows, q, instructorID); err != nil {
		return nil, errors.Wrap(err, "querying instructor courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.course())
	}
	return courses, nil
}

func (repo courseRepository) QueryCoursesByStudent(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]course.Course, error) {
	q := `SELECT c.* FROM course c
		JOIN enrollment e ON e.course_id = c.id
		WHERE e.student_id = $1
		ORDER BY e.created_at DESC`
	var rows []courseRow
	if err := repo.getExec(exec).SelectContext(ctx, &rows, q, studentID); err != nil {
		return nil, errors.Wrap(err, "querying student courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.course())
	}
	return courses, nil
}

func (repo courseRepository) EnrollStudent(ctx context.Context, courseID, studentID string, exec ...core.DBExecutor) error {
	q := `INSERT INTO enrollment (id, course_id, student_id, created_at) VALUES ($1, $2, $3, $4)`
	_, err := repo.getExec(exec).ExecContext(ctx, q, uuid.New().String(), courseID, studentID, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return course.ErrAlreadyEnrolled
		}
		return errors.Wrap(err, "inserting enrollment")
	}
	return nil
}

func (repo courseRepository) QueryStudents(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]user.User, error) {
	q := `SELECT u.* FROM users u
		JOIN enrollment e ON e.student_id = u.id
		WHERE e.course_id = $1
		ORDER BY e.created_at`
	var rows []userRow
	if err := repo.getExec(exec).SelectContext(ctx, &rows, q, courseID); err != nil {
		return nil, errors.Wrap(err, "querying course students")
	}
	students := make([]user.User, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.user())
	}
	return students, nil
}

func (repo courseRepository) CreateTeam(ctx context.Context, team course.Team, exec ...core.DBExecutor) (course.Team, error) {
	team.ID = uuid.New().String()
	q := `INSERT INTO team (id, course_id, name, created_at) VALUES ($1, $2, $3, $4)`
	_, err := repo.getExec(exec).ExecContext(ctx, q, team.ID, team.CourseID, team.Name, time.Now().UTC())
	if err != nil {
		return course.Team{}, errors.Wrap(err, "inserting team")
	}
	return team, nil
}

func (repo courseRepository) AddTeamMember(ctx context.Context, teamID, userID string, exec ...core.DBExecutor) error {
	q := `INSERT INTO team_member (id, team_id, student_id, created_at) VALUES ($1, $2, $3, $4)`
	_, err := repo.getExec(exec).ExecContext(ctx, q, uuid.New().String(), teamID, userID, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return course.ErrAlreadyMember
		}
		return errors.Wrap(err, "inserting team member")
	}
	return nil
}

func (repo courseRepository) QueryTeams(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]course.Team, error) {
	q := `SELECT t.id AS team_id, t.name AS team_name, t.course_id, t.created_at,
			tm.student_id, u.name AS member_name
		FROM team t
		LEFT JOIN team_member tm ON tm.team_id = t.id
		LEFT JOIN users u ON u.id = tm.student_id
		WHERE t.course_id = $1
		ORDER BY t.created_at, tm.created_at`
	var rows []teamMemberRow
	if err := repo.getExec(exec).SelectContext(ctx, &rows, q, courseID); err != nil {
		return nil, errors.Wrap(err, "querying teams")
	}

	var order []string
	byID := make(map[string]*course.Team)
	for _, row := range rows {
		team, ok := byID[row.TeamID]
		if !ok {
			team = &course.Team{ID: row.TeamID, CourseID: row.CourseID, Name: row.TeamName}
			byID[row.TeamID] = team
			order = append(order, row.TeamID)
		}
		if row.StudentID.Valid {
			team.Members = append(team.Members, course.TeamMember{UserID: row.StudentID.String, Name: row.MemberName.String})
		}
	}

	teams := make([]course.Team, 0, len(order))
	for _, id := range order {
		teams = append(teams, *byID[id])
	}
	return teams, nil
}
