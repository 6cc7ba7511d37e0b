package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/tmalose/peerly/core"
	"github.com/tmalose/peerly/core/review"
)

type templateRow struct {
	ID           string    `db:"id"`
	Title        string    `db:"title"`
	Description  string    `db:"description"`
	CourseID     string    `db:"course_id"`
	InstructorID string    `db:"instructor_id"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r templateRow) template() review.Template {
	return review.Template{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		CourseID:     r.CourseID,
		InstructorID: r.InstructorID,
		CreatedAt:    r.CreatedAt,
	}
}

type questionRow struct {
	ID         string `db:"id"`
	TemplateID string `db:"template_id"`
	Text       string `db:"text"`
	Type       string `db:"type"`
	Options    []byte `db:"options"`
	Required   bool   `db:"required"`
	OrderNum   int    `db:"order_num"`
}

func (r questionRow) question() (review.Question, error) {
	q := review.Question{
		ID:         r.ID,
		TemplateID: r.TemplateID,
		Text:       r.Text,
		Type:       r.Type,
		Required:   r.Required,
		OrderNum:   r.OrderNum,
	}
	if len(r.Options) > 0 {
		if err := json.Unmarshal(r.Options, &q.Options); err != nil {
			return review.Question{}, errors.Wrap(err, "decoding question options")
		}
	}
	return q, nil
}

type reviewRow struct {
	ID          string    `db:"id"`
	TemplateID  string    `db:"template_id"`
	CourseID    string    `db:"course_id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	DueDate     time.Time `db:"due_date"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r reviewRow) review() review.Review {
	return review.Review{
		ID:          r.ID,
		TemplateID:  r.TemplateID,
		CourseID:    r.CourseID,
		Title:       r.Title,
		Description: r.Description,
		DueDate:     r.DueDate,
		CreatedAt:   r.CreatedAt,
	}
}

type assignmentRow struct {
	ID           string       `db:"id"`
	ReviewID     string       `db:"review_id"`
	ReviewerID   string       `db:"reviewer_id"`
	RevieweeID   string       `db:"reviewee_id"`
	Status       string       `db:"status"`
	AssignedAt   time.Time    `db:"assigned_at"`
	CompletedAt  sql.NullTime `db:"completed_at"`
	RevieweeName string       `db:"reviewee_name"`
}

func (r assignmentRow) assignment() review.Assignment {
	a := review.Assignment{
		ID:           r.ID,
		ReviewID:     r.ReviewID,
		ReviewerID:   r.ReviewerID,
		RevieweeID:   r.RevieweeID,
		Status:       r.Status,
		AssignedAt:   r.AssignedAt,
		RevieweeName: r.RevieweeName,
	}
	if r.CompletedAt.Valid {
		t := r.CompletedAt.Time
		a.CompletedAt = &t
	}
	return a
}

type reviewRepository struct {
	db core.DB
}

var _ review.Repository = (*reviewRepository)(nil) // interface compliance check

func NewReviewRepository(db core.DB) *reviewRepository {
	return &reviewRepository{db: db}
}

func (repo reviewRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.db
}

// trapNoRowsErr maps psql "no rows" err to the given sentinel
func (repo reviewRepository) trapNoRowsErr(err, instead error, msg string) error {
	if err == sql.ErrNoRows {
		return instead
	}
	return errors.Wrap(err, msg)
}

func (repo reviewRepository) insertQuestions(ctx context.Context, exec core.DBExecutor, tmpl review.Template) ([]review.Question, error) {
	q := `INSERT INTO question (id, template_id, text, type, options, required, order_num)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	questions := make([]review.Question, 0, len(tmpl.Questions))
	for _, question := range tmpl.Questions {
		question.ID = uuid.New().String()
		question.TemplateID = tmpl.ID

		var opts []byte
		if question.Options != nil {
			var err error
			if opts, err = json.Marshal(question.Options); err != nil {
				return nil, errors.Wrap(err, "encoding question options")
			}
		}
		if _, err := exec.ExecContext(ctx, q,
			question.ID, question.TemplateID, question.Text, question.Type, opts, question.Required, question.OrderNum); err != nil {
			return nil, errors.Wrap(err, "inserting question")
		}
		questions = append(questions, question)
	}
	return questions, nil
}

func (repo reviewRepository) CreateTemplate(ctx context.Context, tmpl review.Template, exec ...core.DBExecutor) (review.Template, error) {
	tmpl.ID = uuid.New().String()
	insert := func(exec core.DBExecutor) error {
		q := `INSERT INTO review_template (id, title, description, course_id, instructor_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`
		if _, err := exec.ExecContext(ctx, q,
			tmpl.ID, tmpl.Title, tmpl.Description, tmpl.CourseID, tmpl.InstructorID, tmpl.CreatedAt); err != nil {
			return errors.Wrap(err, "inserting template")
		}
		questions, err := repo.insertQuestions(ctx, exec, tmpl)
		if err != nil {
			return err
		}
		tmpl.Questions = questions
		return nil
	}

	// template and questions land together or not at all
	if len(exec) > 0 {
		if err := insert(exec[0]); err != nil {
			return review.Template{}, err
		}
		return tmpl, nil
	}
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return review.Template{}, errors.Wrap(err, "beginning transaction")
	}
	if err = insert(tx); err != nil {
		_ = tx.Rollback()
		return review.Template{}, err
	}
	if err = tx.Commit(); err != nil {
		return review.Template{}, errors.Wrap(err, "committing template")
	}
	return tmpl, nil
}

func (repo reviewRepository) queryQuestions(ctx context.Context, exec core.DBExecutor, templateIDs []string) (map[string][]review.Question, error) {
	q := `SELECT * FROM question WHERE template_id = ANY($1) ORDER BY template_id, order_num`
	var rows []questionRow
	if err := exec.SelectContext(ctx, &rows, q, pq.Array(templateIDs)); err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}
	byTemplate := make(map[string][]review.Question, len(templateIDs))
	for _, row := range rows {
		question, err := row.question()
		if err != nil {
			return nil, err
		}
		byTemplate[row.TemplateID] = append(byTemplate[row.TemplateID], question)
	}
	return byTemplate, nil
}

func (repo reviewRepository) GetTemplate(ctx context.Context, id string, exec ...core.DBExecutor) (review.Template, error) {
	db := repo.getExec(exec)

	var row templateRow
	if err := db.GetContext(ctx, &row, "SELECT * FROM review_template WHERE id = $1", id); err != nil {
		return review.Template{}, repo.trapNoRowsErr(err, review.ErrTemplateNotFound, "getting template")
	}
	tmpl := row.template()

	questions, err := repo.queryQuestions(ctx, db, []string{tmpl.ID})
	if err != nil {
		return review.Template{}, err
	}
	tmpl.Questions = questions[tmpl.ID]
	return tmpl, nil
}

func (repo reviewRepository) QueryTemplatesByInstructor(ctx context.Context, instructorID string, exec ...core.DBExecutor) ([]review.Template, error) {
	db := repo.getExec(exec)

	q := "SELECT * FROM review_template WHERE instructor_id = $1 ORDER BY created_at DESC"
	var rows []templateRow
	if err := db.SelectContext(ctx, &rows, q, instructorID); err != nil {
		return nil, errors.Wrap(err, "querying templates")
	}
	if len(rows) == 0 {
		return []review.Template{}, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	questions, err := repo.queryQuestions(ctx, db, ids)
	if err != nil {
		return nil, err
	}

	templates := make([]review.Template, 0, len(rows))
	for _, row := range rows {
		tmpl := row.template()
		tmpl.Questions = questions[tmpl.ID]
		templates = append(templates, tmpl)
	}
	return templates, nil
}

func (repo reviewRepository) CreateReview(ctx context.Context, rev review.Review, exec ...core.DBExecutor) (review.Review, error) {
	rev.ID = uuid.New().String()
	q := `INSERT INTO review (id, template_id, course_id, title, description, due_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := repo.getExec(exec).ExecContext(ctx, q,
		rev.ID, rev.TemplateID, rev.CourseID, rev.Title, rev.Description, rev.DueDate, rev.CreatedAt)
	if err != nil {
		return review.Review{}, errors.Wrap(err, "inserting review")
	}
	return rev, nil
}

func (repo reviewRepository) GetReview(ctx context.Context, id string, exec ...core.DBExecutor) (review.Review, error) {
	var row reviewRow
	if err := repo.getExec(exec).GetContext(ctx, &row, "SELECT * FROM review WHERE id = $1", id); err != nil {
		return review.Review{}, repo.trapNoRowsErr(err, review.ErrReviewNotFound, "getting review")
	}
	return row.review(), nil
}

func (repo reviewRepository) QueryReviewSummaries(ctx context.Context, instructorID string, exec ...core.DBExecutor) ([]review.ReviewSummary, error) {
	q := `SELECT r.id, r.template_id, r.course_id, r.title, r.description, r.due_date, r.created_at,
			c.title AS course_title, rt.title AS template_title,
			COUNT(ra.id) AS assignment_count,
			COUNT(ra.id) FILTER (WHERE ra.status = 'completed') AS completed_count
		FROM review r
		JOIN review_template rt ON rt.id = r.template_id
		JOIN course c ON c.id = r.course_id
		LEFT JOIN review_assignment ra ON ra.review_id = r.id
		WHERE rt.instructor_id = $1
		GROUP BY r.id, c.title, rt.title
		ORDER BY r.created_at DESC`

	var rows []struct {
		reviewRow
		CourseTitle     string `db:"course_title"`
		TemplateTitle   string `db:"template_title"`
		AssignmentCount int    `db:"assignment_count"`
		CompletedCount  int    `db:"completed_count"`
	}
	if err := repo.getExec(exec).SelectContext(ctx, &rows, q, instructorID); err != nil {
		return nil, errors.Wrap(err, "querying review summaries")
	}

	summaries := make([]review.ReviewSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, review.ReviewSummary{
			Review:          row.review(),
			CourseTitle:     row.CourseTitle,
			TemplateTitle:   row.TemplateTitle,
			AssignmentCount: row.AssignmentCount,
			CompletedCount:  row.CompletedCount,
		})
	}
	return summaries, nil
}

func (repo reviewRepository) CreateAssignment(ctx context.Context, a review.Assignment, exec ...core.DBExecutor) (review.Assignment, error) {
	db := repo.getExec(exec)

	a.ID = uuid.New().String()
	q := `INSERT INTO review_assignment (id, review_id, reviewer_id, reviewee_id, status, assigned_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := db.ExecContext(ctx, q, a.ID, a.ReviewID, a.ReviewerID, a.RevieweeID, a.Status, a.AssignedAt); err != nil {
		return review.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	// display name for the scheduling report
	if err := db.GetContext(ctx, &a.RevieweeName, "SELECT name FROM users WHERE id = $1", a.RevieweeID); err != nil && err != sql.ErrNoRows {
		return review.Assignment{}, errors.Wrap(err, "getting reviewee name")
	}
	return a, nil
}

const assignmentSelect = `SELECT ra.id, ra.review_id, ra.reviewer_id, ra.reviewee_id, ra.status,
		ra.assigned_at, ra.completed_at, u.name AS reviewee_name
	FROM review_assignment ra
	JOIN users u ON u.id = ra.reviewee_id`

func (repo reviewRepository) GetAssignment(ctx context.Context, id string, exec ...core.DBExecutor) (review.Assignment, error) {
	var row assignmentRow
	q := assignmentSelect + " WHERE ra.id = $1"
	if err := repo.getExec(exec).GetContext(ctx, &row, q, id); err != nil {
		return review.Assignment{}, repo.trapNoRowsErr(err, review.ErrAssignmentNotFound, "getting assignment")
	}
	return row.assignment(), nil
}

func (repo reviewRepository) QueryAssignments(ctx context.Context, filter review.AssignmentFilter, exec ...core.DBExecutor) ([]review.Assignment, error) {
	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.ReviewID != "" {
		conds = append(conds, "ra.review_id = "+arg(filter.ReviewID))
	}
	if filter.ReviewerID != "" {
		conds = append(conds, "ra.reviewer_id = "+arg(filter.ReviewerID))
	}
	if filter.RevieweeID != "" {
		conds = append(conds, "ra.reviewee_id = "+arg(filter.RevieweeID))
	}
	if filter.Status != "" {
		conds = append(conds, "ra.status = "+arg(filter.Status))
	}

	q := assignmentSelect
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY ra.assigned_at, ra.id"

	var rows []assignmentRow
	if err := repo.getExec(exec).SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	assignments := make([]review.Assignment, 0, len(rows))
	for _, row := range rows {
		assignments = append(assignments, row.assignment())
	}
	return assignments, nil
}

func (repo reviewRepository) QueryPendingAssignments(ctx context.Context, reviewerID string, now time.Time, exec ...core.DBExecutor) ([]review.PendingAssignment, error) {
	q := `SELECT ra.id AS assignment_id, r.id AS review_id, r.title AS review_title,
			r.description AS review_description, ra.reviewee_id, u.name AS reviewee_name, r.due_date
		FROM review_assignment ra
		JOIN review r ON r.id = ra.review_id
		JOIN users u ON u.id = ra.reviewee_id
		WHERE ra.reviewer_id = $1 AND ra.status = 'pending' AND r.due_date > $2
		ORDER BY r.due_date, ra.assigned_at`

	var rows []struct {
		AssignmentID      string    `db:"assignment_id"`
		ReviewID          string    `db:"review_id"`
		ReviewTitle       string    `db:"review_title"`
		ReviewDescription string    `db:"review_description"`
		RevieweeID        string    `db:"reviewee_id"`
		RevieweeName      string    `db:"reviewee_name"`
		DueDate           time.Time `db:"due_date"`
	}
	if err := repo.getExec(exec).SelectContext(ctx, &rows, q, reviewerID, now); err != nil {
		return nil, errors.Wrap(err, "querying pending assignments")
	}

	pending := make([]review.PendingAssignment, 0, len(rows))
	for _, row := range rows {
		pending = append(pending, review.PendingAssignment(row))
	}
	return pending, nil
}

// SaveSubmission inserts responses and flips the assignment to completed in
// one transaction. The flip is conditional on status still being pending so
// two concurrent submissions cannot both land.
func (repo reviewRepository) SaveSubmission(ctx context.Context, assignmentID string, responses []review.Response, completedAt time.Time) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}

	rollback := func(err error) error {
		_ = tx.Rollback()
		return err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE review_assignment SET status = 'completed', completed_at = $2 WHERE id = $1 AND status = 'pending'`,
		assignmentID, completedAt)
	if err != nil {
		return rollback(errors.Wrap(err, "completing assignment"))
	}
	if n, err := res.RowsAffected(); err != nil {
		return rollback(errors.Wrap(err, "completing assignment"))
	} else if n == 0 {
		return rollback(review.ErrAlreadyCompleted)
	}

	q := `INSERT INTO response (id, assignment_id, question_id, value, is_private, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for _, r := range responses {
		if _, err = tx.ExecContext(ctx, q,
			uuid.New().String(), assignmentID, r.QuestionID, r.Value, r.IsPrivate, completedAt); err != nil {
			return rollback(errors.Wrap(err, "inserting response"))
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing submission")
	}
	return nil
}

func (repo reviewRepository) QueryAnswers(ctx context.Context, filter review.AnswerFilter, exec ...core.DBExecutor) ([]review.Answer, error) {
	conds := []string{"ra.status = 'completed'"}
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.ReviewID != "" {
		conds = append(conds, "ra.review_id = "+arg(filter.ReviewID))
	}
	if filter.RevieweeID != "" {
		conds = append(conds, "ra.reviewee_id = "+arg(filter.RevieweeID))
	}
	if len(filter.Types) > 0 {
		conds = append(conds, "q.type = ANY("+arg(pq.Array(filter.Types))+")")
	}
	if filter.PublicOnly {
		conds = append(conds, "resp.is_private = FALSE")
	}

	query := `SELECT resp.assignment_id, ra.review_id, r.title AS review_title, ra.reviewee_id,
			resp.question_id, q.text AS question_text, q.type AS question_type, resp.value, resp.is_private
		FROM response resp
		JOIN review_assignment ra ON ra.id = resp.assignment_id
		JOIN review r ON r.id = ra.review_id
		JOIN question q ON q.id = resp.question_id
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY r.created_at, resp.created_at`

	var rows []struct {
		AssignmentID string `db:"assignment_id"`
		ReviewID     string `db:"review_id"`
		ReviewTitle  string `db:"review_title"`
		RevieweeID   string `db:"reviewee_id"`
		QuestionID   string `db:"question_id"`
		QuestionText string `db:"question_text"`
		QuestionType string `db:"question_type"`
		Value        string `db:"value"`
		IsPrivate    bool   `db:"is_private"`
	}
	if err := repo.getExec(exec).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying answers")
	}

	answers := make([]review.Answer, 0, len(rows))
	for _, row := range rows {
		answers = append(answers, review.Answer(row))
	}
	return answers, nil
}
