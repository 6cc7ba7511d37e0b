package dummydb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tmalose/peerly/core"
	"github.com/tmalose/peerly/core/review"
)

type reviewRepository struct {
	db *DB
}

var _ review.Repository = (*reviewRepository)(nil) // interface compliance check

func NewReviewRepository(db *DB) *reviewRepository {
	return &reviewRepository{db: db}
}

func (repo *reviewRepository) getTemplate(id string) *review.Template {
	for _, tmpl := range repo.db.templates {
		if tmpl.ID == id {
			return tmpl
		}
	}
	return nil
}

func (repo *reviewRepository) getReview(id string) *review.Review {
	for _, rev := range repo.db.reviews {
		if rev.ID == id {
			return rev
		}
	}
	return nil
}

func (repo *reviewRepository) getAssignment(id string) *review.Assignment {
	for _, a := range repo.db.assignments {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (repo *reviewRepository) getQuestion(id string) *review.Question {
	for _, tmpl := range repo.db.templates {
		for i := range tmpl.Questions {
			if tmpl.Questions[i].ID == id {
				return &tmpl.Questions[i]
			}
		}
	}
	return nil
}

func (repo *reviewRepository) CreateTemplate(ctx context.Context, tmpl review.Template, exec ...core.DBExecutor) (review.Template, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	tmpl.ID = uuid.New().String()
	for i := range tmpl.Questions {
		tmpl.Questions[i].ID = uuid.New().String()
		tmpl.Questions[i].TemplateID = tmpl.ID
	}
	repo.db.templates = append(repo.db.templates, &tmpl)
	return tmpl, nil
}

func (repo *reviewRepository) GetTemplate(ctx context.Context, id string, exec ...core.DBExecutor) (review.Template, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if tmpl := repo.getTemplate(id); tmpl != nil {
		return *tmpl, nil
	}
	return review.Template{}, review.ErrTemplateNotFound
}

func (repo *reviewRepository) QueryTemplatesByInstructor(ctx context.Context, instructorID string, exec ...core.DBExecutor) ([]review.Template, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	templates := make([]review.Template, 0)
	for _, tmpl := range repo.db.templates {
		if tmpl.InstructorID == instructorID {
			templates = append(templates, *tmpl)
		}
	}
	return templates, nil
}

func (repo *reviewRepository) CreateReview(ctx context.Context, rev review.Review, exec ...core.DBExecutor) (review.Review, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	rev.ID = uuid.New().String()
	repo.db.reviews = append(repo.db.reviews, &rev)
	return rev, nil
}

func (repo *reviewRepository) GetReview(ctx context.Context, id string, exec ...core.DBExecutor) (review.Review, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rev := repo.getReview(id); rev != nil {
		return *rev, nil
	}
	return review.Review{}, review.ErrReviewNotFound
}

func (repo *reviewRepository) QueryReviewSummaries(ctx context.Context, instructorID string, exec ...core.DBExecutor) ([]review.ReviewSummary, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	summaries := make([]review.ReviewSummary, 0)
	for _, rev := range repo.db.reviews {
		tmpl := repo.getTemplate(rev.TemplateID)
		if tmpl == nil || tmpl.InstructorID != instructorID {
			continue
		}
		summary := review.ReviewSummary{Review: *rev, TemplateTitle: tmpl.Title}
		for _, crs := range repo.db.courses {
			if crs.ID == rev.CourseID {
				summary.CourseTitle = crs.Title
			}
		}
		for _, a := range repo.db.assignments {
			if a.ReviewID == rev.ID {
				summary.AssignmentCount++
				if a.Status == review.StatusCompleted {
					summary.CompletedCount++
				}
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (repo *reviewRepository) CreateAssignment(ctx context.Context, a review.Assignment, exec ...core.DBExecutor) (review.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	a.ID = uuid.New().String()
	if usr := repo.db.getUser(a.RevieweeID); usr != nil {
		a.RevieweeName = usr.Name
	}
	repo.db.assignments = append(repo.db.assignments, &a)
	return a, nil
}

func (repo *reviewRepository) GetAssignment(ctx context.Context, id string, exec ...core.DBExecutor) (review.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if a := repo.getAssignment(id); a != nil {
		return *a, nil
	}
	return review.Assignment{}, review.ErrAssignmentNotFound
}

func (repo *reviewRepository) QueryAssignments(ctx context.Context, filter review.AssignmentFilter, exec ...core.DBExecutor) ([]review.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	assignments := make([]review.Assignment, 0)
	for _, a := range repo.db.assignments {
		if filter.ReviewID != "" && a.ReviewID != filter.ReviewID {
			continue
		}
		if filter.ReviewerID != "" && a.ReviewerID != filter.ReviewerID {
			continue
		}
		if filter.RevieweeID != "" && a.RevieweeID != filter.RevieweeID {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		assignments = append(assignments, *a)
	}
	return assignments, nil
}

func (repo *reviewRepository) QueryPendingAssignments(ctx context.Context, reviewerID string, now time.Time, exec ...core.DBExecutor) ([]review.PendingAssignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	pending := make([]review.PendingAssignment, 0)
	for _, a := range repo.db.assignments {
		if a.ReviewerID != reviewerID || a.Status != review.StatusPending {
			continue
		}
		rev := repo.getReview(a.ReviewID)
		if rev == nil || !rev.DueDate.After(now) {
			continue
		}
		p := review.PendingAssignment{
			AssignmentID:      a.ID,
			ReviewID:          rev.ID,
			ReviewTitle:       rev.Title,
			ReviewDescription: rev.Description,
			RevieweeID:        a.RevieweeID,
			DueDate:           rev.DueDate,
		}
		if usr := repo.db.getUser(a.RevieweeID); usr != nil {
			p.RevieweeName = usr.Name
		}
		pending = append(pending, p)
	}
	return pending, nil
}

func (repo *reviewRepository) SaveSubmission(ctx context.Context, assignmentID string, responses []review.Response, completedAt time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	a := repo.getAssignment(assignmentID)
	if a == nil {
		return review.ErrAssignmentNotFound
	}
	if a.Status != review.StatusPending {
		return review.ErrAlreadyCompleted
	}

	// same constraints as the schema: responses reference an existing
	// question, one response per (assignment, question) pair
	stored := make(map[string]bool, len(responses))
	for _, r := range responses {
		if repo.getQuestion(r.QuestionID) == nil {
			return fmt.Errorf("response references unknown question %q", r.QuestionID)
		}
		if stored[r.QuestionID] {
			return fmt.Errorf("duplicate response for question %q", r.QuestionID)
		}
		stored[r.QuestionID] = true
	}

	a.Status = review.StatusCompleted
	a.CompletedAt = &completedAt
	for _, r := range responses {
		r.ID = uuid.New().String()
		r.AssignmentID = assignmentID
		resp := r
		repo.db.responses = append(repo.db.responses, &resp)
	}
	return nil
}

func (repo *reviewRepository) QueryAnswers(ctx context.Context, filter review.AnswerFilter, exec ...core.DBExecutor) ([]review.Answer, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	answers := make([]review.Answer, 0)
	for _, resp := range repo.db.responses {
		a := repo.getAssignment(resp.AssignmentID)
		if a == nil || a.Status != review.StatusCompleted {
			continue
		}
		if filter.ReviewID != "" && a.ReviewID != filter.ReviewID {
			continue
		}
		if filter.RevieweeID != "" && a.RevieweeID != filter.RevieweeID {
			continue
		}
		if filter.PublicOnly && resp.IsPrivate {
			continue
		}
		q := repo.getQuestion(resp.QuestionID)
		if q == nil {
			continue
		}
		if len(filter.Types) > 0 {
			var match bool
			for _, typ := range filter.Types {
				if q.Type == typ {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		ans := review.Answer{
			AssignmentID: a.ID,
			ReviewID:     a.ReviewID,
			RevieweeID:   a.RevieweeID,
			QuestionID:   q.ID,
			QuestionText: q.Text,
			QuestionType: q.Type,
			Value:        resp.Value,
			IsPrivate:    resp.IsPrivate,
		}
		if rev := repo.getReview(a.ReviewID); rev != nil {
			ans.ReviewTitle = rev.Title
		}
		answers = append(answers, ans)
	}
	return answers, nil
}
