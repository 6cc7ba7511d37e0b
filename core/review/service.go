package review

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/tmalose/peerly/core"
	"github.com/tmalose/peerly/core/course"
	"github.com/tmalose/peerly/core/user"
)

var (
	// errors
	ErrTemplateNotFound   = errors.New("review template not found")
	ErrReviewNotFound     = errors.New("review not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrNotReviewer        = errors.New("assignment does not belong to this reviewer")
	ErrAlreadyCompleted   = errors.New("assignment already completed")
	ErrNoTeamAssignments  = errors.New("no team assignments found")
)

// MissingAnswersError reports required questions absent from a submission.
type MissingAnswersError struct {
	QuestionIDs []string
}

func (e *MissingAnswersError) Error() string {
	return "missing responses for required questions"
}

type (
	Repository interface {
		// CreateTemplate persists a template and its questions atomically.
		CreateTemplate(ctx context.Context, tmpl Template, exec ...core.DBExecutor) (Template, error)
		// GetTemplate returns the template with its questions ordered by OrderNum.
		GetTemplate(ctx context.Context, id string, exec ...core.DBExecutor) (Template, error)
		QueryTemplatesByInstructor(ctx context.Context, instructorID string, exec ...core.DBExecutor) ([]Template, error)
		CreateReview(ctx context.Context, rev Review, exec ...core.DBExecutor) (Review, error)
		GetReview(ctx context.Context, id string, exec ...core.DBExecutor) (Review, error)
		QueryReviewSummaries(ctx context.Context, instructorID string, exec ...core.DBExecutor) ([]ReviewSummary, error)
		CreateAssignment(ctx context.Context, a Assignment, exec ...core.DBExecutor) (Assignment, error)
		GetAssignment(ctx context.Context, id string, exec ...core.DBExecutor) (Assignment, error)
		QueryAssignments(ctx context.Context, filter AssignmentFilter, exec ...core.DBExecutor) ([]Assignment, error)
		QueryPendingAssignments(ctx context.Context, reviewerID string, now time.Time, exec ...core.DBExecutor) ([]PendingAssignment, error)
		// SaveSubmission inserts the responses and flips the assignment
		// pending→completed in one transaction. The status flip is conditional
		// on the current status; a lost race returns ErrAlreadyCompleted and
		// nothing is kept.
		SaveSubmission(ctx context.Context, assignmentID string, responses []Response, completedAt time.Time) error
		QueryAnswers(ctx context.Context, filter AnswerFilter, exec ...core.DBExecutor) ([]Answer, error)
	}

	ServiceInterface interface {
		CreateTemplate(ctx context.Context, instructorID string, nt NewTemplate) (Template, error)
		QueryTemplates(ctx context.Context, instructorID string) ([]Template, error)
		Schedule(ctx context.Context, instructorID string, sr ScheduleReview) (ScheduleResult, error)
		Summaries(ctx context.Context, instructorID string) ([]ReviewSummary, error)
		AssignmentDetail(ctx context.Context, reviewerID, assignmentID string) (AssignmentDetail, error)
		Submit(ctx context.Context, reviewerID, assignmentID string, sub SubmitReview) error
		Results(ctx context.Context, instructorID, reviewID string) (ReviewResults, error)
		StudentResults(ctx context.Context, revieweeID string) (StudentResults, error)
		PendingAssignments(ctx context.Context, reviewerID string) ([]PendingAssignment, error)
	}

	Service struct {
		repo    Repository
		crsSvc  course.ServiceInterface
		usrRepo user.Repository
		mailSvc core.EmailService
		conf    *core.Config
	}
)

var _ ServiceInterface = (*Service)(nil) // interface compliance check

func NewService(
	repo Repository,
	crsSvc course.ServiceInterface,
	usrRepo user.Repository,
	mailSvc core.EmailService,
	conf *core.Config,
) *Service {
	return &Service{
		repo:    repo,
		crsSvc:  crsSvc,
		usrRepo: usrRepo,
		mailSvc: mailSvc,
		conf:    conf,
	}
}

func (svc *Service) CreateTemplate(ctx context.Context, instructorID string, nt NewTemplate) (Template, error) {
	crs, err := svc.crsSvc.GetOwned(ctx, instructorID, nt.CourseID)
	if err != nil {
		return Template{}, err
	}

	now := time.Now().UTC()
	tmpl := Template{
		Title:        nt.Title,
		Description:  nt.Description,
		InstructorID: instructorID,
		CourseID:     crs.ID,
		CreatedAt:    now,
		Questions:    make([]Question, 0, len(nt.Questions)),
	}
	for i, nq := range nt.Questions {
		q := Question{
			Text:     nq.Text,
			Type:     nq.Type,
			Required: nq.IsRequired(),
			OrderNum: i + 1,
		}
		if nq.Type == QuestionMultipleChoice {
			q.Options = nq.Options
		}
		tmpl.Questions = append(tmpl.Questions, q)
	}
	return svc.repo.CreateTemplate(ctx, tmpl)
}

func (svc *Service) QueryTemplates(ctx context.Context, instructorID string) ([]Template, error) {
	return svc.repo.QueryTemplatesByInstructor(ctx, instructorID)
}

// GenerateAssignments builds the full reviewer→reviewee pairing from team
// rosters: every ordered same-team pair with reviewer ≠ reviewee. Cross-team
// pairs are never generated; a student on several teams is paired per team
// independently. Teams of size 0 or 1 contribute nothing. Order is
// deterministic: teams then members in given order, outer loop is the reviewer.
func GenerateAssignments(teams []course.Team) []AssignmentPair {
	var pairs []AssignmentPair
	for _, team := range teams {
		members := team.MemberIDs()
		for _, reviewer := range members {
			for _, reviewee := range members {
				if reviewer == reviewee {
					continue
				}
				pairs = append(pairs, AssignmentPair{ReviewerID: reviewer, RevieweeID: reviewee})
			}
		}
	}
	return pairs
}

// Schedule creates a review cycle and its assignments. Pairs supplied by the
// caller are used as-is; otherwise they are generated from the course's team
// rosters. Assignment inserts are best-effort: one failed pair does not abort
// the batch, nor roll back earlier inserts.
func (svc *Service) Schedule(ctx context.Context, instructorID string, sr ScheduleReview) (ScheduleResult, error) {
	crs, err := svc.crsSvc.GetOwned(ctx, instructorID, sr.CourseID)
	if err != nil {
		return ScheduleResult{}, err
	}
	if _, err = svc.repo.GetTemplate(ctx, sr.TemplateID); err != nil {
		return ScheduleResult{}, err
	}

	pairs := sr.Assignments
	if len(pairs) == 0 {
		teams, err := svc.crsSvc.Teams(ctx, crs.ID)
		if err != nil {
			return ScheduleResult{}, err
		}
		pairs = GenerateAssignments(teams)
	}
	if len(pairs) == 0 {
		return ScheduleResult{}, core.NewValidationError(ErrNoTeamAssignments)
	}

	now := time.Now().UTC()
	rev, err := svc.repo.CreateReview(ctx, Review{
		TemplateID:  sr.TemplateID,
		CourseID:    crs.ID,
		Title:       sr.Title,
		Description: sr.Description,
		DueDate:     sr.DueDate,
		CreatedAt:   now,
	})
	if err != nil {
		return ScheduleResult{}, err
	}

	result := ScheduleResult{Review: rev, Assignments: make([]Assignment, 0, len(pairs))}
	for _, pair := range pairs {
		a, err := svc.repo.CreateAssignment(ctx, Assignment{
			ReviewID:   rev.ID,
			ReviewerID: pair.ReviewerID,
			RevieweeID: pair.RevieweeID,
			Status:     StatusPending,
			AssignedAt: now,
		})
		if err != nil {
			result.Failed = append(result.Failed, AssignmentFailure{Pair: pair, Reason: errors.Cause(err).Error()})
			continue
		}
		result.Assignments = append(result.Assignments, a)
	}

	svc.notifyReviewers(ctx, rev, result.Assignments)
	return result, nil
}

// notifyReviewers emails each distinct reviewer about their new assignments.
// Notification failures are not the scheduler's problem; the email service logs them.
func (svc *Service) notifyReviewers(ctx context.Context, rev Review, assignments []Assignment) {
	seen := make(map[string]bool, len(assignments))
	counts := make(map[string]int, len(assignments))
	order := make([]string, 0, len(assignments))
	for _, a := range assignments {
		if !seen[a.ReviewerID] {
			seen[a.ReviewerID] = true
			order = append(order, a.ReviewerID)
		}
		counts[a.ReviewerID]++
	}

	msgs := make([]*core.EmailMessage, 0, len(order))
	for _, reviewerID := range order {
		usr, err := svc.usrRepo.GetUser(ctx, user.GetFilter{ID: reviewerID})
		if err != nil {
			continue
		}
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
			Subject:      fmt.Sprintf("%s: new peer reviews for %s", svc.conf.AppName, rev.Title),
			TemplateName: "new-assignments",
			TemplateData: struct {
				Name        string
				ReviewTitle string
				Count       int
				DueDate     string
			}{usr.Name, rev.Title, counts[reviewerID], rev.DueDate.Format("Mon, 02 Jan 2006")},
		})
	}
	svc.mailSvc.SendMessages(msgs...)
}

func (svc *Service) Summaries(ctx context.Context, instructorID string) ([]ReviewSummary, error) {
	return svc.repo.QueryReviewSummaries(ctx, instructorID)
}

func (svc *Service) AssignmentDetail(ctx context.Context, reviewerID, assignmentID string) (AssignmentDetail, error) {
	a, err := svc.repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return AssignmentDetail{}, err
	}
	if a.ReviewerID != reviewerID {
		return AssignmentDetail{}, ErrNotReviewer
	}

	rev, err := svc.repo.GetReview(ctx, a.ReviewID)
	if err != nil {
		return AssignmentDetail{}, err
	}
	tmpl, err := svc.repo.GetTemplate(ctx, rev.TemplateID)
	if err != nil {
		return AssignmentDetail{}, err
	}

	return AssignmentDetail{
		Assignment:        a,
		ReviewTitle:       rev.Title,
		ReviewDescription: rev.Description,
		Questions:         tmpl.Questions,
	}, nil
}

// Submit validates and persists a reviewer's answer set for one assignment.
// Every required question must be answered; responses with empty values are
// skipped. The response inserts and the pending→completed flip happen in one
// transaction so a half-submitted assignment can never be retried as pending.
func (svc *Service) Submit(ctx context.Context, reviewerID, assignmentID string, sub SubmitReview) error {
	a, err := svc.repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return err
	}
	if a.ReviewerID != reviewerID {
		return ErrNotReviewer
	}
	if a.Status == StatusCompleted {
		return ErrAlreadyCompleted
	}

	rev, err := svc.repo.GetReview(ctx, a.ReviewID)
	if err != nil {
		return err
	}
	tmpl, err := svc.repo.GetTemplate(ctx, rev.TemplateID)
	if err != nil {
		return err
	}

	answered := make(map[string]bool, len(sub.Responses))
	for _, r := range sub.Responses {
		if r.Value != "" { // a blank value does not answer a required question
			answered[r.QuestionID] = true
		}
	}
	var missing []string
	for _, q := range tmpl.Questions {
		if q.Required && !answered[q.ID] {
			missing = append(missing, q.ID)
		}
	}
	if len(missing) > 0 {
		return &MissingAnswersError{QuestionIDs: missing}
	}

	known := make(map[string]bool, len(tmpl.Questions))
	for _, q := range tmpl.Questions {
		known[q.ID] = true
	}

	responses := make([]Response, 0, len(sub.Responses))
	stored := make(map[string]bool, len(sub.Responses))
	for _, r := range sub.Responses {
		// answers outside the template and repeats are dropped; the rest
		// of the submission still lands
		if r.Value == "" || !known[r.QuestionID] || stored[r.QuestionID] {
			continue
		}
		stored[r.QuestionID] = true
		responses = append(responses, Response{
			AssignmentID: a.ID,
			QuestionID:   r.QuestionID,
			Value:        r.Value,
			IsPrivate:    r.IsPrivate,
		})
	}

	return svc.repo.SaveSubmission(ctx, a.ID, responses, time.Now().UTC())
}

// Results computes the instructor-facing aggregate for one review cycle:
// per reviewee, assignment counts and the likert score on the 0-100 scale.
func (svc *Service) Results(ctx context.Context, instructorID, reviewID string) (ReviewResults, error) {
	rev, err := svc.repo.GetReview(ctx, reviewID)
	if err != nil {
		return ReviewResults{}, err
	}
	tmpl, err := svc.repo.GetTemplate(ctx, rev.TemplateID)
	if err != nil {
		return ReviewResults{}, err
	}
	if tmpl.InstructorID != instructorID {
		return ReviewResults{}, course.ErrNotOwner
	}

	assignments, err := svc.repo.QueryAssignments(ctx, AssignmentFilter{ReviewID: rev.ID})
	if err != nil {
		return ReviewResults{}, err
	}
	answers, err := svc.repo.QueryAnswers(ctx, AnswerFilter{ReviewID: rev.ID, Types: []string{QuestionLikert}})
	if err != nil {
		return ReviewResults{}, err
	}

	likerts := make(map[string][]float64) // revieweeID -> likert values
	for _, ans := range answers {
		if v, ok := parseLikert(ans.Value); ok {
			likerts[ans.RevieweeID] = append(likerts[ans.RevieweeID], v)
		}
	}

	var order []string
	byReviewee := make(map[string]*RevieweeResult)
	for _, a := range assignments {
		res, ok := byReviewee[a.RevieweeID]
		if !ok {
			res = &RevieweeResult{RevieweeID: a.RevieweeID, RevieweeName: a.RevieweeName}
			byReviewee[a.RevieweeID] = res
			order = append(order, a.RevieweeID)
		}
		res.TotalReviews++
		if a.Status == StatusCompleted {
			res.CompletedReviews++
		}
	}

	results := make([]RevieweeResult, 0, len(order))
	for _, revieweeID := range order {
		res := byReviewee[revieweeID]
		res.Score = DisplayScore(likerts[revieweeID])
		results = append(results, *res)
	}
	return ReviewResults{Review: rev, Results: results}, nil
}

// StudentResults computes a student's own aggregates per review plus the
// public short-answer feedback left for them. Private free text never shows up.
func (svc *Service) StudentResults(ctx context.Context, revieweeID string) (StudentResults, error) {
	assignments, err := svc.repo.QueryAssignments(ctx, AssignmentFilter{RevieweeID: revieweeID})
	if err != nil {
		return StudentResults{}, err
	}
	likertAnswers, err := svc.repo.QueryAnswers(ctx, AnswerFilter{RevieweeID: revieweeID, Types: []string{QuestionLikert}})
	if err != nil {
		return StudentResults{}, err
	}

	likerts := make(map[string][]float64) // reviewID -> likert values
	titles := make(map[string]string)
	for _, ans := range likertAnswers {
		titles[ans.ReviewID] = ans.ReviewTitle
		if v, ok := parseLikert(ans.Value); ok {
			likerts[ans.ReviewID] = append(likerts[ans.ReviewID], v)
		}
	}

	var order []string
	byReview := make(map[string]*StudentResult)
	for _, a := range assignments {
		res, ok := byReview[a.ReviewID]
		if !ok {
			res = &StudentResult{ReviewID: a.ReviewID}
			byReview[a.ReviewID] = res
			order = append(order, a.ReviewID)
		}
		res.TotalReviews++
		if a.Status == StatusCompleted {
			res.CompletedReviews++
		}
	}

	results := make([]StudentResult, 0, len(order))
	for _, reviewID := range order {
		res := byReview[reviewID]
		res.ReviewTitle = titles[reviewID]
		if res.ReviewTitle == "" {
			if rev, err := svc.repo.GetReview(ctx, reviewID); err == nil {
				res.ReviewTitle = rev.Title
			}
		}
		res.Score = DisplayScore(likerts[reviewID])
		results = append(results, *res)
	}

	feedbackAnswers, err := svc.repo.QueryAnswers(ctx, AnswerFilter{
		RevieweeID: revieweeID,
		Types:      []string{QuestionShortAnswer},
		PublicOnly: true,
	})
	if err != nil {
		return StudentResults{}, err
	}
	feedback := make([]FeedbackItem, 0, len(feedbackAnswers))
	for _, ans := range feedbackAnswers {
		feedback = append(feedback, FeedbackItem{
			ReviewTitle:   ans.ReviewTitle,
			QuestionText:  ans.QuestionText,
			ResponseValue: ans.Value,
		})
	}

	return StudentResults{Results: results, Feedback: feedback}, nil
}

func (svc *Service) PendingAssignments(ctx context.Context, reviewerID string) ([]PendingAssignment, error) {
	return svc.repo.QueryPendingAssignments(ctx, reviewerID, time.Now().UTC())
}
