package review

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tmalose/peerly/core"
)

// Question types
const (
	QuestionLikert         = "likert"
	QuestionMultipleChoice = "multiple_choice"
	QuestionShortAnswer    = "short_answer"
)

// Assignment statuses
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

type Template struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	InstructorID string     `json:"instructor_id"`
	CourseID     string     `json:"course_id"`
	CreatedAt    time.Time  `json:"created_at"` // UTC
	Questions    []Question `json:"questions"`  // ordered by OrderNum
}

type Question struct {
	ID         string   `json:"id"`
	TemplateID string   `json:"template_id"`
	Text       string   `json:"text"`
	Type       string   `json:"type"`
	Options    []string `json:"options,omitempty"` // multiple_choice only
	Required   bool     `json:"required"`
	OrderNum   int      `json:"order_num"` // unique within template
}

type Review struct {
	ID          string    `json:"id"`
	TemplateID  string    `json:"template_id"`
	CourseID    string    `json:"course_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

type Assignment struct {
	ID          string     `json:"id"`
	ReviewID    string     `json:"review_id"`
	ReviewerID  string     `json:"reviewer_id"`
	RevieweeID  string     `json:"reviewee_id"`
	Status      string     `json:"status"`
	AssignedAt  time.Time  `json:"assigned_at"` // UTC
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// display-only, populated by repository joins
	RevieweeName string `json:"reviewee_name,omitempty"`
}

type Response struct {
	ID           string `json:"id"`
	AssignmentID string `json:"assignment_id"`
	QuestionID   string `json:"question_id"`
	Value        string `json:"value"`
	IsPrivate    bool   `json:"is_private"`
}

// NewTemplate contains information needed to create a Template with its Questions.
type NewTemplate struct {
	Title       string        `json:"title" validate:"required"`
	Description string        `json:"description"`
	CourseID    string        `json:"courseId" validate:"required"`
	Questions   []NewQuestion `json:"questions" validate:"required,min=1,dive"`
}

type NewQuestion struct {
	Text     string   `json:"text" validate:"required"`
	Type     string   `json:"type" validate:"required,oneof=likert multiple_choice short_answer"`
	Options  []string `json:"options,omitempty"`
	Required *bool    `json:"required,omitempty"` // defaults to true
}

func (nq NewQuestion) IsRequired() bool {
	return nq.Required == nil || *nq.Required
}

func (nt *NewTemplate) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	for i := range nt.Questions {
		nt.Questions[i].Text = core.CleanString(nt.Questions[i].Text)
	}
	return validate.Struct(nt)
}

// AssignmentPair is one directed reviewer→reviewee obligation to create.
type AssignmentPair struct {
	ReviewerID string `json:"reviewerId" validate:"required"`
	RevieweeID string `json:"revieweeId" validate:"required,nefield=ReviewerID"`
}

// ScheduleReview creates one review cycle. Assignments may be supplied
// pre-computed by the caller; when omitted they are generated from the
// course's team rosters.
type ScheduleReview struct {
	Title       string           `json:"title" validate:"required"`
	Description string           `json:"description"`
	TemplateID  string           `json:"templateId" validate:"required"`
	CourseID    string           `json:"courseId" validate:"required"`
	DueDate     time.Time        `json:"dueDate" validate:"required"`
	Assignments []AssignmentPair `json:"assignments" validate:"omitempty,dive"`
}

func (sr *ScheduleReview) Validate(validate *validator.Validate) error {
	sr.Title = core.CleanString(sr.Title)
	return validate.Struct(sr)
}

// SubmitReview is a reviewer's answer set for one Assignment.
type SubmitReview struct {
	Responses []NewResponse `json:"responses" validate:"required,min=1,dive"`
}

type NewResponse struct {
	QuestionID string `json:"questionId" validate:"required"`
	Value      string `json:"value"`
	IsPrivate  bool   `json:"isPrivate"`
}

func (sub *SubmitReview) Validate(validate *validator.Validate) error {
	return validate.Struct(sub)
}

// AssignmentFailure records one pair that could not be persisted during scheduling.
type AssignmentFailure struct {
	Pair   AssignmentPair `json:"pair"`
	Reason string         `json:"reason"`
}

// ScheduleResult reports a scheduled review and its best-effort assignment batch.
type ScheduleResult struct {
	Review      Review              `json:"review"`
	Assignments []Assignment        `json:"assignments"`
	Failed      []AssignmentFailure `json:"failed,omitempty"`
}

// ReviewSummary is one row of the instructor dashboard.
type ReviewSummary struct {
	Review
	CourseTitle     string `json:"course_title"`
	TemplateTitle   string `json:"template_title"`
	AssignmentCount int    `json:"assignment_count"`
	CompletedCount  int    `json:"completed_count"`
}

// RevieweeResult is one reviewee's aggregate outcome within a review.
// Score is on a 0-100 display scale and nil when no likert response exists.
type RevieweeResult struct {
	RevieweeID       string `json:"reviewee_id"`
	RevieweeName     string `json:"reviewee_name"`
	TotalReviews     int    `json:"total_reviews"`
	CompletedReviews int    `json:"completed_reviews"`
	Score            *int   `json:"score"`
}

// ReviewResults is the instructor-facing view of one review cycle.
type ReviewResults struct {
	Review  Review           `json:"review"`
	Results []RevieweeResult `json:"results"`
}

// StudentResult is a student's aggregate outcome for one review they were reviewed in.
type StudentResult struct {
	ReviewID         string `json:"review_id"`
	ReviewTitle      string `json:"review_title"`
	TotalReviews     int    `json:"total_reviews"`
	CompletedReviews int    `json:"completed_reviews"`
	Score            *int   `json:"score"`
}

// FeedbackItem is one public short-answer response shown to the reviewee.
type FeedbackItem struct {
	ReviewTitle   string `json:"review_title"`
	QuestionText  string `json:"question_text"`
	ResponseValue string `json:"response_value"`
}

// StudentResults is the student-facing results view.
type StudentResults struct {
	Results  []StudentResult `json:"results"`
	Feedback []FeedbackItem  `json:"feedback"`
}

// PendingAssignment is one entry of a student's pending-review list.
type PendingAssignment struct {
	AssignmentID      string    `json:"assignment_id"`
	ReviewID          string    `json:"review_id"`
	ReviewTitle       string    `json:"review_title"`
	ReviewDescription string    `json:"review_description"`
	RevieweeID        string    `json:"reviewee_id"`
	RevieweeName      string    `json:"reviewee_name"`
	DueDate           time.Time `json:"due_date"`
}

// AssignmentDetail is what a reviewer sees when filling in a review.
type AssignmentDetail struct {
	Assignment        Assignment `json:"assignment"`
	ReviewTitle       string     `json:"review_title"`
	ReviewDescription string     `json:"review_description"`
	Questions         []Question `json:"questions"` // ordered by OrderNum
}

// Answer is a response joined with its question and assignment context,
// as consumed by the score aggregator.
type Answer struct {
	AssignmentID string `json:"assignment_id"`
	ReviewID     string `json:"review_id"`
	ReviewTitle  string `json:"review_title"`
	RevieweeID   string `json:"reviewee_id"`
	QuestionID   string `json:"question_id"`
	QuestionText string `json:"question_text"`
	QuestionType string `json:"question_type"`
	Value        string `json:"value"`
	IsPrivate    bool   `json:"is_private"`
}

// AssignmentFilter selects assignments; zero fields are ignored.
type AssignmentFilter struct {
	ReviewID   string
	ReviewerID string
	RevieweeID string
	Status     string
}

// AnswerFilter selects joined answers from completed assignments.
type AnswerFilter struct {
	ReviewID   string
	RevieweeID string
	Types      []string
	PublicOnly bool
}
