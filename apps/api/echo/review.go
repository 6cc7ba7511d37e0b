package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tmalose/peerly/core/review"
)

type reviewApi struct {
	svc      review.ServiceInterface
	validate *validator.Validate
}

func registerReviewAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := reviewApi{
		svc:      deps.ReviewSvc,
		validate: deps.Validate,
	}

	rg := g.Group("/reviews", jwt)

	// instructor endpoints
	rg.POST("/templates", api.createTemplate, instructorMiddleware())
	rg.GET("/templates", api.queryTemplates, instructorMiddleware())
	rg.POST("", api.schedule, instructorMiddleware())
	rg.GET("/instructor", api.summaries, instructorMiddleware())
	rg.GET("/:id/results", api.results, instructorMiddleware())

	// student endpoints
	rg.GET("/pending", api.pendingAssignments, studentMiddleware())
	rg.GET("/assignments/:id", api.assignmentDetail, studentMiddleware())
	rg.POST("/assignments/:id/submit", api.submit, studentMiddleware())
	rg.GET("/results/student", api.studentResults, studentMiddleware())
}

// Handlers

func (api *reviewApi) createTemplate(ctx echo.Context) error {
	var data review.NewTemplate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTemplate")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	tmpl, err := api.svc.CreateTemplate(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return trapReviewErr(err)
	}
	return ctx.JSON(http.StatusCreated, tmpl)
}

func (api *reviewApi) queryTemplates(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	templates, err := api.svc.QueryTemplates(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying templates")
	}
	if templates == nil {
		templates = []review.Template{}
	}
	return ctx.JSON(http.StatusOK, templates)
}

func (api *reviewApi) schedule(ctx echo.Context) error {
	var data review.ScheduleReview
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScheduleReview")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	result, err := api.svc.Schedule(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return trapReviewErr(err)
	}
	return ctx.JSON(http.StatusCreated, result)
}

func (api *reviewApi) summaries(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	summaries, err := api.svc.Summaries(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying review summaries")
	}
	if summaries == nil {
		summaries = []review.ReviewSummary{}
	}
	return ctx.JSON(http.StatusOK, summaries)
}

func (api *reviewApi) results(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	results, err := api.svc.Results(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return trapReviewErr(err)
	}
	return ctx.JSON(http.StatusOK, results)
}

func (api *reviewApi) pendingAssignments(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	pending, err := api.svc.PendingAssignments(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying pending assignments")
	}
	if pending == nil {
		pending = []review.PendingAssignment{}
	}
	return ctx.JSON(http.StatusOK, pending)
}

func (api *reviewApi) assignmentDetail(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	detail, err := api.svc.AssignmentDetail(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return trapReviewErr(err)
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *reviewApi) submit(ctx echo.Context) error {
	var data review.SubmitReview
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitReview")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	if err := api.svc.Submit(ctx.Request().Context(), claims.Subject, ctx.Param("id"), data); err != nil {
		return trapReviewErr(err)
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Review submitted."})
}

func (api *reviewApi) studentResults(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	results, err := api.svc.StudentResults(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying student results")
	}
	return ctx.JSON(http.StatusOK, results)
}

// trapReviewErr maps review sentinels to HTTP errors.
func trapReviewErr(err error) error {
	switch errors.Cause(err) {
	case review.ErrTemplateNotFound, review.ErrReviewNotFound, review.ErrAssignmentNotFound:
		return errHttpNotFound
	case review.ErrNotReviewer:
		return errHttpForbidden
	case review.ErrAlreadyCompleted:
		return echo.NewHTTPError(http.StatusBadRequest, review.ErrAlreadyCompleted.Error())
	}
	return trapCourseErr(err)
}

type SuccessResponse struct {
	Success string `json:"success"`
}
