package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tmalose/peerly/core/course"
	"github.com/tmalose/peerly/core/user"
)

type courseApi struct {
	svc      course.ServiceInterface
	validate *validator.Validate
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := courseApi{
		svc:      deps.CourseSvc,
		validate: deps.Validate,
	}

	cg := g.Group("/courses", jwt)

	cg.GET("", api.query)
	cg.POST("", api.create, instructorMiddleware())
	cg.POST("/enroll", api.enrollByCode, studentMiddleware())
	cg.GET("/:id", api.retrieve)
	cg.POST("/:id/students", api.enrollStudents, instructorMiddleware())
	cg.GET("/:id/students", api.queryStudents, instructorMiddleware())
	cg.POST("/:id/teams", api.createTeam, instructorMiddleware())
	cg.GET("/:id/teams", api.queryTeams, instructorMiddleware())
}

// Handlers

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	crs, err := api.svc.Create(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, crs)
}

// query lists the caller's courses: owned ones for instructors, enrollments for students.
func (api *courseApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var courses []course.Course
	if claims.IsInstructor || claims.IsAdmin {
		courses, err = api.svc.QueryByInstructor(ctx.Request().Context(), claims.Subject)
	} else {
		courses, err = api.svc.QueryByStudent(ctx.Request().Context(), claims.Subject)
	}
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	crs, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) enrollStudents(ctx echo.Context) error {
	var data course.EnrollStudents
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EnrollStudents")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	report, err := api.svc.EnrollByEmails(ctx.Request().Context(), claims.Subject, ctx.Param("id"), data)
	if err != nil {
		return trapCourseErr(err)
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *courseApi) enrollByCode(ctx echo.Context) error {
	var data EnrollByCodeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EnrollByCodeRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	crs, err := api.svc.EnrollByCode(ctx.Request().Context(), claims.Subject, data.Code)
	if err != nil {
		return trapCourseErr(err)
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) queryStudents(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	students, err := api.svc.Students(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return trapCourseErr(err)
	}
	if students == nil {
		students = []user.User{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *courseApi) createTeam(ctx echo.Context) error {
	var data course.NewTeam
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeam")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	team, report, err := api.svc.CreateTeam(ctx.Request().Context(), claims.Subject, ctx.Param("id"), data)
	if err != nil {
		return trapCourseErr(err)
	}
	return ctx.JSON(http.StatusCreated, TeamResponse{Team: team, Members: report})
}

func (api *courseApi) queryTeams(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	crs, err := api.svc.GetOwned(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return trapCourseErr(err)
	}

	teams, err := api.svc.Teams(ctx.Request().Context(), crs.ID)
	if err != nil {
		return errors.Wrap(err, "querying teams")
	}
	if teams == nil {
		teams = []course.Team{}
	}
	return ctx.JSON(http.StatusOK, teams)
}

// trapCourseErr maps course sentinels to HTTP errors.
func trapCourseErr(err error) error {
	switch errors.Cause(err) {
	case course.ErrNotFound, course.ErrTeamNotFound:
		return errHttpNotFound
	case course.ErrNotOwner:
		return errHttpForbidden
	}
	return err
}

type (
	EnrollByCodeRequest struct {
		Code string `json:"code" validate:"required"`
	}

	TeamResponse struct {
		Team    course.Team         `json:"team"`
		Members course.MemberReport `json:"members"`
	}
)
