package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	echoapi "github.com/tmalose/peerly/apps/api/echo"
	"github.com/tmalose/peerly/core/course"
	"github.com/tmalose/peerly/core/user"
	testutil "github.com/tmalose/peerly/tests"
)

func Test_courseApi_create(t *testing.T) {
	db.Reset()

	prof := testutil.CreateUser(t, usrRepo, "Prof Awe", "awe@test.cd", "", []string{user.RoleInstructor}, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	profToken := getToken(t, prof)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Instructor required", token: getToken(t, student),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "required fields", token: profToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"title": "this field is required", "code": "this field is required"}),
		},
		{
			name: "course created", token: profToken, wantCode: http.StatusCreated,
			body:  marchallObj(t, course.NewCourse{Title: "Algorithms", Description: "Sorting and searching", Code: " CS201 "}),
			extra: true,
		},
		{
			name: "duplicate code", token: profToken, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, course.NewCourse{Title: "Algorithms II", Code: "cs201"}),
			wantData: marchallObj(t, map[string]string{"code": "course code already exists"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/courses"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if ok, _ := tt.extra.(bool); ok {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var respData course.Course
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Fatalf("json.Unmarshal() failed! err %v", err)
				}
				if respData.ID == "" || respData.Code != "cs201" || respData.InstructorID != prof.ID {
					t.Errorf("failed! course = %+v", respData)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_courseApi_query(t *testing.T) {
	db.Reset()

	prof := testutil.CreateUser(t, usrRepo, "Prof Awe", "awe@test.cd", "", []string{user.RoleInstructor}, true)
	otherProf := testutil.CreateUser(t, usrRepo, "Prof Key", "key@test.cd", "", []string{user.RoleInstructor}, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	outsider := testutil.CreateUser(t, usrRepo, "N Dog", "ndog@test.cd", "", []string{user.RoleStudent}, true)

	algo := testutil.CreateCourse(t, crsRepo, "Algorithms", "cs201", prof.ID)
	dbs := testutil.CreateCourse(t, crsRepo, "Databases", "cs305", prof.ID)
	testutil.CreateCourse(t, crsRepo, "Compilers", "cs401", otherProf.ID)
	testutil.EnrollStudents(t, crsRepo, algo.ID, student.ID)

	empty := marchallList(t, []interface{}{}...)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Instructor sees own courses", token: getToken(t, prof), wantCode: http.StatusOK, wantData: marchallList(t, algo, dbs)},
		{name: "Student sees enrollments", token: getToken(t, student), wantCode: http.StatusOK, wantData: marchallList(t, algo)},
		{name: "No enrollments", token: getToken(t, outsider), wantCode: http.StatusOK, wantData: empty},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.path = "/v1/courses"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_courseApi_retrieve(t *testing.T) {
	db.Reset()

	prof := testutil.CreateUser(t, usrRepo, "Prof Awe", "awe@test.cd", "", []string{user.RoleInstructor}, true)
	crs := testutil.CreateCourse(t, crsRepo, "Algorithms", "cs201", prof.ID)
	profToken := getToken(t, prof)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/courses/" + crs.ID, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Not found", path: "/v1/courses/nope", token: profToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{name: "Found", path: "/v1/courses/" + crs.ID, token: profToken, wantCode: http.StatusOK, wantData: marchallObj(t, crs)},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_courseApi_enrollStudents(t *testing.T) {
	db.Reset()

	prof := testutil.CreateUser(t, usrRepo, "Prof Awe", "awe@test.cd", "", []string{user.RoleInstructor}, true)
	otherProf := testutil.CreateUser(t, usrRepo, "Prof Key", "key@test.cd", "", []string{user.RoleInstructor}, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	crs := testutil.CreateCourse(t, crsRepo, "Algorithms", "cs201", prof.ID)

	body := marchallObj(t, course.EnrollStudents{Emails: []string{student.Email, "ghost@test.cd"}})

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Instructor required", token: getToken(t, student), body: body,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Owner required", token: getToken(t, otherProf), body: body,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "required fields", token: getToken(t, prof), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"emails": "this field is required"}),
		},
		{
			name: "enrollment report", token: getToken(t, prof), body: body, wantCode: http.StatusOK,
			wantData: marchallObj(t, course.EnrollmentReport{
				Success: []string{student.Email},
				Failed:  []course.EnrollmentFailure{{Email: "ghost@test.cd", Reason: "user not found"}},
			}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/courses/" + crs.ID + "/students"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("roster", func(t *testing.T) {
		tt := httpTest{
			name: "roster", method: http.MethodGet, path: "/v1/courses/" + crs.ID + "/students",
			token: getToken(t, prof), wantCode: http.StatusOK, wantData: marchallList(t, student),
		}
		req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}

func Test_courseApi_enrollByCode(t *testing.T) {
	db.Reset()

	prof := testutil.CreateUser(t, usrRepo, "Prof Awe", "awe@test.cd", "", []string{user.RoleInstructor}, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	crs := testutil.CreateCourse(t, crsRepo, "Algorithms", "cs201", prof.ID)
	studentToken := getToken(t, student)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Student required", token: getToken(t, prof),
			body:     marchallObj(t, echoapi.EnrollByCodeRequest{Code: "cs201"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "required fields", token: studentToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"code": "this field is required"}),
		},
		{
			name: "unknown code", token: studentToken,
			body:     marchallObj(t, echoapi.EnrollByCodeRequest{Code: "nope"}),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "enrolled", token: studentToken,
			body:     marchallObj(t, echoapi.EnrollByCodeRequest{Code: " CS201 "}), // cleaned and lowered
			wantCode: http.StatusOK, wantData: marchallObj(t, crs),
		},
		{
			name: "already enrolled", token: studentToken,
			body:     marchallObj(t, echoapi.EnrollByCodeRequest{Code: "cs201"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "already enrolled in this course"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/courses/enroll"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_courseApi_teams(t *testing.T) {
	db.Reset()

	prof := testutil.CreateUser(t, usrRepo, "Prof Awe", "awe@test.cd", "", []string{user.RoleInstructor}, true)
	anna := testutil.CreateUser(t, usrRepo, "Anna", "anna@test.cd", "", []string{user.RoleStudent}, true)
	ben := testutil.CreateUser(t, usrRepo, "Ben", "ben@test.cd", "", []string{user.RoleStudent}, true)
	outsider := testutil.CreateUser(t, usrRepo, "Carl", "carl@test.cd", "", []string{user.RoleStudent}, true)
	crs := testutil.CreateCourse(t, crsRepo, "Algorithms", "cs201", prof.ID)
	testutil.EnrollStudents(t, crsRepo, crs.ID, anna.ID, ben.ID)
	profToken := getToken(t, prof)

	var teamID string

	t.Run("team created with member report", func(t *testing.T) {
		body := marchallObj(t, course.NewTeam{Name: "Team 1", StudentIDs: []string{anna.ID, ben.ID, outsider.ID}})
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses/"+crs.ID+"/teams", profToken, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusCreated)
		}
		var respData echoapi.TeamResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if respData.Team.ID == "" || respData.Team.Name != "Team 1" {
			t.Errorf("failed! team = %+v", respData.Team)
		}
		if len(respData.Members.Success) != 2 {
			t.Errorf("failed! success = %v", respData.Members.Success)
		}
		if len(respData.Members.Failed) != 1 || respData.Members.Failed[0].StudentID != outsider.ID {
			t.Errorf("failed! failed = %+v", respData.Members.Failed)
		}
		teamID = respData.Team.ID
	})

	tests := []httpTest{
		{
			name: "Instructor required", method: http.MethodGet, path: "/v1/courses/" + crs.ID + "/teams",
			token: getToken(t, anna), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "required fields", method: http.MethodPost, path: "/v1/courses/" + crs.ID + "/teams",
			token: profToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"name": "this field is required", "studentIds": "this field is required"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("team listing", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses/"+crs.ID+"/teams", profToken)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
		}
		var respData []course.Team
		if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if len(respData) != 1 || respData[0].ID != teamID {
			t.Fatalf("failed! teams = %+v", respData)
		}
		wantMembers := []course.TeamMember{{UserID: anna.ID, Name: anna.Name}, {UserID: ben.ID, Name: ben.Name}}
		if len(respData[0].Members) != 2 ||
			respData[0].Members[0] != wantMembers[0] || respData[0].Members[1] != wantMembers[1] {
			t.Errorf("failed! members = %+v; want %+v", respData[0].Members, wantMembers)
		}
	})
}
