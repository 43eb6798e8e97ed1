package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	echoapi "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core/school"
	"github.com/trezcool/academia/core/user"
	testutil "github.com/trezcool/academia/tests"
)

func Test_examApi_termFlow(t *testing.T) {
	admin := testutil.CreateUser(t, usrRepo, "Admin", "examadmin", "examadmin@test.cd", "", []string{user.RoleAdmin}, true)
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "examteach", "examteach@test.cd", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, usrRepo, "Student", "examstud", "examstud@test.cd", "", []string{user.RoleStudent}, true)

	adminToken := getToken(t, admin)
	teacherToken := getToken(t, teacher)
	studentToken := getToken(t, student)

	cls := testutil.CreateClass(t, schoolRepo, "Form 1", 1)
	term := testutil.CreateTerm(t, schoolRepo, "Term 1", "2023-2024", parseDate(t, "2023-09-04"), parseDate(t, "2023-12-08"))
	math := testutil.CreateSubject(t, schoolRepo, cls.ID, "Mathematics",
		school.Distribution{Name: "midterm", MaxMark: 40},
		school.Distribution{Name: "final", MaxMark: 60},
	)
	alice := testutil.CreateStudent(t, schoolRepo, "Alice", "adm-100", "alice@test.cd", cls.ID)
	bob := testutil.CreateStudent(t, schoolRepo, "Bob", "adm-101", "", cls.ID)
	carol := testutil.CreateStudent(t, schoolRepo, "Carol", "adm-102", "", cls.ID)

	initBody := marchallObj(t, map[string]string{"class_id": cls.ID, "term_id": term.ID})

	t.Run("init requires auth", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/exams/records/init", initBody)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)
	})

	t.Run("init requires staff", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/exams/records/init", studentToken, initBody)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)
	})

	var records []echoapi.MarkRecordResponse

	t.Run("init creates one blank record per student", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/exams/records/init", teacherToken, initBody)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
			t.Fatalf("unmarshalling records: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("len(records) = %d; want 3", len(records))
		}
		for _, r := range records {
			if r.TotalMarks != 0 || r.Position != 0 || r.Rank != "" {
				t.Errorf("blank record has totals: %+v", r)
			}
			if r.CreatedBy != teacher.Username {
				t.Errorf("CreatedBy = %q; want %q", r.CreatedBy, teacher.Username)
			}
		}
	})

	t.Run("init rerun is a no-op", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/exams/records/init", teacherToken, initBody)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusCreated, wantData: marchallList(t)}, rec)
	})

	recordOf := func(t *testing.T, studentID string) echoapi.MarkRecordResponse {
		for _, r := range records {
			if r.StudentID == studentID {
				return r
			}
		}
		t.Fatalf("no record for student %s", studentID)
		return echoapi.MarkRecordResponse{}
	}

	saveMarks := func(t *testing.T, recID string, midterm, final int) {
		body := marchallObj(t, map[string]interface{}{
			"subjects": []map[string]interface{}{{
				"subject": math.Name,
				"distributions": []map[string]interface{}{
					{"distribution_id": math.Distributions[0].ID, "mark": midterm},
					{"distribution_id": math.Distributions[1].ID, "mark": final},
				},
			}},
		})
		req, rec := newAuthRequest(http.MethodPut, "/v1/exams/records/"+recID+"/marks", teacherToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var got echoapi.MarkRecordResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("unmarshalling record: %v", err)
		}
		// totals only move when positions are generated
		if got.TotalMarks != 0 || got.Position != 0 {
			t.Errorf("totals recomputed on save: %+v", got)
		}
	}

	t.Run("save entries", func(t *testing.T) {
		saveMarks(t, recordOf(t, alice.ID).ID, 35, 55) // 90
		saveMarks(t, recordOf(t, bob.ID).ID, 30, 40)   // 70
		// carol never sat the exam; her marks stay null
	})

	t.Run("negative mark rejected", func(t *testing.T) {
		body := marchallObj(t, map[string]interface{}{
			"subjects": []map[string]interface{}{{
				"subject": math.Name,
				"distributions": []map[string]interface{}{
					{"distribution_id": math.Distributions[0].ID, "mark": -1},
				},
			}},
		})
		req, rec := newAuthRequest(http.MethodPut, "/v1/exams/records/"+recordOf(t, alice.ID).ID+"/marks", teacherToken, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"mark": "marks cannot be negative"}),
		}, rec)
	})

	t.Run("unknown record", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/exams/records/nope", teacherToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "mark record not found"}),
		}, rec)
	})

	t.Run("generate positions ranks the class", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/exams/positions", teacherToken, initBody)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var ranked []echoapi.MarkRecordResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &ranked); err != nil {
			t.Fatalf("unmarshalling records: %v", err)
		}
		if len(ranked) != 3 {
			t.Fatalf("len(ranked) = %d; want 3", len(ranked))
		}

		byStudent := make(map[string]echoapi.MarkRecordResponse, len(ranked))
		for _, r := range ranked {
			byStudent[r.StudentID] = r
		}
		assertRank := func(studentID string, total, pos int, rank string) {
			r := byStudent[studentID]
			if r.TotalMarks != total || r.Position != pos || r.Rank != rank {
				t.Errorf("got total=%d pos=%d rank=%q; want total=%d pos=%d rank=%q", r.TotalMarks, r.Position, r.Rank, total, pos, rank)
			}
		}
		assertRank(alice.ID, 90, 1, "1st")
		assertRank(bob.ID, 70, 2, "2nd")
		assertRank(carol.ID, 0, 0, "") // no marks, unranked
	})

	t.Run("publish requires admin", func(t *testing.T) {
		body := marchallObj(t, map[string]interface{}{"class_id": cls.ID, "term_id": term.ID, "publish": true})
		req, rec := newAuthRequest(http.MethodPost, "/v1/exams/publish", teacherToken, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)

		req, rec = newAuthRequest(http.MethodPost, "/v1/exams/publish", adminToken, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Records updated."})}, rec)

		req, rec = newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/exams/records?class_id=%s&term_id=%s", cls.ID, term.ID), teacherToken)
		app.ServeHTTP(rec, req)
		var published []echoapi.MarkRecordResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &published); err != nil {
			t.Fatalf("unmarshalling records: %v", err)
		}
		for _, r := range published {
			if !r.Publish {
				t.Errorf("record %s not published", r.ID)
			}
		}
	})
}

func parseDate(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", value)
	if err != nil {
		t.Fatalf("parseDate(%s): %v", value, err)
	}
	return d
}
