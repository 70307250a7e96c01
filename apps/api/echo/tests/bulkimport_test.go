package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/mafunzo/apps/api/echo"
	"github.com/trezcool/mafunzo/core/bulkimport"
	"github.com/trezcool/mafunzo/core/user"
	emailsvc "github.com/trezcool/mafunzo/services/email"
	testutil "github.com/trezcool/mafunzo/tests"
)

const studentsCSV = "Full Name,Email,Roll Number,Degree,Branch,Year\n" +
	"Jane Doe,jane@glc.test,R001,BTech,CSE,2\n" +
	"John Smith,john@glc.test,R002,BTech,ECE,3\n"

func Test_importApi_importStudents(t *testing.T) {
	ta := setup(t)
	ctx := context.Background()

	col := testutil.CreateCollege(t, ta.colRepo, "Great Lakes College", "glc")
	admin := testutil.CreateUser(
		t, ta.usrRepo, "College Admin", "gladmin", "admin@glc.test", "LeSecret!",
		[]string{user.RoleAdminCollege}, true, col.ID)
	student := testutil.CreateUser(
		t, ta.usrRepo, "Some Student", "somestudent", "student@glc.test", "LeSecret!",
		[]string{user.RoleStudent}, true, col.ID)

	adminToken := getToken(t, admin)
	path := "/v1/imports/students"

	t.Run("Auth required", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}
		req, rec := newUploadRequest(t, path, "", "students.csv", studentsCSV, nil)
		ta.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("Admin required", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}
		req, rec := newUploadRequest(t, path, getToken(t, student), "students.csv", studentsCSV, nil)
		ta.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("File required", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path, adminToken)
		ta.app.ServeHTTP(rec, req)

		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"file": "this field is required"}),
		}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("Import ok", func(t *testing.T) {
		emailsvc.SentMessages = nil
		req, rec := newUploadRequest(t, path, adminToken, "students.csv", studentsCSV, nil)
		ta.app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var sum bulkimport.Summary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
		assert.NotEmpty(t, sum.BatchID)
		assert.Equal(t, 2, sum.TotalRows)
		assert.Equal(t, 2, sum.SuccessfulRows)
		assert.Equal(t, 0, sum.FailedRows)
		assert.Equal(t, bulkimport.StatusCompleted, sum.Status)
		assert.Empty(t, sum.Errors)

		// identities exist, pending setup, scoped to the admin's college
		usr, err := ta.usrSvc.GetByEmail(ctx, "jane@glc.test")
		require.NoError(t, err)
		assert.True(t, usr.Pending())
		assert.Equal(t, col.ID, usr.CollegeID)

		assert.Len(t, emailsvc.SentMessages, 2)
	})

	t.Run("Partial failure", func(t *testing.T) {
		emailsvc.SentMessages = nil
		content := "Full Name,Email,Roll Number\n" +
			"New Guy,newguy@glc.test,R100\n" +
			"Dup Gal,jane@glc.test,R101\n"
		req, rec := newUploadRequest(t, path, adminToken, "more.csv", content, nil)
		ta.app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var sum bulkimport.Summary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
		assert.Equal(t, 2, sum.TotalRows)
		assert.Equal(t, 1, sum.SuccessfulRows)
		assert.Equal(t, 1, sum.FailedRows)
		assert.Equal(t, bulkimport.StatusCompleted, sum.Status)
		require.Len(t, sum.Errors, 1)
		assert.Equal(t, 2, sum.Errors[0].RowNumber)
		assert.Equal(t, "Email already exists: jane@glc.test", sum.Errors[0].Message)

		// the good row survived its failed neighbor
		_, err := ta.usrSvc.GetByEmail(ctx, "newguy@glc.test")
		assert.NoError(t, err)
		assert.Len(t, emailsvc.SentMessages, 1)
	})

	t.Run("Structurally invalid file", func(t *testing.T) {
		tests := []struct {
			name     string
			fileName string
			content  string
			wantErr  string
		}{
			{name: "Not a CSV", fileName: "students.xlsx", content: studentsCSV, wantErr: "file must be a CSV"},
			{name: "Empty file", fileName: "students.csv", content: "", wantErr: "file is empty"},
			{name: "Missing column", fileName: "students.csv", content: "Full Name,Roll Number\nJane Doe,R001\n", wantErr: "missing required column: Email"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req, rec := newUploadRequest(t, path, adminToken, tt.fileName, tt.content, nil)
				ta.app.ServeHTTP(rec, req)

				want := httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: tt.wantErr})}
				checkCodeAndData(t, want, rec)
			})
		}
	})
}

func Test_importApi_systemAdminScoping(t *testing.T) {
	ta := setup(t)

	col := testutil.CreateCollege(t, ta.colRepo, "Great Lakes College", "glc")
	sysAdmin := testutil.CreateUser(
		t, ta.usrRepo, "Root", "root", "root@mafunzo.test", "LeSecret!",
		[]string{user.RoleAdminSystem}, true, "")
	token := getToken(t, sysAdmin)

	t.Run("College required", func(t *testing.T) {
		req, rec := newUploadRequest(t, "/v1/imports/trainers", token, "trainers.csv", "Full Name,Email\n", nil)
		ta.app.ServeHTTP(rec, req)

		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"college_id": "this field is required"}),
		}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("Explicit college accepted", func(t *testing.T) {
		content := "Full Name,Email,Department\nMary Major,mary@glc.test,Physics\n"
		req, rec := newUploadRequest(t, "/v1/imports/trainers", token, "trainers.csv", content,
			map[string]string{"college_id": col.ID})
		ta.app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var sum bulkimport.Summary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
		assert.Equal(t, 1, sum.SuccessfulRows)

		// the batch shows up when querying that college
		req, rec = newAuthRequest(http.MethodGet, "/v1/imports?college_id="+col.ID, token)
		ta.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var batches []bulkimport.UploadBatch
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &batches))
		require.Len(t, batches, 1)
		assert.Equal(t, col.ID, batches[0].CollegeID)
		assert.Equal(t, bulkimport.KindTrainer, batches[0].Kind)
	})
}

func Test_importApi_reports(t *testing.T) {
	ta := setup(t)

	col := testutil.CreateCollege(t, ta.colRepo, "Great Lakes College", "glc")
	otherCol := testutil.CreateCollege(t, ta.colRepo, "Far Away College", "fac")
	admin := testutil.CreateUser(
		t, ta.usrRepo, "College Admin", "gladmin", "admin@glc.test", "LeSecret!",
		[]string{user.RoleAdminCollege}, true, col.ID)
	otherAdmin := testutil.CreateUser(
		t, ta.usrRepo, "Other Admin", "facadmin", "admin@fac.test", "LeSecret!",
		[]string{user.RoleAdminCollege}, true, otherCol.ID)
	token := getToken(t, admin)

	// seed a batch with one failed row
	content := "Full Name,Email,Roll Number\n" +
		"Jane Doe,jane@glc.test,R001\n" +
		"No Mail,,R002\n"
	req, rec := newUploadRequest(t, "/v1/imports/students", token, "students.csv", content, nil)
	ta.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var sum bulkimport.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))

	t.Run("Query batches", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/imports", token)
		ta.app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var batches []bulkimport.UploadBatch
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &batches))
		require.Len(t, batches, 1)
		assert.Equal(t, sum.BatchID, batches[0].ID)
		assert.Equal(t, "students.csv", batches[0].FileName)
		assert.Equal(t, 2, batches[0].TotalRows)
		assert.Equal(t, 1, batches[0].FailedRows)
	})

	t.Run("Retrieve batch detail", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/imports/"+sum.BatchID, token)
		ta.app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var detail BatchDetailResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
		assert.Equal(t, sum.BatchID, detail.Batch.ID)
		assert.Equal(t, bulkimport.StatusCompleted, detail.Batch.Status)
		require.Len(t, detail.Summary.Errors, 1)
		assert.Equal(t, 2, detail.Summary.Errors[0].RowNumber)
		assert.Equal(t, "missing required field: Email", detail.Summary.Errors[0].Message)
	})

	t.Run("Query row results", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/imports/"+sum.BatchID+"/rows", token)
		ta.app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var results []bulkimport.RowResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
		require.Len(t, results, 2)
		assert.Equal(t, 1, results[0].RowNumber)
		assert.Equal(t, bulkimport.RowSuccess, results[0].Outcome)
		assert.NotEmpty(t, results[0].CreatedUserID)
		assert.Equal(t, 2, results[1].RowNumber)
		assert.Equal(t, bulkimport.RowFailed, results[1].Outcome)
		assert.Equal(t, "missing required field: Email", results[1].ErrorMessage)
	})

	t.Run("Cross-tenant access is hidden", func(t *testing.T) {
		otherToken := getToken(t, otherAdmin)
		for _, p := range []string{"/v1/imports/" + sum.BatchID, "/v1/imports/" + sum.BatchID + "/rows"} {
			tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})}
			req, rec := newAuthRequest(http.MethodGet, p, otherToken)
			ta.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		}

		// and their batch list stays empty
		req, rec := newAuthRequest(http.MethodGet, "/v1/imports", otherToken)
		ta.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var batches []bulkimport.UploadBatch
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &batches))
		assert.Empty(t, batches)
	})

	t.Run("Unknown batch", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})}
		req, rec := newAuthRequest(http.MethodGet, "/v1/imports/0b2b34a7-847d-44bc-a24e-cb77f1b4ba87", token)
		ta.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}
