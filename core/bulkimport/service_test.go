package bulkimport_test

import (
	"context"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mafunzo/core"
	"github.com/trezcool/mafunzo/core/bulkimport"
	"github.com/trezcool/mafunzo/core/college"
	"github.com/trezcool/mafunzo/core/user"
	emailsvc "github.com/trezcool/mafunzo/services/email"
	dummydb "github.com/trezcool/mafunzo/storage/database/dummy"
	testutil "github.com/trezcool/mafunzo/tests"
)

type testEnv struct {
	svc    bulkimport.Service
	usrSvc user.Service
	col    college.College
	admin  user.User
}

func setup(t *testing.T) testEnv {
	t.Helper()

	conf := &core.Config{
		AppName:                   "Mafunzo",
		SecretKey:                 "poq9w8Yh7gWS",
		FrontendBaseURL:           "http://localhost:3000",
		DefaultFromEmail:          mail.Address{Name: "Mafunzo", Address: "noreply@test.mafunzo.dev"},
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
	}

	db, err := dummydb.Open()
	require.NoError(t, err)

	usrRepo := dummydb.NewUserRepository(db)
	usrSvc := user.NewServiceMock(usrRepo, emailsvc.NewConsoleServiceMock(conf), conf)
	svc := bulkimport.NewService(db, dummydb.NewImportRepository(db), usrSvc, testutil.NopLogger{})

	colRepo := dummydb.NewCollegeRepository(db)
	col := testutil.CreateCollege(t, colRepo, "Great Lakes College", "glc")
	admin := testutil.CreateUser(
		t, usrRepo, "College Admin", "gladmin", "admin@glc.test", "secret",
		[]string{user.RoleAdminCollege}, true, col.ID)

	emailsvc.SentMessages = nil
	return testEnv{svc: svc, usrSvc: usrSvc, col: col, admin: admin}
}

func (env testEnv) importFile(t *testing.T, kind bulkimport.Kind, name, data string) (bulkimport.Summary, error) {
	t.Helper()
	return env.svc.Import(context.Background(), bulkimport.ImportInput{
		Kind:        kind,
		CollegeID:   env.col.ID,
		SubmittedBy: env.admin.ID,
		FileName:    name,
		File:        strings.NewReader(data),
	})
}

func Test_service_Import_allRowsSucceed(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	data := "Full Name,Email,Roll Number,Degree,Branch,Year\n" +
		"Jane Doe,jane@glc.test,R001,BTech,CSE,2\n" +
		"John Smith,john@glc.test,R002,BTech,ECE,3\n" +
		"Amina Yusuf,amina@glc.test,R003,BSc,Math,1\n"

	sum, err := env.importFile(t, bulkimport.KindStudent, "students.csv", data)
	require.NoError(t, err)

	assert.Equal(t, 3, sum.TotalRows)
	assert.Equal(t, 3, sum.SuccessfulRows)
	assert.Equal(t, 0, sum.FailedRows)
	assert.Equal(t, bulkimport.StatusCompleted, sum.Status)
	assert.Empty(t, sum.Errors)

	// each row produced a pending identity with the email as temporary credential
	usr, err := env.usrSvc.GetByEmail(ctx, "jane@glc.test")
	require.NoError(t, err)
	assert.True(t, usr.Pending())
	assert.True(t, usr.Active())
	assert.Equal(t, env.col.ID, usr.CollegeID)
	assert.Equal(t, []string{user.RoleStudent}, usr.Roles)
	assert.NoError(t, usr.CheckPassword("jane@glc.test"))

	// one SUCCESS row result per row, aligned with the file
	results, err := env.svc.QueryRowResults(ctx, sum.BatchID)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, res := range results {
		assert.Equal(t, i+1, res.RowNumber)
		assert.Equal(t, bulkimport.RowSuccess, res.Outcome)
		assert.NotEmpty(t, res.CreatedUserID)
	}

	// one welcome email per created identity
	require.Len(t, emailsvc.SentMessages, 3)
	assert.Equal(t, "Welcome to Mafunzo", emailsvc.SentMessages[0].Subject)
}

func Test_service_Import_partialSuccess(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	// row 2 duplicates row 1's email
	data := "Full Name,Email,Roll Number\n" +
		"Jane Doe,jane@glc.test,R001\n" +
		"Jane Dupe,jane@glc.test,R002\n" +
		"John Smith,john@glc.test,R003\n"

	sum, err := env.importFile(t, bulkimport.KindStudent, "students.csv", data)
	require.NoError(t, err)

	assert.Equal(t, 3, sum.TotalRows)
	assert.Equal(t, 2, sum.SuccessfulRows)
	assert.Equal(t, 1, sum.FailedRows)
	assert.Equal(t, bulkimport.StatusCompleted, sum.Status)

	// only failed rows are reported, with their original position
	require.Len(t, sum.Errors, 1)
	assert.Equal(t, 2, sum.Errors[0].RowNumber)
	assert.Equal(t, "Email already exists: jane@glc.test", sum.Errors[0].Message)

	// earlier successes survive later failures
	_, err = env.usrSvc.GetByEmail(ctx, "jane@glc.test")
	assert.NoError(t, err)
	_, err = env.usrSvc.GetByEmail(ctx, "john@glc.test")
	assert.NoError(t, err)

	results, err := env.svc.QueryRowResults(ctx, sum.BatchID)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, bulkimport.RowSuccess, results[0].Outcome)
	assert.Equal(t, bulkimport.RowFailed, results[1].Outcome)
	assert.Empty(t, results[1].CreatedUserID)
	assert.Equal(t, bulkimport.RowSuccess, results[2].Outcome)

	// no email for the failed row
	assert.Len(t, emailsvc.SentMessages, 2)
}

func Test_service_Import_duplicateRollNumber(t *testing.T) {
	env := setup(t)

	data := "Full Name,Email,Roll Number\n" +
		"Jane Doe,jane@glc.test,R001\n" +
		"John Smith,john@glc.test,R001\n"

	sum, err := env.importFile(t, bulkimport.KindStudent, "students.csv", data)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.SuccessfulRows)
	assert.Equal(t, 1, sum.FailedRows)
	require.Len(t, sum.Errors, 1)
	assert.Equal(t, "Roll number already exists: R001", sum.Errors[0].Message)
}

func Test_service_Import_missingRequiredField(t *testing.T) {
	env := setup(t)

	data := "Full Name,Email,Roll Number\n" +
		",jane@glc.test,R001\n" +
		"John Smith,,R002\n" +
		"Bad Email,not-an-email,R003\n"

	sum, err := env.importFile(t, bulkimport.KindStudent, "students.csv", data)
	require.NoError(t, err)

	assert.Equal(t, 0, sum.SuccessfulRows)
	assert.Equal(t, 3, sum.FailedRows)
	require.Len(t, sum.Errors, 3)
	assert.Equal(t, "missing required field: Full Name", sum.Errors[0].Message)
	assert.Equal(t, "missing required field: Email", sum.Errors[1].Message)
	assert.Equal(t, "invalid email: not-an-email", sum.Errors[2].Message)
}

func Test_service_Import_structuralFailure(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		fileName string
		data     string
	}{
		{name: "not a csv", fileName: "students.xlsx", data: "Full Name,Email,Roll Number\n"},
		{name: "empty file", fileName: "students.csv", data: ""},
		{name: "missing required column", fileName: "students.csv", data: "Full Name,Email\nJane Doe,jane@glc.test\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum, err := env.importFile(t, bulkimport.KindStudent, tt.fileName, tt.data)
			require.Error(t, err)
			assert.IsType(t, &core.ValidationError{}, err)
			assert.Zero(t, sum)

			// the batch is FAILED with no row results at all
			batches, err := env.svc.QueryBatches(ctx, env.col.ID)
			require.NoError(t, err)
			require.NotEmpty(t, batches)
			batch := batches[0]
			assert.Equal(t, bulkimport.StatusFailed, batch.Status)
			assert.NotEmpty(t, batch.ErrorReport)
			assert.False(t, batch.CompletedAt.IsZero())

			results, err := env.svc.QueryRowResults(ctx, batch.ID)
			require.NoError(t, err)
			assert.Empty(t, results)
		})
	}

	// no identities were created along the way
	users, err := env.usrSvc.Query(ctx, &user.QueryFilter{Roles: []string{user.RoleStudent}}, nil)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func Test_service_Import_trainers(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	data := "Full Name,Email,Department,Specialization\n" +
		"Grace Mwangi,grace@glc.test,Physics,Optics\n" +
		"No Dept,nodept@glc.test,,\n"

	sum, err := env.importFile(t, bulkimport.KindTrainer, "trainers.csv", data)
	require.NoError(t, err)

	// Department and Specialization are optional
	assert.Equal(t, 2, sum.SuccessfulRows)
	assert.Equal(t, 0, sum.FailedRows)

	usr, err := env.usrSvc.GetByEmail(ctx, "grace@glc.test")
	require.NoError(t, err)
	assert.Equal(t, []string{user.RoleTrainer}, usr.Roles)
	assert.True(t, usr.Pending())
}

func Test_service_Import_malformedLine(t *testing.T) {
	env := setup(t)

	data := "Full Name,Email,Roll Number\n" +
		"Jane Doe,jane@glc.test,R001\n" +
		"\"broken,bro@glc.test,R002\"x\n" +
		"John Smith,john@glc.test,R003\n"

	sum, err := env.importFile(t, bulkimport.KindStudent, "students.csv", data)
	require.NoError(t, err)

	assert.Equal(t, 3, sum.TotalRows)
	assert.Equal(t, 2, sum.SuccessfulRows)
	assert.Equal(t, 1, sum.FailedRows)
	require.Len(t, sum.Errors, 1)
	// the bad line keeps its position so later rows line up with the file
	assert.Equal(t, 2, sum.Errors[0].RowNumber)
}

func Test_service_GetSummary(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	data := "Full Name,Email,Roll Number\n" +
		"Jane Doe,jane@glc.test,R001\n" +
		"Jane Dupe,jane@glc.test,R002\n"

	sum, err := env.importFile(t, bulkimport.KindStudent, "students.csv", data)
	require.NoError(t, err)

	// reading the report does not alter it
	for i := 0; i < 2; i++ {
		got, err := env.svc.GetSummary(ctx, sum.BatchID)
		require.NoError(t, err)
		assert.Equal(t, sum.TotalRows, got.TotalRows)
		assert.Equal(t, sum.SuccessfulRows, got.SuccessfulRows)
		assert.Equal(t, sum.FailedRows, got.FailedRows)
		assert.Equal(t, sum.Status, got.Status)
		require.Len(t, got.Errors, 1)
		assert.Equal(t, 2, got.Errors[0].RowNumber)
		assert.Equal(t, "Email already exists: jane@glc.test", got.Errors[0].Message)
	}
}

func Test_service_Import_invalidKind(t *testing.T) {
	env := setup(t)

	_, err := env.svc.Import(context.Background(), bulkimport.ImportInput{
		Kind:      "TEACHER",
		CollegeID: env.col.ID,
		FileName:  "x.csv",
		File:      strings.NewReader(""),
	})
	require.Error(t, err)
	assert.IsType(t, &core.ValidationError{}, err)
}
