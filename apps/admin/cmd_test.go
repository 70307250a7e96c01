package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/trezcool/mafunzo/core"
	"github.com/trezcool/mafunzo/core/bulkimport"
	"github.com/trezcool/mafunzo/core/college"
	"github.com/trezcool/mafunzo/core/user"
	emailsvc "github.com/trezcool/mafunzo/services/email"
	"github.com/trezcool/mafunzo/storage/database"
	dummydb "github.com/trezcool/mafunzo/storage/database/dummy"
	testutil "github.com/trezcool/mafunzo/tests"
)

var (
	usrRepo user.Repository
	colRepo college.Repository
)

func setup(t *testing.T) *commandLine {
	t.Helper()

	conf := &core.Config{
		Env:                       "TEST",
		TestMode:                  true,
		AppName:                   "Mafunzo",
		SecretKey:                 "poq9w8Yh7gWS",
		FrontendBaseURL:           "http://localhost:3000",
		DefaultFromEmail:          mail.Address{Name: "Mafunzo", Address: "noreply@test.mafunzo.dev"},
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
	}

	// set up DB & repos
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open(): %v", err)
	}
	usrRepo = dummydb.NewUserRepository(db)
	colRepo = dummydb.NewCollegeRepository(db)
	usrSvc := user.NewServiceMock(usrRepo, emailsvc.NewConsoleServiceMock(conf), conf)

	// start CLI
	return &commandLine{
		db:        &database.DB{},
		usrRepo:   usrRepo,
		colRepo:   colRepo,
		importSvc: bulkimport.NewService(db, dummydb.NewImportRepository(db), usrSvc, testutil.NopLogger{}),
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, fsys fs.FS, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@test.cd", "mdr", nil, true, "")

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: "lol"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshedUsr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
				if err != nil {
					t.Fatalf("GetUser() failed, %v", err)
				}
				if bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash) {
					t.Error("failed to update new password")
				}
			} else if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_commandLine_addCollege(t *testing.T) {
	cli := setup(t)

	tests := []cliTest{
		{name: "no args", args: []string{"addcollege"}, wantErr: errHelp},
		{name: "name but no code", args: []string{"addcollege", "-name", "Great Lakes College"}, wantErr: errHelp},
		{name: "create ok", args: []string{"addcollege", "-name", "Great Lakes College", "-code", "GLC"}},
		{name: "duplicate code", args: []string{"addcollege", "-name", "Other", "-code", "glc"}, wantErr: college.ErrCodeExists},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				col, err := colRepo.GetCollegeByCode(context.Background(), "glc")
				if err != nil {
					t.Fatalf("GetCollegeByCode() failed, %v", err)
				}
				if col.Name != "Great Lakes College" {
					t.Errorf("college name = %s, want Great Lakes College", col.Name)
				}
			} else if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	col := testutil.CreateCollege(t, colRepo, "Great Lakes College", "glc")

	readPasswordFunc = func(fd int) ([]byte, error) { return []byte("LeSecret!"), nil }

	if err := cli.run([]string{"admin", "adduser", "-username", "root", "-email", "root@test.cd", "-admin"}); err != nil {
		t.Fatalf("cli.run() failed, %v", err)
	}
	usr, err := usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{"root"}})
	if err != nil {
		t.Fatalf("GetUser() failed, %v", err)
	}
	if len(usr.Roles) != len(user.AllRoles) {
		t.Errorf("user roles = %v, want all roles", usr.Roles)
	}
	if err = usr.CheckPassword("LeSecret!"); err != nil {
		t.Errorf("CheckPassword() failed, %v", err)
	}

	if err := cli.run([]string{"admin", "adduser", "-username", "gladmin", "-email", "admin@glc.test", "-college", "glc"}); err != nil {
		t.Fatalf("cli.run() failed, %v", err)
	}
	usr, err = usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{"gladmin"}})
	if err != nil {
		t.Fatalf("GetUser() failed, %v", err)
	}
	if usr.CollegeID != col.ID {
		t.Errorf("user college = %s, want %s", usr.CollegeID, col.ID)
	}
}

func Test_commandLine_importFile(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	col := testutil.CreateCollege(t, colRepo, "Great Lakes College", "glc")
	admin := testutil.CreateUser(
		t, usrRepo, "Root", "root", "root@test.cd", "secret", user.AllRoles, true, "")

	path := filepath.Join(t.TempDir(), "students.csv")
	content := "Full Name,Email,Roll Number\n" +
		"Jane Doe,jane@glc.test,R001\n" +
		"John Smith,john@glc.test,R002\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() failed, %v", err)
	}

	tests := []cliTest{
		{name: "no args", args: []string{"import"}, wantErr: errHelp},
		{name: "missing file", args: []string{"import", "-kind", "student", "-college", "glc", "-by", "root"}, wantErr: errHelp},
		{name: "missing submitter", args: []string{"import", "-kind", "student", "-college", "glc", "-file", path}, wantErr: errHelp},
		{name: "bad kind", args: []string{"import", "-kind", "teacher", "-college", "glc", "-by", "root", "-file", path}, wantErr: bulkimport.ErrInvalidKind},
		{name: "unknown college", args: []string{"import", "-kind", "student", "-college", "nope", "-by", "root", "-file", path}, wantErr: college.ErrNotFound},
		{name: "unknown submitter", args: []string{"import", "-kind", "student", "-college", "glc", "-by", "ghost", "-file", path}, wantErr: user.ErrNotFound},
		{name: "import ok", args: []string{"import", "-kind", "student", "-college", "glc", "-by", "root", "-file", path}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				usr, err := usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{"jane@glc.test"}})
				if err != nil {
					t.Fatalf("GetUser() failed, %v", err)
				}
				if !usr.Pending() {
					t.Error("imported user should be pending setup")
				}
				if usr.CollegeID != col.ID {
					t.Errorf("user college = %s, want %s", usr.CollegeID, col.ID)
				}
				batches, err := cli.importSvc.QueryBatches(ctx, col.ID)
				if err != nil {
					t.Fatalf("QueryBatches() failed, %v", err)
				}
				if len(batches) == 0 {
					t.Fatal("no upload batch was recorded")
				}
				if batches[0].SubmittedBy != admin.ID {
					t.Errorf("batch submitter = %s, want %s", batches[0].SubmittedBy, admin.ID)
				}
			} else if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
