package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/mafunzo/apps/api/echo"
	"github.com/trezcool/mafunzo/core/user"
	emailsvc "github.com/trezcool/mafunzo/services/email"
	testutil "github.com/trezcool/mafunzo/tests"
)

func Test_userApi_login(t *testing.T) {
	ta := setup(t)

	col := testutil.CreateCollege(t, ta.colRepo, "Great Lakes College", "glc")
	testutil.CreateUser(
		t, ta.usrRepo, "Jane Doe", "janedoe", "jane@glc.test", "LeSecret!",
		[]string{user.RoleStudent}, true, col.ID)
	testutil.CreateUser(
		t, ta.usrRepo, "Gone Guy", "goneguy", "gone@glc.test", "LeSecret!",
		[]string{user.RoleStudent}, false, col.ID)

	tests := []httpTest{
		{
			name: "Fields required", body: marchallObj(t, map[string]string{}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": "this field is required", "password": "this field is required"}),
		},
		{
			name: "Unknown user", body: marchallObj(t, map[string]string{"username": "nope@glc.test", "password": "LeSecret!"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "Wrong password", body: marchallObj(t, map[string]string{"username": "jane@glc.test", "password": "nope"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "Deactivated account", body: marchallObj(t, map[string]string{"username": "gone@glc.test", "password": "LeSecret!"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			ta.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("Login ok", func(t *testing.T) {
		body := marchallObj(t, map[string]string{"username": "jane@glc.test", "password": "LeSecret!"})
		req, rec := newRequest(http.MethodPost, "/v1/users/login", body)
		ta.app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp LoginResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Token)
	})
}

func Test_userApi_resendInvite(t *testing.T) {
	ta := setup(t)
	ctx := context.Background()

	col := testutil.CreateCollege(t, ta.colRepo, "Great Lakes College", "glc")
	admin := testutil.CreateUser(
		t, ta.usrRepo, "College Admin", "gladmin", "admin@glc.test", "LeSecret!",
		[]string{user.RoleAdminCollege}, true, col.ID)
	student := testutil.CreateUser(
		t, ta.usrRepo, "Jane Doe", "janedoe", "jane@glc.test", "LeSecret!",
		[]string{user.RoleStudent}, true, col.ID)

	pending, err := ta.usrSvc.CreateImported(ctx, user.ImportedUser{
		Name:      "John Smith",
		Email:     "john@glc.test",
		Roles:     []string{user.RoleStudent},
		CollegeID: col.ID,
	})
	require.NoError(t, err)

	adminToken := getToken(t, admin)
	path := func(id string) string { return "/v1/users/" + id + "/resend-invite" }

	t.Run("Auth required", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}
		req, rec := newRequest(http.MethodPost, path(pending.ID))
		ta.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("Admin required", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}
		req, rec := newAuthRequest(http.MethodPost, path(student.ID), getToken(t, student))
		ta.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("Other users are hidden from non-admins", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})}
		req, rec := newAuthRequest(http.MethodPost, path(pending.ID), getToken(t, student))
		ta.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("Unknown user", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})}
		req, rec := newAuthRequest(http.MethodPost, path("6e4ff86b-27b4-4bc2-a35c-1cd10d4fbb2b"), adminToken)
		ta.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("Pending account", func(t *testing.T) {
		emailsvc.SentMessages = nil
		req, rec := newAuthRequest(http.MethodPost, path(pending.ID), adminToken)
		ta.app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, emailsvc.SentMessages, 1)
		assert.Equal(t, "john@glc.test", emailsvc.SentMessages[0].To[0].Address)
	})

	t.Run("Activated account rejected", func(t *testing.T) {
		_, err := ta.usrSvc.ChangePassword(ctx, pending, user.ChangePassword{
			OldPassword:     "john@glc.test",
			Password:        "n3w-Passw0rd!",
			PasswordConfirm: "n3w-Passw0rd!",
		})
		require.NoError(t, err)

		emailsvc.SentMessages = nil
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "account setup already completed"}),
		}
		req, rec := newAuthRequest(http.MethodPost, path(pending.ID), adminToken)
		ta.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
		assert.Empty(t, emailsvc.SentMessages)
	})
}

func Test_userApi_changePassword(t *testing.T) {
	ta := setup(t)
	ctx := context.Background()

	pending, err := ta.usrSvc.CreateImported(ctx, user.ImportedUser{
		Name:  "Jane Doe",
		Email: "jane@glc.test",
		Roles: []string{user.RoleStudent},
	})
	require.NoError(t, err)
	token := getToken(t, pending)

	t.Run("Wrong old password", func(t *testing.T) {
		body := marchallObj(t, map[string]string{
			"old_password": "nope", "password": "n3w-Passw0rd!", "password_confirm": "n3w-Passw0rd!"})
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"old_password": "invalid password"}),
		}
		req, rec := newAuthRequest(http.MethodPost, "/v1/users/password-change", token, body)
		ta.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("Change ok completes setup", func(t *testing.T) {
		body := marchallObj(t, map[string]string{
			"old_password": "jane@glc.test", "password": "n3w-Passw0rd!", "password_confirm": "n3w-Passw0rd!"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/users/password-change", token, body)
		ta.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		usr, err := ta.usrSvc.GetByID(ctx, pending.ID)
		require.NoError(t, err)
		assert.False(t, usr.Pending())
		assert.NoError(t, usr.CheckPassword("n3w-Passw0rd!"))
	})
}
