package user_test

import (
	"context"
	"errors"
	"net/mail"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mafunzo/core"
	"github.com/trezcool/mafunzo/core/user"
	emailsvc "github.com/trezcool/mafunzo/services/email"
	dummydb "github.com/trezcool/mafunzo/storage/database/dummy"
	testutil "github.com/trezcool/mafunzo/tests"
)

func setup(t *testing.T) (user.Service, user.Repository) {
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
	repo := dummydb.NewUserRepository(db)
	svc := user.NewServiceMock(repo, emailsvc.NewConsoleServiceMock(conf), conf)

	emailsvc.SentMessages = nil
	return svc, repo
}

func Test_service_CreateImported(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	usr, err := svc.CreateImported(ctx, user.ImportedUser{
		Name:      "Jane Doe",
		Email:     " Jane@GLC.Test ",
		Roles:     []string{user.RoleStudent},
		CollegeID: "col-1",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, usr.ID)
	assert.Equal(t, "jane@glc.test", usr.Email)
	assert.True(t, usr.Pending())
	assert.True(t, usr.Active())
	assert.Equal(t, "col-1", usr.CollegeID)

	// the temporary credential is the normalized email
	assert.NoError(t, usr.CheckPassword("jane@glc.test"))
	assert.Error(t, usr.CheckPassword("Jane@GLC.Test "))
}

func Test_service_ResendInvite(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	pending, err := svc.CreateImported(ctx, user.ImportedUser{
		Name:  "Jane Doe",
		Email: "jane@glc.test",
		Roles: []string{user.RoleStudent},
	})
	require.NoError(t, err)

	activated := testutil.CreateUser(
		t, repo, "John Smith", "jsmith", "john@glc.test", "secret",
		[]string{user.RoleStudent}, true, "")

	t.Run("pending account gets a new invite", func(t *testing.T) {
		emailsvc.SentMessages = nil
		require.NoError(t, svc.ResendInvite(ctx, pending.ID))
		require.Len(t, emailsvc.SentMessages, 1)
		assert.Equal(t, "Welcome to Mafunzo", emailsvc.SentMessages[0].Subject)
		assert.Equal(t, "jane@glc.test", emailsvc.SentMessages[0].To[0].Address)
	})

	t.Run("activated account is rejected", func(t *testing.T) {
		emailsvc.SentMessages = nil
		err := svc.ResendInvite(ctx, activated.ID)
		assert.Equal(t, user.ErrNotPending, err)
		assert.Empty(t, emailsvc.SentMessages)
	})

	t.Run("unknown account", func(t *testing.T) {
		err := svc.ResendInvite(ctx, "4a391bbe-22d7-4e10-b3d5-47ceee21f7ab")
		assert.Equal(t, user.ErrNotFound, err)
	})
}

func Test_service_ChangePassword_completesSetup(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	usr, err := svc.CreateImported(ctx, user.ImportedUser{
		Name:  "Jane Doe",
		Email: "jane@glc.test",
		Roles: []string{user.RoleStudent},
	})
	require.NoError(t, err)
	require.True(t, usr.Pending())

	updated, err := svc.ChangePassword(ctx, usr, user.ChangePassword{
		OldPassword:     "jane@glc.test",
		Password:        "n3w-Passw0rd!",
		PasswordConfirm: "n3w-Passw0rd!",
	})
	require.NoError(t, err)

	assert.False(t, updated.Pending())
	assert.NoError(t, updated.CheckPassword("n3w-Passw0rd!"))

	// a second resend is now rejected
	assert.Equal(t, user.ErrNotPending, svc.ResendInvite(ctx, usr.ID))
}

func Test_service_ChangePassword_badOldPassword(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	usr, err := svc.CreateImported(ctx, user.ImportedUser{
		Name:  "Jane Doe",
		Email: "jane@glc.test",
		Roles: []string{user.RoleStudent},
	})
	require.NoError(t, err)

	_, err = svc.ChangePassword(ctx, usr, user.ChangePassword{
		OldPassword:     "nope",
		Password:        "n3w-Passw0rd!",
		PasswordConfirm: "n3w-Passw0rd!",
	})
	require.Error(t, err)
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	require.Len(t, vErr.Fields, 1)
	assert.Equal(t, "old_password", vErr.Fields[0].Field)
}

func Test_service_Update_keepsPendingSetup(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	usr, err := svc.CreateImported(ctx, user.ImportedUser{
		Name:  "Jane Doe",
		Email: "jane@glc.test",
		Roles: []string{user.RoleStudent},
	})
	require.NoError(t, err)
	require.True(t, usr.Pending())

	// an unrelated admin edit must not complete the account's setup
	_, err = svc.Update(ctx, usr.ID, user.UpdateUser{Name: "Jane D. Doe"})
	require.NoError(t, err)

	got, err := svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane D. Doe", got.Name)
	assert.True(t, got.Pending())

	// the invite can still be resent
	assert.NoError(t, svc.ResendInvite(ctx, usr.ID))
}
