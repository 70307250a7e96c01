package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mafunzo/core"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
	ErrNotPending     = errors.New("account setup already completed")
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []User, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		UpdateOrCreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error

		EmailExists(ctx context.Context, email string, exec ...core.DBExecutor) (bool, error)
		RollNumberExists(ctx context.Context, collegeID, rollNumber string, exec ...core.DBExecutor) (bool, error)
		CreateStudentProfile(ctx context.Context, profile StudentProfile, exec ...core.DBExecutor) (StudentProfile, error)
		CreateTrainerProfile(ctx context.Context, profile TrainerProfile, exec ...core.DBExecutor) (TrainerProfile, error)
	}

	Service interface {
		CheckUniqueness(uname, email string, excludedUsers ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		CreateImported(ctx context.Context, iu ImportedUser, exec ...core.DBExecutor) (User, error)
		CreateStudentProfile(ctx context.Context, profile StudentProfile, exec ...core.DBExecutor) (StudentProfile, error)
		CreateTrainerProfile(ctx context.Context, profile TrainerProfile, exec ...core.DBExecutor) (TrainerProfile, error)
		EmailExists(ctx context.Context, email string) (bool, error)
		RollNumberExists(ctx context.Context, collegeID, rollNumber string) (bool, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		Update(ctx context.Context, id string, uu UpdateUser) (User, error)
		Delete(ctx context.Context, ids ...string) error
		SetLastLogin(ctx context.Context, usr User) (User, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetUserPassword) error
		ChangePassword(ctx context.Context, usr User, cp ChangePassword) (User, error)
		ResendInvite(ctx context.Context, id string) error
		SendWelcomeEmail(usr User)
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	secretKey = []byte(conf.SecretKey)
	passwordResetTimeoutDelta = conf.PasswordResetTimeoutDelta
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		conf:    conf,
	}
}

func (svc *service) CheckUniqueness(uname, email string, excludedUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(context.Background(), uname, email, excludedUsers); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		Roles:     nu.Roles,
		CollegeID: nu.CollegeID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr.SetActive(true)
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

// CreateImported creates an identity for a bulk-imported row: the temporary
// credential is the row's email and the account requires a credential change
// on first use.
func (svc *service) CreateImported(ctx context.Context, iu ImportedUser, exec ...core.DBExecutor) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:      iu.Name,
		Email:     core.CleanString(iu.Email, true /* lower */),
		Roles:     iu.Roles,
		CollegeID: iu.CollegeID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr.SetActive(true)
	usr.SetPendingSetup(true)
	if err := usr.SetPassword(usr.Email); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr, exec...)
}

func (svc *service) CreateStudentProfile(ctx context.Context, profile StudentProfile, exec ...core.DBExecutor) (StudentProfile, error) {
	return svc.repo.CreateStudentProfile(ctx, profile, exec...)
}

func (svc *service) CreateTrainerProfile(ctx context.Context, profile TrainerProfile, exec ...core.DBExecutor) (TrainerProfile, error) {
	return svc.repo.CreateTrainerProfile(ctx, profile, exec...)
}

func (svc *service) EmailExists(ctx context.Context, email string) (bool, error) {
	return svc.repo.EmailExists(ctx, core.CleanString(email, true /* lower */))
}

func (svc *service) RollNumberExists(ctx context.Context, collegeID, rollNumber string) (bool, error) {
	return svc.repo.RollNumberExists(ctx, collegeID, core.CleanString(rollNumber))
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: []string{core.CleanString(email, true /* lower */)}})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: []string{core.CleanString(uname, true /* lower */)}})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr := User{
		ID:        id,
		Name:      uu.Name,
		Username:  uu.Username,
		Email:     uu.Email,
		IsActive:  uu.IsActive,
		Roles:     uu.Roles,
		UpdatedAt: time.Now().UTC(),
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, err
		}
	}
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsersByID(ctx, ids)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	id, err := decodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(errInvalidToken)
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewValidationError(errInvalidToken)
		}
		return err
	}
	if err = verifyToken(usr, rp.Token); err != nil {
		return core.NewValidationError(err)
	}
	if err = usr.SetPassword(rp.Password); err != nil {
		return err
	}
	// a password of their own completes the account's setup
	usr.SetPendingSetup(false)
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}

func (svc *service) ChangePassword(ctx context.Context, usr User, cp ChangePassword) (User, error) {
	if err := usr.CheckPassword(cp.OldPassword); err != nil {
		return User{}, core.NewValidationError(
			nil, core.FieldError{Field: "old_password", Error: "invalid password"})
	}
	if err := usr.SetPassword(cp.Password); err != nil {
		return User{}, err
	}
	usr.SetPendingSetup(false)
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// ResendInvite re-dispatches the welcome email for an account that has not
// completed its setup. Activated accounts are rejected.
func (svc *service) ResendInvite(ctx context.Context, id string) error {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !usr.Pending() {
		return ErrNotPending
	}
	svc.SendWelcomeEmail(usr)
	return nil
}

func (svc *service) SendWelcomeEmail(usr User) {
	svc.sendTemplatedMail(usr, "welcome", "Welcome to "+svc.conf.AppName)
}

func (svc *service) sendPasswordResetMail(usr User) {
	svc.sendTemplatedMail(usr, "password-reset", "Password reset")
}

func (svc *service) sendTemplatedMail(usr User, tmplName, subject string) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      subject,
		TemplateName: tmplName,
		TemplateData: struct {
			Name  string
			UID   string
			Token string
		}{
			Name:  usr.Name,
			UID:   EncodeUID(usr),
			Token: makeToken(usr),
		},
	})
}
