package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/mafunzo/core"
	"github.com/trezcool/mafunzo/core/user"
)

const userTable = `"user"`

var userColumns = []string{
	"id", "name", "username", "email", "is_active", "pending_setup",
	"roles", "college_id", "password_hash", "created_at", "updated_at", "last_login",
}

// userRow is the table-shaped view of a user.User.
type userRow struct {
	ID           string         `db:"id"`
	Name         sql.NullString `db:"name"`
	Username     sql.NullString `db:"username"`
	Email        sql.NullString `db:"email"`
	IsActive     sql.NullBool   `db:"is_active"`
	PendingSetup bool           `db:"pending_setup"`
	Roles        pq.StringArray `db:"roles"`
	CollegeID    sql.NullString `db:"college_id"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    sql.NullTime   `db:"last_login"`
}

func newUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         sql.NullString{String: usr.Name, Valid: usr.Name != ""},
		Username:     sql.NullString{String: usr.Username, Valid: usr.Username != ""},
		Email:        sql.NullString{String: usr.Email, Valid: usr.Email != ""},
		IsActive:     sql.NullBool{Bool: usr.Active(), Valid: usr.IsActive != nil},
		PendingSetup: usr.Pending(),
		Roles:        usr.Roles,
		CollegeID:    sql.NullString{String: usr.CollegeID, Valid: usr.CollegeID != ""},
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    sql.NullTime{Time: usr.LastLogin.UTC(), Valid: !usr.LastLogin.IsZero()},
	}
}

func (r userRow) user() user.User {
	usr := user.User{
		ID:           r.ID,
		Name:         r.Name.String,
		Username:     r.Username.String,
		Email:        r.Email.String,
		Roles:        r.Roles,
		CollegeID:    r.CollegeID.String,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		LastLogin:    r.LastLogin.Time,
	}
	if r.IsActive.Valid {
		usr.SetActive(r.IsActive.Bool)
	}
	usr.SetPendingSetup(r.PendingSetup)
	return usr
}

func (r userRow) values() []interface{} {
	return []interface{}{
		r.ID, r.Name, r.Username, r.Email, r.IsActive, r.PendingSetup,
		r.Roles, r.CollegeID, r.PasswordHash, r.CreatedAt, r.UpdatedAt, r.LastLogin,
	}
}

type userRepository struct {
	exec core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{exec: exec}
}

func (repo userRepository) getOne(ctx context.Context, exec core.DBExecutor, pred interface{}, args ...interface{}) (user.User, error) {
	var rows []userRow
	q := psql.Select(userColumns...).From(userTable).Where(pred, args...).Limit(1)
	if err := queryAll(ctx, exec, q, &rows); err != nil {
		return user.User{}, err
	}
	if len(rows) == 0 {
		return user.User{}, user.ErrNotFound
	}
	return rows[0].user(), nil
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	ex := getExec(repo.exec, exec)

	check := func(pred sq.Sqlizer, dupErr error) error {
		q := psql.Select("1").From(userTable).Where(pred)
		if len(excludedUsers) > 0 {
			ids := make([]string, 0, len(excludedUsers))
			for _, u := range excludedUsers {
				ids = append(ids, u.ID)
			}
			q = q.Where(sq.NotEq{"id": ids})
		}
		exists, err := queryExists(ctx, ex, q)
		if err != nil {
			return errors.Wrap(err, "checking user uniqueness")
		}
		if exists {
			return dupErr
		}
		return nil
	}

	if username != "" {
		if err := check(sq.Eq{"username": username}, user.ErrUsernameExists); err != nil {
			return err
		}
	}
	if email != "" {
		if err := check(sq.Eq{"email": email}, user.ErrEmailExists); err != nil {
			return err
		}
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.New().String()
	row := newUserRow(usr)
	q := psql.Insert(userTable).Columns(userColumns...).Values(row.values()...)
	if _, err := execStmt(ctx, getExec(repo.exec, exec), q); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return row.user(), nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	ex := getExec(repo.exec, exec)
	if filter.ID != "" {
		return repo.getOne(ctx, ex, sq.Eq{"id": filter.ID})
	}
	if len(filter.UsernameOrEmail) > 0 {
		return repo.getOne(ctx, ex, sq.Or{
			sq.Eq{"username": filter.UsernameOrEmail},
			sq.Eq{"email": filter.UsernameOrEmail},
		})
	}
	return user.User{}, user.ErrNotFound
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	q := psql.Select(userColumns...).From(userTable)

	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			q = q.Where(sq.Or{
				sq.ILike{"name": val},
				sq.ILike{"username": val},
				sq.ILike{"email": val},
			})
		}
		// users with any role that starts with any of the provided roles
		if len(filter.Roles) > 0 {
			var roleOr sq.Or
			for _, role := range filter.Roles {
				roleOr = append(roleOr, sq.Expr(
					`id IN (SELECT id FROM "user", UNNEST(roles) user_role WHERE user_role ILIKE ?)`, role+"%"))
			}
			q = q.Where(roleOr)
		}
		if filter.IsActive != nil {
			q = q.Where(sq.Eq{"is_active": *filter.IsActive})
		}
		if filter.CollegeID != "" {
			q = q.Where(sq.Eq{"college_id": filter.CollegeID})
		}
		if !filter.CreatedFrom.IsZero() {
			q = q.Where(sq.GtOrEq{"created_at": filter.CreatedFrom.UTC()})
		}
		if !filter.CreatedTo.IsZero() {
			q = q.Where(sq.LtOrEq{"created_at": filter.CreatedTo.UTC()})
		}
	}

	if len(ordering) > 0 {
		for _, ord := range ordering {
			q = q.OrderBy(ord.String())
		}
	} else {
		q = q.OrderBy("created_at DESC")
	}

	var rows []userRow
	if err := queryAll(ctx, getExec(repo.exec, exec), q, &rows); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.user())
	}
	return users, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	ex := getExec(repo.exec, exec)

	q := psql.Update(userTable).
		Set("updated_at", usr.UpdatedAt.UTC()).
		Where(sq.Eq{"id": usr.ID})
	// only save set fields
	if usr.Name != "" {
		q = q.Set("name", usr.Name)
	}
	if usr.Username != "" {
		q = q.Set("username", usr.Username)
	}
	if usr.Email != "" {
		q = q.Set("email", usr.Email)
	}
	if usr.IsActive != nil {
		q = q.Set("is_active", *usr.IsActive)
	}
	if usr.PendingSetup != nil {
		q = q.Set("pending_setup", *usr.PendingSetup)
	}
	if usr.Roles != nil {
		q = q.Set("roles", pq.StringArray(usr.Roles))
	}
	if usr.PasswordHash != nil {
		q = q.Set("password_hash", usr.PasswordHash)
	}
	if !usr.LastLogin.IsZero() {
		q = q.Set("last_login", usr.LastLogin.UTC())
	}

	res, err := execStmt(ctx, ex, q)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.getOne(ctx, ex, sq.Eq{"id": usr.ID})
}

func (repo userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr, exec...)
	}
	updated, err := repo.UpdateUser(ctx, usr, exec...)
	if errors.Cause(err) == user.ErrNotFound {
		return repo.CreateUser(ctx, usr, exec...)
	}
	return updated, err
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	q := psql.Delete(userTable).Where(sq.Eq{"id": ids})
	_, err := execStmt(ctx, getExec(repo.exec, exec), q)
	return errors.Wrap(err, "deleting users")
}

func (repo userRepository) EmailExists(ctx context.Context, email string, exec ...core.DBExecutor) (bool, error) {
	q := psql.Select("1").From(userTable).Where(sq.Eq{"email": email})
	exists, err := queryExists(ctx, getExec(repo.exec, exec), q)
	return exists, errors.Wrap(err, "checking email existence")
}

func (repo userRepository) RollNumberExists(ctx context.Context, collegeID, rollNumber string, exec ...core.DBExecutor) (bool, error) {
	q := psql.Select("1").From("student_profile").
		Where(sq.Eq{"college_id": collegeID, "roll_number": rollNumber})
	exists, err := queryExists(ctx, getExec(repo.exec, exec), q)
	return exists, errors.Wrap(err, "checking roll number existence")
}

func (repo userRepository) CreateStudentProfile(ctx context.Context, profile user.StudentProfile, exec ...core.DBExecutor) (user.StudentProfile, error) {
	profile.ID = uuid.New().String()
	q := psql.Insert("student_profile").
		Columns("id", "user_id", "college_id", "roll_number", "degree", "branch", "year", "created_at").
		Values(profile.ID, profile.UserID, profile.CollegeID, profile.RollNumber,
			profile.Degree, profile.Branch, profile.Year, profile.CreatedAt.UTC())
	if _, err := execStmt(ctx, getExec(repo.exec, exec), q); err != nil {
		return user.StudentProfile{}, errors.Wrap(err, "inserting student profile")
	}
	return profile, nil
}

func (repo userRepository) CreateTrainerProfile(ctx context.Context, profile user.TrainerProfile, exec ...core.DBExecutor) (user.TrainerProfile, error) {
	profile.ID = uuid.New().String()
	q := psql.Insert("trainer_profile").
		Columns("id", "user_id", "college_id", "department", "specialization", "created_at").
		Values(profile.ID, profile.UserID, profile.CollegeID,
			profile.Department, profile.Specialization, profile.CreatedAt.UTC())
	if _, err := execStmt(ctx, getExec(repo.exec, exec), q); err != nil {
		return user.TrainerProfile{}, errors.Wrap(err, "inserting trainer profile")
	}
	return profile, nil
}
