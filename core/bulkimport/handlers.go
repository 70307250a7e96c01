package bulkimport

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/trezcool/mafunzo/core"
	"github.com/trezcool/mafunzo/core/user"
)

// rowHandler captures what differs between student and trainer rows so one
// orchestrator can drive both.
type rowHandler interface {
	// validate applies the row-level business rules: required fields, email
	// format and uniqueness, role-specific uniqueness within the tenant.
	validate(ctx context.Context, collegeID string, row Row) error
	// identity maps the row to the account to create.
	identity(collegeID string, row Row) user.ImportedUser
	// createProfile persists the role-specific record for the created account.
	createProfile(ctx context.Context, collegeID string, row Row, usr user.User, exec ...core.DBExecutor) error
}

func handlerFor(kind Kind, usrSvc user.Service) rowHandler {
	if kind == KindTrainer {
		return trainerHandler{usrSvc: usrSvc}
	}
	return studentHandler{usrSvc: usrSvc}
}

func validateCommon(ctx context.Context, usrSvc user.Service, row Row, required []string) error {
	for _, req := range required {
		if row.Fields[req] == "" {
			return fmt.Errorf("missing required field: %s", req)
		}
	}

	email := row.Fields[colEmail]
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("invalid email: %s", email)
	}

	exists, err := usrSvc.EmailExists(ctx, email)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("Email already exists: %s", email)
	}
	return nil
}

type studentHandler struct {
	usrSvc user.Service
}

func (h studentHandler) validate(ctx context.Context, collegeID string, row Row) error {
	if err := validateCommon(ctx, h.usrSvc, row, studentRequiredColumns); err != nil {
		return err
	}

	// roll numbers are unique within the tenant only
	exists, err := h.usrSvc.RollNumberExists(ctx, collegeID, row.Fields[colRollNumber])
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("Roll number already exists: %s", row.Fields[colRollNumber])
	}
	return nil
}

func (h studentHandler) identity(collegeID string, row Row) user.ImportedUser {
	return user.ImportedUser{
		Name:      row.Fields[colFullName],
		Email:     row.Fields[colEmail],
		Roles:     []string{user.RoleStudent},
		CollegeID: collegeID,
	}
}

func (h studentHandler) createProfile(ctx context.Context, collegeID string, row Row, usr user.User, exec ...core.DBExecutor) error {
	_, err := h.usrSvc.CreateStudentProfile(ctx, user.StudentProfile{
		UserID:     usr.ID,
		CollegeID:  collegeID,
		RollNumber: row.Fields[colRollNumber],
		Degree:     row.Fields[colDegree],
		Branch:     row.Fields[colBranch],
		Year:       row.Fields[colYear],
		CreatedAt:  time.Now().UTC(),
	}, exec...)
	return err
}

type trainerHandler struct {
	usrSvc user.Service
}

func (h trainerHandler) validate(ctx context.Context, collegeID string, row Row) error {
	return validateCommon(ctx, h.usrSvc, row, trainerRequiredColumns)
}

func (h trainerHandler) identity(collegeID string, row Row) user.ImportedUser {
	return user.ImportedUser{
		Name:      row.Fields[colFullName],
		Email:     row.Fields[colEmail],
		Roles:     []string{user.RoleTrainer},
		CollegeID: collegeID,
	}
}

func (h trainerHandler) createProfile(ctx context.Context, collegeID string, row Row, usr user.User, exec ...core.DBExecutor) error {
	_, err := h.usrSvc.CreateTrainerProfile(ctx, user.TrainerProfile{
		UserID:         usr.ID,
		CollegeID:      collegeID,
		Department:     row.Fields[colDepartment],
		Specialization: row.Fields[colSpecialization],
		CreatedAt:      time.Now().UTC(),
	}, exec...)
	return err
}
