package college

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mafunzo/core"
)

// College is a tenant: the data-isolation boundary scoping uploads,
// identities and profiles.
type College struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// NewCollege contains information needed to create a new College.
type NewCollege struct {
	Name string `json:"name" validate:"required"`
	Code string `json:"code" validate:"required,alphanum_"`
}

func (nc *NewCollege) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Code = core.CleanString(nc.Code, true /* lower */)
	return validate.Struct(nc)
}
