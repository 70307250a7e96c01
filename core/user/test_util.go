package user

import (
	"github.com/trezcool/mafunzo/core"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a Service backed by the provided repo and mail service;
// the mail service is expected to be a synchronous test double.
func NewServiceMock(repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	secretKey = []byte(conf.SecretKey)
	passwordResetTimeoutDelta = conf.PasswordResetTimeoutDelta
	return &serviceMock{
		service: service{
			repo:    repo,
			mailSvc: mailSvc,
			conf:    conf,
		},
	}
}
