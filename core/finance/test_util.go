package finance

import (
	"github.com/trezcool/academia/core"
)

type serviceMock struct {
	service
}

func NewServiceMock(repo Repository, dir StudentDirectory, mailSvc core.EmailService) Service {
	return &serviceMock{
		service: service{
			repo:    repo,
			dir:     dir,
			mailSvc: mailSvc,
		},
	}
}
