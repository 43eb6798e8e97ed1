package school

type serviceMock struct {
	service
}

func NewServiceMock(repo Repository) Service {
	return &serviceMock{service: service{repo: repo}}
}
