package account

type testAuthInput struct {
	UserID int `path:"userId" doc:"Идентификатор пользователя"`
}

type testAuthOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}
