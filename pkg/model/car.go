package model

type Car struct {
	ID    int64  `json:"id,omitempty"`
	Make  string `json:"make" validate:"required,min=1,max=100"`
	Model string `json:"model" validate:"required,min=1,max=100"`
	Year  int    `json:"year" validate:"required,min=1900,max=2100"`
}

type User struct {
	ID    int64  `json:"id,omitempty"`
	Name  string `json:"name" validate:"required,min=2,max=100"`
	Email string `json:"email" validate:"required,email"`
}
