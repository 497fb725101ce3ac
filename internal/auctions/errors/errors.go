package errors

import "errors"

var (
	ErrNotFound   = errors.New("record not found")
	ErrDuplicate  = errors.New("record already exists")
	ErrForeignKey = errors.New("referenced record does not exist")
)
