package utils

import "github.com/google/uuid"

func RandomID() string {
	return uuid.New().String()
}
