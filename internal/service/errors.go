package service

import "errors"

var (
	ErrInvalidURL          = errors.New("invalid URL format")
	ErrNotFound            = errors.New("short code not found")
	ErrExpired             = errors.New("short code has expired")
	ErrGenerationExhausted = errors.New("failed to generate a unique short code")
)
