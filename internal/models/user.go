package models

import (
	"time"
)

type User struct {
	ID           string
	TenantID     *string // club this account belongs to; nil until assigned
	Email        string
	PasswordHash string
	Name         string
	Role         string // e.g., "member", "staff", "admin"
	Status       string // "active", "suspended", "disabled"
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const (
	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
	UserStatusDisabled  = "disabled"
)
