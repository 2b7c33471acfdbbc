package entity

import "time"

type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

type Admin struct {
	ID            int64
	WalletAddress string
	Role          Role
	CreatedAt     time.Time
}
