package models

import "time"

type UserRole string

const (
	RoleAdmin    UserRole = "admin"
	RoleCustomer UserRole = "customer"
)

type User struct {
	ID           uint  `gorm:"primaryKey"`
	CustomerID   *uint `gorm:"uniqueIndex"` // sadece customer rolünde dolu
	Customer     *Customer
	Name         string   `gorm:"size:100;not null"`
	Email        string   `gorm:"size:150;uniqueIndex;not null"`
	PasswordHash string   `gorm:"size:255;not null"`
	Role         UserRole `gorm:"size:20;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
