package models

import "time"

type Customer struct {
	ID          uint   `gorm:"primaryKey"`
	FirstName   string `gorm:"size:100;not null"`
	LastName    string `gorm:"size:100;not null"`
	Email       string `gorm:"size:150;uniqueIndex;not null"`
	Phone       string `gorm:"size:20;index"` // +90XXXXXXXXXX biçiminde
	TaxNumber   string `gorm:"size:20"`
	CompanyName string `gorm:"size:200"`
	Notes       string `gorm:"size:1000"`
	IsActive    bool   `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Addresses []Address `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE"`
}

func (c *Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}

type Address struct {
	ID         uint   `gorm:"primaryKey"`
	CustomerID uint   `gorm:"index;not null"`
	Title      string `gorm:"size:50"` // Ev, İş...
	FullName   string `gorm:"size:200;not null"`
	Phone      string `gorm:"size:20;not null"`
	City       string `gorm:"size:100;not null"`
	District   string `gorm:"size:100;not null"`
	Line       string `gorm:"size:500;not null"`
	PostalCode string `gorm:"size:10"`
	IsDefault  bool   `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
