package model

import "time"

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// このサブシステムからは読み取り専用。登録・更新はシード運用
type User struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	Username     string `gorm:"uniqueIndex;not null"`
	Email        string `gorm:"not null"`
	PasswordHash string `gorm:"column:password_hash;not null" json:"-"`
	Role         Role   `gorm:"type:varchar(20);not null;default:'USER'"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
