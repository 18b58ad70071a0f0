package model

import "time"

// 平文のリフレッシュトークンは保存しない。保存するのはSHA-256ハッシュのみ
type RefreshToken struct {
	ID         string     `json:"id" gorm:"type:uuid;primaryKey"`
	UserID     string     `json:"userId" gorm:"type:uuid;not null;index"`
	TokenHash  string     `json:"-" gorm:"not null;uniqueIndex"`
	ExpiresAt  time.Time  `json:"expiresAt" gorm:"not null;index"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt" gorm:"index"`
	DeviceInfo *string    `json:"deviceInfo"` // User-Agentなど。ロジックには使わない
}
