package domain

import "time"

type User struct {
	ID                UserID    `gorm:"type:text;primaryKey" json:"id"`
	Email             string    `gorm:"type:text;not null;uniqueIndex:ux_users_email" json:"email"`
	PasswordHash      string    `gorm:"type:text;not null" json:"-"`
	Name              string    `gorm:"type:text;not null" json:"name"`
	TwoFactorEnabled  bool      `gorm:"not null" json:"twoFactorEnabled"`
	TwoFactorVerified bool      `gorm:"not null" json:"twoFactorVerified"`
	LastIP            string    `gorm:"column:last_ip;type:text" json:"lastIp"`
	CreatedAt         time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt         time.Time `gorm:"not null" json:"updatedAt"`
}

func (User) TableName() string { return "users" }

// NeedsVerification reports whether the current session still owes a code.
func (u *User) NeedsVerification() bool {
	return u.TwoFactorEnabled && !u.TwoFactorVerified
}

func (u *User) IsTwoFactorVerified() bool {
	return !u.TwoFactorEnabled || u.TwoFactorVerified
}
