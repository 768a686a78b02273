package models

import "time"

// User is the identity record. The connection/messaging/session core reads
// it but never mutates anything beyond registration fields.
type User struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	FirstName    string    `gorm:"size:120;not null" json:"first_name"`
	LastName     string    `gorm:"size:120;not null" json:"last_name"`
	Email        string    `gorm:"size:190;uniqueIndex;not null" json:"email"`
	Role         string    `gorm:"size:32;not null;default:member" json:"role"`
	ProfileImage string    `gorm:"size:255" json:"profile_image"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Summary is the projection embedded in connection/message/session responses.
type Summary struct {
	ID           uint64 `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	ProfileImage string `json:"profile_image"`
}

func (u *User) Summary() Summary {
	return Summary{
		ID:           u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Email:        u.Email,
		Role:         u.Role,
		ProfileImage: u.ProfileImage,
	}
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
