package models

import (
	"encoding/json"
	"time"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleMaster  Role = "master"
	RoleStudent Role = "student"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMaster || r == RoleStudent
}

type Profile struct {
	Avatar   string `json:"avatar,omitempty"`
	Bio      string `json:"bio,omitempty"`
	Location string `json:"location,omitempty"`
}

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	Profile   Profile   `json:"profile"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u *User) HasRole(roles ...Role) bool {
	if u == nil {
		return false
	}
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// UserRecord is the stored form of a User; the profile is kept as JSON text.
type UserRecord struct {
	ID        string `gorm:"primaryKey"`
	Email     string `gorm:"index"`
	Name      string
	Role      string
	Profile   string `gorm:"type:text"`
	CreatedAt time.Time
}

func (UserRecord) TableName() string { return "users" }

// UserFromRecord never fails: unknown roles read as student and a corrupt
// profile reads as empty.
func UserFromRecord(r UserRecord) User {
	var profile Profile
	if err := json.Unmarshal([]byte(r.Profile), &profile); err != nil {
		profile = Profile{}
	}
	role := Role(r.Role)
	if !role.Valid() {
		role = RoleStudent
	}
	return User{
		ID:        r.ID,
		Email:     r.Email,
		Name:      r.Name,
		Role:      role,
		Profile:   profile,
		CreatedAt: r.CreatedAt,
	}
}

func EncodeProfile(p Profile) string {
	b, err := json.Marshal(p)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func (u User) Record() UserRecord {
	return UserRecord{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      string(u.Role),
		Profile:   EncodeProfile(u.Profile),
		CreatedAt: u.CreatedAt,
	}
}

// Account is the login identity behind a User.
type Account struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex"`
	Name         string
	PasswordHash string
	DiscordID    string `gorm:"index"`
	CreatedAt    time.Time
}
