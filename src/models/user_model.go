package models

import (
	"gorm.io/gorm"
)

// User is an account row. Accounts are provisioned by the auth collaborator;
// this service only reads them.
type User struct {
	gorm.Model
	Name           string      `json:"name"`
	Username       string      `json:"username" gorm:"uniqueIndex"`
	Email          string      `json:"email" gorm:"uniqueIndex"`
	ProfilePicture string      `json:"profilePicture"`
	Headline       string      `json:"headline"`
	Role           AccountRole `json:"role" gorm:"type:varchar(20);default:'influencer'"`
}

type AccountRole string

const (
	RoleInfluencer AccountRole = "influencer"
	RoleSalon      AccountRole = "salon"
	RoleBrand      AccountRole = "brand"
	RoleAdmin      AccountRole = "admin"
)

// UserDto is the public summary shown on cards and notifications.
type UserDto struct {
	ID             uint        `json:"id"`
	Name           string      `json:"name"`
	Username       string      `json:"username"`
	ProfilePicture string      `json:"profilePicture"`
	Headline       string      `json:"headline,omitempty"`
	Role           AccountRole `json:"role,omitempty"`
}

func (u User) ToDto() UserDto {
	return UserDto{
		ID:             u.ID,
		Name:           u.Name,
		Username:       u.Username,
		ProfilePicture: u.ProfilePicture,
		Headline:       u.Headline,
		Role:           u.Role,
	}
}

// DisplayName prefers the full name and falls back to the username.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}
