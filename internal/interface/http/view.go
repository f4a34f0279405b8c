package handlers

import (
	"time"

	"github.com/oksasatya/barterx-accounts/internal/domain/entity"
)

// accountView is the public shape of an account. Credentials and pending
// codes never leave the service.
type accountView struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	IsVerified     bool      `json:"isVerified"`
	Interests      []string  `json:"interests"`
	Modes          []string  `json:"modes"`
	UserType       string    `json:"userType"`
	ContactNumber  string    `json:"contactNumber"`
	City           string    `json:"city"`
	State          string    `json:"state"`
	Country        string    `json:"country"`
	ProfilePicture string    `json:"profilePicture"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func toView(a *entity.Account) accountView {
	p := a.Profile
	return accountView{
		ID:             a.ID,
		Name:           p.Name,
		Email:          a.Email,
		IsVerified:     a.IsVerified,
		Interests:      orEmpty(p.Interests),
		Modes:          orEmpty(p.Modes),
		UserType:       p.UserType,
		ContactNumber:  p.ContactNumber,
		City:           p.City,
		State:          p.State,
		Country:        p.Country,
		ProfilePicture: p.ProfilePicture,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
