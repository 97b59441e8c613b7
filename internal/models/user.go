package models

import "time"

// User is the server's view of an account as returned by the GraphQL API.
type User struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email,omitempty"`
	DateJoined  time.Time `json:"dateJoined,omitempty"`
	Profile     *Profile  `json:"profile,omitempty"`
	IsFollowing bool      `json:"isFollowing,omitempty"`
}

// Profile holds the optional public details of a user.
type Profile struct {
	Bio            string `json:"bio,omitempty"`
	Location       string `json:"location,omitempty"`
	DateOfBirth    string `json:"dateOfBirth,omitempty"`
	ProfilePicture string `json:"profilePicture,omitempty"`
	FollowersCount int    `json:"followersCount"`
	FollowingCount int    `json:"followingCount"`
}

// ProfilePicture returns the server-side picture URL, if any.
func (u *User) ProfilePicture() string {
	if u == nil || u.Profile == nil {
		return ""
	}
	return u.Profile.ProfilePicture
}

// Session is the authenticated state held by the client. A non-nil User
// always comes with a non-empty AccessToken.
type Session struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
	User         *User  `json:"user,omitempty"`
}
