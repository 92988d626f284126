package users

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password the policy accepts.
const MinPasswordLength = 6

// User is the identity record held by the identity endpoint.
type User struct {
	ID           string    `json:"id,omitempty"`         // Unique identifier for the user
	Email        string    `json:"email,omitempty"`      // Login email, stored lowercased
	PasswordHash string    `json:"-"`                    // Hashed version of the user's password - never serialize
	FirstName    string    `json:"firstName,omitempty"`  // First name of the user
	LastName     string    `json:"lastName,omitempty"`   // Last name of the user
	Phone        string    `json:"phone,omitempty"`      // Optional profile field
	Avatar       string    `json:"avatar,omitempty"`     // Optional avatar URL
	Role         Role      `json:"role,omitempty"`       // Single role from the closed taxonomy
	DateJoined   time.Time `json:"dateJoined,omitempty"` // Date and time when the user registered
	LastLogin    time.Time `json:"lastLogin,omitempty"`  // Last time the user logged in
	Blocked      bool      `json:"blocked,omitempty"`    // Blocked, has the user been blocked from logging in
}

// DisplayName joins the name fields, falling back to the email.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// HasRole reports whether the user's role is in the required set.
func (u *User) HasRole(required RoleSet) bool {
	if u == nil {
		return false
	}
	return required.Allows(u.Role)
}

// NormalizeEmail trims and lowercases an email for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 6 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
