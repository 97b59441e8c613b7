// Package validation checks form input before anything is sent to the server.
package validation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// Limits enforced on user input.
const (
	MinUsernameLength = 3
	MinPasswordLength = 6
	MaxPostLength     = 500
	MaxBioLength      = 500
	MaxLocationLength = 100
)

// GeneralField holds errors that do not belong to a single input.
const GeneralField = "general"

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// FieldErrors maps a form field name to its error message.
type FieldErrors map[string]string

// Add records msg for field unless the field already has an error.
func (fe FieldErrors) Add(field, msg string) {
	if _, ok := fe[field]; !ok {
		fe[field] = msg
	}
}

// AddError records err for field when err is non-nil.
func (fe FieldErrors) AddError(field string, err error) {
	if err != nil {
		fe.Add(field, err.Error())
	}
}

func (fe FieldErrors) OK() bool {
	return len(fe) == 0
}

// Error implements error so a failed form can travel as one value.
func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+fe[f])
	}
	return strings.Join(parts, "; ")
}

// Err returns fe as an error, or nil when there are no field errors.
func (fe FieldErrors) Err() error {
	if fe.OK() {
		return nil
	}
	return fe
}

// ValidateUsername checks a username on the sign-up form.
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("Username is required")
	}
	if utf8.RuneCountInString(username) < MinUsernameLength {
		return fmt.Errorf("Username must be at least %d characters", MinUsernameLength)
	}
	return nil
}

// ValidateEmail checks basic email format
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("Email is required")
	}
	if !IsValidEmail(email) {
		return fmt.Errorf("Invalid email format")
	}
	return nil
}

// IsValidEmail reports whether email looks like local@domain.tld.
func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// ValidatePassword checks a new password.
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("Password is required")
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return fmt.Errorf("Password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// ValidatePasswordConfirmation checks the repeated password field.
func ValidatePasswordConfirmation(password, confirm string) error {
	if confirm == "" {
		return fmt.Errorf("Please confirm your password")
	}
	if password != confirm {
		return fmt.Errorf("Passwords do not match")
	}
	return nil
}

// ValidatePostContent checks the body of a new post.
func ValidatePostContent(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return fmt.Errorf("Post content cannot be empty")
	}
	if utf8.RuneCountInString(content) > MaxPostLength {
		return fmt.Errorf("Post content must be less than %d characters", MaxPostLength)
	}
	return nil
}

// ValidateQuote checks the commentary added when quoting a post.
func ValidateQuote(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return fmt.Errorf("Please add your thoughts")
	}
	if utf8.RuneCountInString(content) > MaxPostLength {
		return fmt.Errorf("Post is too long (max %d characters)", MaxPostLength)
	}
	return nil
}

func ValidateComment(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("Comment cannot be empty")
	}
	return nil
}

// LoginForm is the sign-in form.
type LoginForm struct {
	Username string `form:"username"`
	Password string `form:"password"`
}

func (f LoginForm) Validate() FieldErrors {
	errs := FieldErrors{}
	if strings.TrimSpace(f.Username) == "" {
		errs.Add("username", "Username is required")
	}
	if f.Password == "" {
		errs.Add("password", "Password is required")
	}
	return errs
}

// RegisterForm is the sign-up form.
type RegisterForm struct {
	Username        string `form:"username"`
	Email           string `form:"email"`
	Password        string `form:"password"`
	ConfirmPassword string `form:"confirm_password"`
}

func (f RegisterForm) Validate() FieldErrors {
	errs := FieldErrors{}
	errs.AddError("username", ValidateUsername(f.Username))
	errs.AddError("email", ValidateEmail(f.Email))
	errs.AddError("password", ValidatePassword(f.Password))
	errs.AddError("confirm_password", ValidatePasswordConfirmation(f.Password, f.ConfirmPassword))
	return errs
}

type ForgotPasswordForm struct {
	Email string `form:"email"`
}

func (f ForgotPasswordForm) Validate() FieldErrors {
	errs := FieldErrors{}
	errs.AddError("email", ValidateEmail(f.Email))
	return errs
}

type ResetPasswordForm struct {
	Token           string `form:"token"`
	Password        string `form:"password"`
	ConfirmPassword string `form:"confirm_password"`
}

func (f ResetPasswordForm) Validate() FieldErrors {
	errs := FieldErrors{}
	if strings.TrimSpace(f.Token) == "" {
		errs.Add(GeneralField, "Invalid or missing reset token")
	}
	errs.AddError("password", ValidatePassword(f.Password))
	errs.AddError("confirm_password", ValidatePasswordConfirmation(f.Password, f.ConfirmPassword))
	return errs
}

// ProfileForm is the text part of the edit-profile form; the picture is
// checked by the avatar package.
type ProfileForm struct {
	Bio         string `form:"bio"`
	Location    string `form:"location"`
	DateOfBirth string `form:"date_of_birth"`
}

// Validate checks the profile fields against now.
func (f ProfileForm) Validate(now time.Time) FieldErrors {
	errs := FieldErrors{}
	if utf8.RuneCountInString(f.Bio) > MaxBioLength {
		errs.Add("bio", fmt.Sprintf("Bio must be less than %d characters", MaxBioLength))
	}
	if utf8.RuneCountInString(f.Location) > MaxLocationLength {
		errs.Add("location", fmt.Sprintf("Location must be less than %d characters", MaxLocationLength))
	}
	if dob := strings.TrimSpace(f.DateOfBirth); dob != "" {
		t, err := time.Parse(time.DateOnly, dob)
		switch {
		case err != nil:
			errs.Add("date_of_birth", "Date of birth must be a valid date")
		case t.After(now):
			errs.Add("date_of_birth", "Date of birth cannot be in the future")
		}
	}
	return errs
}
