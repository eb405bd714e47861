package models

import (
	"context"
	"crypto/subtle"
	"errors"
	"html"
	"os"
	"strings"
	"time"

	"github.com/maisoong/exchange_backend/utils"
	"gorm.io/gorm"
)

type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleStaff UserRole = "staff"
)

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Username  string    `gorm:"size:50;not null;uniqueIndex" json:"username"`
	Email     string    `gorm:"size:100;not null;uniqueIndex" json:"email"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Role      UserRole  `gorm:"size:10;not null;default:staff" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type NewUser struct {
	Username        string `json:"username" validate:"required,max=50"`
	Email           string `json:"email" validate:"required,email,max=100"`
	Password        string `json:"password" validate:"required,min=6"`
	RegistrationKey string `json:"registration_key"`
}

type LoginInfo struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

var errInvalidLogin = errors.New("invalid username or password")

func (input *NewUser) validate(ctx context.Context, db *gorm.DB) error {
	input.Username = html.EscapeString(strings.TrimSpace(input.Username))
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if err := utils.ValidateUnique[User](ctx, db, "username", input.Username, 0); err != nil {
		return err
	}
	return utils.ValidateUnique[User](ctx, db, "email", input.Email, 0)
}

// registrationKeyMatches is false when REGISTRATION_KEY is unset, which
// disables self registration.
func registrationKeyMatches(key string) bool {
	expected := os.Getenv("REGISTRATION_KEY")
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(key)) == 1
}

// Register creates a staff login guarded by the shared registration key.
func (l *Ledger) Register(ctx context.Context, input *NewUser) (*User, error) {
	if !registrationKeyMatches(input.RegistrationKey) {
		return nil, utils.ErrorUnauthorized
	}
	return l.CreateUser(ctx, input, UserRoleStaff)
}

func (l *Ledger) CreateUser(ctx context.Context, input *NewUser, role UserRole) (*User, error) {
	db := l.db.WithContext(ctx)
	if err := input.validate(ctx, db); err != nil {
		return nil, err
	}
	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	user := User{
		Username: input.Username,
		Email:    input.Email,
		Password: hashed,
		Role:     role,
	}
	if err := db.Create(&user).Error; err != nil {
		if isDuplicateKeyError(err) {
			return nil, utils.NewValidationError("duplicate username or email")
		}
		return nil, err
	}
	return &user, nil
}

// UpsertAdmin sets the admin password, creating the user when missing.
func (l *Ledger) UpsertAdmin(ctx context.Context, username, email, password string) (*User, error) {
	db := l.db.WithContext(ctx)
	var user User
	err := db.Where("username = ?", username).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return l.CreateUser(ctx, &NewUser{Username: username, Email: email, Password: password}, UserRoleAdmin)
	}
	if err != nil {
		return nil, err
	}
	hashed, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}
	err = db.Model(&user).Updates(map[string]interface{}{"password": hashed, "role": UserRoleAdmin}).Error
	if err != nil {
		return nil, err
	}
	user.Role = UserRoleAdmin
	return &user, nil
}

func (l *Ledger) Login(ctx context.Context, username string, password string) (*LoginInfo, error) {
	var user User
	err := l.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errInvalidLogin
		}
		return nil, err
	}
	if err := utils.ComparePassword(user.Password, password); err != nil {
		return nil, errInvalidLogin
	}

	token, err := utils.JwtGenerate(user.ID, user.Username, string(user.Role))
	if err != nil {
		return nil, err
	}
	return &LoginInfo{Token: token, User: &user}, nil
}

func IsInvalidLogin(err error) bool {
	return errors.Is(err, errInvalidLogin)
}
