package models

import (
	"context"
	"html"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openshelf/library_backend/config"
	"github.com/openshelf/library_backend/utils"
)

type User struct {
	ID          int       `gorm:"primary_key" json:"id"`
	Name        string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email       string    `gorm:"size:100;not null;unique" json:"email" binding:"required"`
	Mobile      string    `gorm:"size:20" json:"mobile"`
	ImageUrl    string    `json:"image_url"`
	Password    string    `gorm:"size:255;not null" json:"-"`
	IsAdmin     *bool     `gorm:"not null;default:false" json:"is_admin"`
	PackageType string    `gorm:"size:20;not null;default:free" json:"package_type"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Mobile   string `json:"mobile"`
	Password string `json:"password" binding:"required"`
}

type LoginInfo struct {
	Token       string `json:"token"`
	JwtToken    string `json:"jwt_token"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	IsAdmin     bool   `json:"is_admin"`
	PackageType string `json:"package_type"`
}

func (result *User) PrepareGive() {
	result.Password = ""
}

func Signup(ctx context.Context, input *NewUser) (*User, error) {

	db := config.GetDB()
	var count int64

	if !utils.IsValidEmail(input.Email) {
		return nil, utils.NewValidationError("invalid email address")
	}
	if input.Mobile != "" {
		if err := utils.ValidatePhoneNumber(input.Mobile, utils.CountryCode); err != nil {
			return nil, utils.NewValidationError("invalid mobile number")
		}
	}
	if len(input.Password) < 6 {
		return nil, utils.NewValidationError("password must be at least 6 characters")
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	err := db.WithContext(ctx).Model(&User{}).Where("email = ?", email).Count(&count).Error
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.NewValidationError("User already exists")
	}

	hashedPassword, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := User{
		Name:        html.EscapeString(strings.TrimSpace(input.Name)),
		Email:       email,
		Mobile:      input.Mobile,
		Password:    string(hashedPassword),
		IsAdmin:     utils.NewFalse(),
		PackageType: PackageTypeFree,
	}

	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	user.PrepareGive()
	return &user, nil
}

func Login(ctx context.Context, email string, password string) (*LoginInfo, error) {

	db := config.GetDB()
	var result LoginInfo

	user := User{}
	email = strings.ToLower(strings.TrimSpace(email))
	if err := db.WithContext(ctx).Model(&User{}).Where("email = ?", email).Take(&user).Error; err != nil {
		return nil, utils.NewValidationError("Invalid email or password")
	}

	// Any compare failure, including an undecodable stored hash, rejects
	// the login.
	if err := utils.ComparePassword(user.Password, password); err != nil {
		return nil, utils.NewValidationError("Invalid email or password")
	}

	isAdmin := user.IsAdmin != nil && *user.IsAdmin

	// opaque session token stored in redis
	token := uuid.NewString()
	result.Token = token
	result.Name = user.Name
	result.Email = user.Email
	result.IsAdmin = isAdmin
	result.PackageType = user.PackageType

	tokenLifespan, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil {
		tokenLifespan = 24
	}

	session := utils.SessionData{
		UserId:      user.ID,
		UserName:    user.Name,
		IsAdmin:     isAdmin,
		PackageType: user.PackageType,
	}
	// track the user's tokens so all sessions can be revoked together
	if err := config.AddRedisSet("Tokens:"+strconv.Itoa(user.ID), token); err != nil {
		return nil, err
	}
	if err := config.SetRedisObject("Token:"+token, &session, time.Duration(tokenLifespan)*time.Hour); err != nil {
		return nil, err
	}

	// stateless fallback for clients that cannot hold a session token
	jwtToken, err := utils.JwtGenerate(user.ID, isAdmin, user.PackageType)
	if err != nil {
		return nil, err
	}
	result.JwtToken = jwtToken

	return &result, nil
}

// Logout destroys the current redis session.
func Logout(ctx context.Context) (bool, error) {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return false, utils.NewValidationError("token is required")
	}
	if err := config.RemoveRedisKey("Token:" + token); err != nil {
		return false, err
	}
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		return false, utils.NewValidationError("user not found")
	}
	if err := config.RemoveRedisSetMember("Tokens:"+strconv.Itoa(userId), token); err != nil {
		return false, err
	}
	return true, nil
}

func GetProfile(ctx context.Context, userId int) (*User, error) {

	db := config.GetDB()
	var result User

	if err := db.WithContext(ctx).First(&result, userId).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	result.PrepareGive()
	return &result, nil
}

func GetAllUsers(ctx context.Context, page int, pageSize int) ([]*User, error) {

	db := config.GetDB()
	var results []*User

	if err := db.WithContext(ctx).Scopes(Paginate(page, pageSize)).
		Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	for i, u := range results {
		u.Password = ""
		results[i] = u
	}
	return results, nil
}

// MakeAdmin grants admin rights and revokes the user's cached sessions so
// the next login picks up the new role.
func MakeAdmin(ctx context.Context, userId int) (*User, error) {

	db := config.GetDB()
	var user User

	if err := db.WithContext(ctx).First(&user, userId).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	if err := db.WithContext(ctx).Model(&user).Update("is_admin", true).Error; err != nil {
		return nil, err
	}

	tokens, err := config.GetRedisSetMembers("Tokens:" + strconv.Itoa(userId))
	if err == nil {
		for _, t := range tokens {
			_ = config.RemoveRedisKey("Token:" + t)
		}
		_ = config.RemoveRedisKey("Tokens:" + strconv.Itoa(userId))
	}

	user.PrepareGive()
	return &user, nil
}

// SetPackageType switches a user's membership tier and revokes cached sessions.
func SetPackageType(ctx context.Context, userId int, packageType string) (*User, error) {

	if packageType != PackageTypeFree && packageType != PackageTypePremium {
		return nil, utils.NewValidationError("invalid package type")
	}

	db := config.GetDB()
	var user User

	if err := db.WithContext(ctx).First(&user, userId).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	if err := db.WithContext(ctx).Model(&user).Update("package_type", packageType).Error; err != nil {
		return nil, err
	}

	tokens, err := config.GetRedisSetMembers("Tokens:" + strconv.Itoa(userId))
	if err == nil {
		for _, t := range tokens {
			_ = config.RemoveRedisKey("Token:" + t)
		}
		_ = config.RemoveRedisKey("Tokens:" + strconv.Itoa(userId))
	}

	user.PrepareGive()
	return &user, nil
}
