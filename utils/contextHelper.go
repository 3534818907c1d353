package utils

import (
	"context"

	"github.com/openshelf/library_backend/appctx"
)

var (
	ContextKeyToken         = appctx.ContextKeyToken
	ContextKeyUserId        = appctx.ContextKeyUserId
	ContextKeyUserName      = appctx.ContextKeyUserName
	ContextKeyIsAdmin       = appctx.ContextKeyIsAdmin
	ContextKeyPackageType   = appctx.ContextKeyPackageType
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
	ContextKeySessionSource = appctx.ContextKeySessionSource
)

func GetTokenFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyToken)
}

func GetUserIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyUserId)
}

func GetUserNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserName)
}

func GetIsAdminFromContext(ctx context.Context) (bool, bool) {
	return appctx.GetBool(ctx, ContextKeyIsAdmin)
}

func GetPackageTypeFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyPackageType)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func GetSessionSourceFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeySessionSource)
}

func SetTokenInContext(ctx context.Context, token string) context.Context {
	return appctx.Set(ctx, ContextKeyToken, token)
}

func SetUserIdInContext(ctx context.Context, userId int) context.Context {
	return appctx.Set(ctx, ContextKeyUserId, userId)
}

func SetUserNameInContext(ctx context.Context, userName string) context.Context {
	return appctx.Set(ctx, ContextKeyUserName, userName)
}

func SetIsAdminInContext(ctx context.Context, isAdmin bool) context.Context {
	return appctx.Set(ctx, ContextKeyIsAdmin, isAdmin)
}

func SetPackageTypeInContext(ctx context.Context, packageType string) context.Context {
	return appctx.Set(ctx, ContextKeyPackageType, packageType)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func SetSessionSourceInContext(ctx context.Context, source string) context.Context {
	return appctx.Set(ctx, ContextKeySessionSource, source)
}
