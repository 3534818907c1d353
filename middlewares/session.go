package middlewares

import (
	"context"

	"github.com/openshelf/library_backend/utils"
)

// Session is the normalized view of the caller regardless of which
// credential (Redis session or JWT) authenticated the request.
type Session struct {
	UserId      int
	UserName    string
	IsAdmin     bool
	PackageType string
	Source      string
}

// CurrentSession returns the authenticated caller, or false when the
// request carried no valid credential.
func CurrentSession(ctx context.Context) (Session, bool) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		return Session{}, false
	}
	source, _ := utils.GetSessionSourceFromContext(ctx)
	userName, _ := utils.GetUserNameFromContext(ctx)
	isAdmin, _ := utils.GetIsAdminFromContext(ctx)
	packageType, _ := utils.GetPackageTypeFromContext(ctx)
	return Session{
		UserId:      userId,
		UserName:    userName,
		IsAdmin:     isAdmin,
		PackageType: packageType,
		Source:      source,
	}, true
}
