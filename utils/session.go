package utils

// SessionData is the payload stored in Redis under "Token:<token>" when a
// user logs in, and restored by the session middleware on each request.
type SessionData struct {
	UserId      int    `json:"userId"`
	UserName    string `json:"userName"`
	IsAdmin     bool   `json:"isAdmin"`
	PackageType string `json:"packageType"`
}
