package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/openshelf/library_backend/config"
	"github.com/openshelf/library_backend/middlewares"
	"github.com/openshelf/library_backend/models"
	"github.com/openshelf/library_backend/models/reports"
	"github.com/openshelf/library_backend/utils"
	"github.com/openshelf/library_backend/workflow"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

// Define a struct to represent the rate limiter.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func getRedisClient(redisAddress string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
	return client
}

// respondError maps model errors to HTTP statuses. Only curated validation
// messages reach the client verbatim; driver and gorm failures must never
// leak internals.
func respondError(c *gin.Context, err error, notFoundMessage string) {
	var validation utils.ValidationError
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundMessage})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error()})
	case utils.IsNetworkError(err):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Network unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// respondBindError reports which fields failed binding validation so multi-field
// forms get actionable feedback.
func respondBindError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
}

func requireUser(c *gin.Context) (middlewares.Session, bool) {
	session, ok := middlewares.CurrentSession(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return session, ok
}

func requireAdmin(c *gin.Context) (middlewares.Session, bool) {
	session, ok := middlewares.CurrentSession(c.Request.Context())
	if !ok || !session.IsAdmin {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return session, false
	}
	return session, true
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, pageSize
}

func listResourcesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		packageType := models.PackageTypeFree
		if session, ok := middlewares.CurrentSession(c.Request.Context()); ok {
			packageType = session.PackageType
		}
		resources, err := models.GetAvailableResources(c.Request.Context(), packageType)
		if err != nil {
			respondError(c, err, "Book not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"resources": resources})
	}
}

func resourceKeywordsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		keywords, err := models.GetResourceKeywords(c.Request.Context())
		if err != nil {
			respondError(c, err, "Book not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"keywords": keywords})
	}
}

func signupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewUser
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		user, err := models.Signup(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err, "User not found")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Signup successful", "user": user})
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		info, err := models.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondError(c, err, "User not found")
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireUser(c); !ok {
			return
		}
		if _, err := models.Logout(c.Request.Context()); err != nil {
			respondError(c, err, "User not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
	}
}

func borrowHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := requireUser(c)
		if !ok {
			return
		}
		var input models.NewBorrow
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		borrow, err := models.BorrowResource(c.Request.Context(), session.UserId, &input)
		if err != nil {
			respondError(c, err, "Book not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Book borrowed successfully", "borrow": borrow})
	}
}

type returnRequest struct {
	LoanId int `json:"loan_id" binding:"required"`
}

func returnHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := requireUser(c)
		if !ok {
			return
		}
		var req returnRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		borrow, err := models.ReturnBorrow(c.Request.Context(), session.UserId, req.LoanId)
		if err != nil {
			respondError(c, err, "Loan not found or already returned")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Book returned successfully", "borrow": borrow})
	}
}

func reserveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := requireUser(c)
		if !ok {
			return
		}
		var input models.NewReserve
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		reserve, err := models.ReserveResource(c.Request.Context(), session.UserId, &input)
		if err != nil {
			respondError(c, err, "Book not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Book reserved successfully", "reserve": reserve})
	}
}

type cancelReserveRequest struct {
	ReserveId int `json:"reserve_id" binding:"required"`
}

func cancelReserveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := requireUser(c)
		if !ok {
			return
		}
		var req cancelReserveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		reserve, err := models.CancelReservation(c.Request.Context(), session.UserId, req.ReserveId)
		if err != nil {
			respondError(c, err, "Reservation not found or already cancelled")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Reservation cancelled successfully", "reserve": reserve})
	}
}

func activeLoansHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := requireUser(c)
		if !ok {
			return
		}
		loans, err := models.GetActiveLoans(c.Request.Context(), session.UserId)
		if err != nil {
			respondError(c, err, "Loan not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"loans": loans})
	}
}

func userReservesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := requireUser(c)
		if !ok {
			return
		}
		reserves, err := models.GetActiveReserves(c.Request.Context(), session.UserId)
		if err != nil {
			respondError(c, err, "Reservation not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"reserves": reserves})
	}
}

func userFinesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := requireUser(c)
		if !ok {
			return
		}
		fines, err := models.GetUserFines(c.Request.Context(), session.UserId)
		if err != nil {
			respondError(c, err, "Fine not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"fines": fines})
	}
}

func listNotificationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := requireUser(c)
		if !ok {
			return
		}
		page, pageSize := pageParams(c)
		notifications, err := models.GetNotifications(c.Request.Context(), session.UserId, page, pageSize)
		if err != nil {
			respondError(c, err, "Notification not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"notifications": notifications})
	}
}

type markReadRequest struct {
	NotificationId int  `json:"notification_id"`
	All            bool `json:"all"`
}

func markNotificationReadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := requireUser(c)
		if !ok {
			return
		}
		var req markReadRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if req.All {
			updated, err := models.MarkAllNotificationsRead(c.Request.Context(), session.UserId)
			if err != nil {
				respondError(c, err, "Notification not found")
				return
			}
			c.JSON(http.StatusOK, gin.H{"updated": updated})
			return
		}
		if req.NotificationId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "notification_id is required"})
			return
		}
		notification, err := models.MarkNotificationRead(c.Request.Context(), session.UserId, req.NotificationId)
		if err != nil {
			respondError(c, err, "Notification not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"notification": notification})
	}
}

func profileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := requireUser(c)
		if !ok {
			return
		}
		user, err := models.GetProfile(c.Request.Context(), session.UserId)
		if err != nil {
			respondError(c, err, "User not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}

func adminListResourcesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireAdmin(c); !ok {
			return
		}
		page, pageSize := pageParams(c)
		resources, err := models.GetAllResources(c.Request.Context(), page, pageSize)
		if err != nil {
			respondError(c, err, "Book not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"resources": resources})
	}
}

func adminCreateResourceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireAdmin(c); !ok {
			return
		}
		var input models.NewResource
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		resource, err := models.CreateResource(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err, "Book not found")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Book added successfully", "resource": resource})
	}
}

func adminListBorrowsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireAdmin(c); !ok {
			return
		}
		page, pageSize := pageParams(c)
		borrows, err := models.GetAllBorrows(c.Request.Context(), c.Query("status"), page, pageSize)
		if err != nil {
			respondError(c, err, "Loan not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"borrows": borrows})
	}
}

type extendRequest struct {
	DaysToAdd int `json:"daystoadd" binding:"required"`
}

func adminExtendBorrowHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireAdmin(c); !ok {
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid loan id"})
			return
		}
		var req extendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		borrow, err := models.ExtendBorrow(c.Request.Context(), id, req.DaysToAdd)
		if err != nil {
			respondError(c, err, "Active loan not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Loan extended successfully", "borrow": borrow})
	}
}

func adminForceReturnHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireAdmin(c); !ok {
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid loan id"})
			return
		}
		borrow, err := models.ForceReturnBorrow(c.Request.Context(), id)
		if err != nil {
			respondError(c, err, "Loan not found or already returned")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Book returned successfully", "borrow": borrow})
	}
}

func adminListReservesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireAdmin(c); !ok {
			return
		}
		page, pageSize := pageParams(c)
		reserves, err := models.GetAllReserves(c.Request.Context(), c.Query("status"), page, pageSize)
		if err != nil {
			respondError(c, err, "Reservation not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"reserves": reserves})
	}
}

func adminExtendReserveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireAdmin(c); !ok {
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reservation id"})
			return
		}
		var req extendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		reserve, err := models.ExtendReservation(c.Request.Context(), id, req.DaysToAdd)
		if err != nil {
			respondError(c, err, "Active reservation not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Reservation extended successfully", "reserve": reserve})
	}
}

func adminCancelReserveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireAdmin(c); !ok {
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reservation id"})
			return
		}
		reserve, err := models.AdminCancelReservation(c.Request.Context(), id)
		if err != nil {
			respondError(c, err, "Reservation not found or already cancelled")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Reservation cancelled successfully", "reserve": reserve})
	}
}

func adminListUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireAdmin(c); !ok {
			return
		}
		page, pageSize := pageParams(c)
		users, err := models.GetAllUsers(c.Request.Context(), page, pageSize)
		if err != nil {
			respondError(c, err, "User not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"users": users})
	}
}

type makeAdminRequest struct {
	UserId int `json:"user_id" binding:"required"`
}

func adminMakeAdminHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireAdmin(c); !ok {
			return
		}
		var req makeAdminRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		user, err := models.MakeAdmin(c.Request.Context(), req.UserId)
		if err != nil {
			respondError(c, err, "User not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "User promoted to admin", "user": user})
	}
}

func adminListFinesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireAdmin(c); !ok {
			return
		}
		page, pageSize := pageParams(c)
		fines, err := models.GetAllFines(c.Request.Context(), c.Query("status"), page, pageSize)
		if err != nil {
			respondError(c, err, "Fine not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"fines": fines})
	}
}

func adminMarkFinePaidHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireAdmin(c); !ok {
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid fine id"})
			return
		}
		fine, err := models.MarkFinePaid(c.Request.Context(), id)
		if err != nil {
			respondError(c, err, "Unpaid fine not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Fine marked as paid", "fine": fine})
	}
}

func adminExportFinesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireAdmin(c); !ok {
			return
		}
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=fines.xlsx")
		if err := reports.ExportFinesExcel(c.Request.Context(), c.Writer, c.Query("status")); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
	}
}

// cronDailyTasksHandler triggers the lifecycle engine. It accepts either the
// shared cron secret (for Cloud Scheduler) or an admin session.
func cronDailyTasksHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := config.CronSecret()
		authorized := secret != "" && c.GetHeader("x-cron-secret") == secret
		if !authorized {
			if session, ok := middlewares.CurrentSession(c.Request.Context()); !ok || !session.IsAdmin {
				c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
				return
			}
		}

		// One concurrent run; overlapping triggers are rejected outright.
		var lock *redislock.Lock
		if locker := config.GetRedisLock(); locker != nil {
			var err error
			lock, err = locker.Obtain(c.Request.Context(), "lock:daily-tasks", 10*time.Minute, nil)
			if err == redislock.ErrNotObtained {
				c.JSON(http.StatusConflict, gin.H{"success": false, "error": "daily tasks already running"})
				return
			}
			if err != nil {
				lock = nil
			}
		}
		if lock != nil {
			defer lock.Release(c.Request.Context())
		}

		tasks := workflow.NewDailyTasks(config.GetDB(), logger)
		result, err := tasks.Run(c.Request.Context())
		if err != nil {
			config.LogError(logger, "server.go", "cronDailyTasksHandler", "Run", nil, err)
			if utils.IsNetworkError(err) {
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Network unavailable"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Shutdown coordination.
	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until DB/Redis are ready, we return 503 for app endpoints.
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		// Always allow Cloud Run startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate critical endpoints on dependency readiness.
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// Production-safe CORS:
	// - In production, require explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	// - In non-production, allow all (developer convenience).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Safer default: deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", "x-cron-secret")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))

	// Optional rate limiting (recommended for production).
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		client := getRedisClient(os.Getenv("REDIS_ADDRESS"))
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(middlewares.SessionMiddleware())
	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	api := r.Group("/api")
	{
		api.GET("/resources", listResourcesHandler())
		api.GET("/resources/keywords", resourceKeywordsHandler())

		api.POST("/auth/signup", signupHandler())
		api.POST("/auth/login", loginHandler())
		api.POST("/auth/logout", logoutHandler())

		api.POST("/users/borrow", borrowHandler())
		api.POST("/users/borrow/return", returnHandler())
		api.POST("/users/reserve", reserveHandler())
		api.POST("/users/reserve/cancel", cancelReserveHandler())
		api.GET("/users/active-loans", activeLoansHandler())
		api.GET("/users/reserves", userReservesHandler())
		api.GET("/users/fines", userFinesHandler())
		api.GET("/users/notifications", listNotificationsHandler())
		api.PUT("/users/notifications", markNotificationReadHandler())
		api.GET("/users/profile", profileHandler())

		api.GET("/admin/resources", adminListResourcesHandler())
		api.POST("/admin/resources", adminCreateResourceHandler())
		api.GET("/admin/borrows", adminListBorrowsHandler())
		api.POST("/admin/borrows/:id/extend", adminExtendBorrowHandler())
		api.POST("/admin/borrows/:id/force-return", adminForceReturnHandler())
		api.GET("/admin/reserves", adminListReservesHandler())
		api.POST("/admin/reserves/:id/extend", adminExtendReserveHandler())
		api.DELETE("/admin/reserves/:id", adminCancelReserveHandler())
		api.GET("/admin/users", adminListUsersHandler())
		api.POST("/admin/users/make-admin", adminMakeAdminHandler())
		api.GET("/admin/fines", adminListFinesHandler())
		api.POST("/admin/fines/:id/mark-paid", adminMarkFinePaidHandler())
		api.GET("/admin/fines/export", adminExportFinesHandler())

		api.POST("/cron/daily-tasks", cronDailyTasksHandler(logger))
	}

	r.NoRoute(customNotFoundHandler)

	// Start listening immediately (Cloud Run startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	// Now DB is ready; run migrations.
	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables and causes 504/502 timeouts.
	// Allow disabling migrations on startup (run them as a separate job instead).
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Start outbox dispatcher (publishes AFTER commit).
	workersCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	go workflow.NewOutboxDispatcher(db, logger).Run(workersCtx)

	// Start the daily lifecycle scheduler.
	go workflow.NewDailyTaskScheduler(workflow.NewDailyTasks(db, logger), logger).Run(workersCtx)

	// Set the session isolation level to READ COMMITTED
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't start new work while we're draining.
	cancelWorkers()

	// Drain HTTP requests.
	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Close Redis (best-effort).
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

// Initialize a new RateLimiter instance.
func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Middleware function to check rate limits.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	// Get the IP address or user identifier from the request.
	key := c.ClientIP()

	// Check if the key exists in Redis.
	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the key doesn't exist, create it and set expiry.
	if exists == 0 {
		err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	// If the key exists, get the current count.
	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the count exceeds the limit, return an error response.
	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
