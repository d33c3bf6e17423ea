package http_api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// routes sets up the routes for the HTTP server.
func (s *HTTPServer) routes() {
	s.router.GET("/healthz", s.health)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api/v1")
	api.POST("/register", s.register)
	api.POST("/webhooks/:network", s.offerWebhook)

	user := api.Group("", s.authenticate())
	user.GET("/wallet", s.getWallet)
	user.GET("/ledger", s.listLedger)
	user.GET("/referrals", s.listReferrals)
	user.GET("/tasks", s.listTasks)
	user.POST("/tasks/:id/submissions", s.submitTask)
	user.GET("/withdrawals", s.listMyWithdrawals)
	user.POST("/withdrawals", s.requestWithdrawal)
	user.POST("/withdrawals/:id/cancel", s.cancelWithdrawal)
	user.POST("/levels", s.requestLevelUpgrade)
	user.GET("/notifications", s.listNotifications)
	user.POST("/notifications/:id/read", s.markNotificationRead)
	user.POST("/telegram/link", s.createTelegramLink)

	admin := api.Group("/admin", s.authenticate())

	users := admin.Group("/users", requireCapability(CapManageUsers))
	users.GET("", s.listUsers)
	users.POST("/:id/approve", s.approveUser)
	users.POST("/:id/reject", s.rejectUser)

	balances := admin.Group("/users", requireCapability(CapManageBalances))
	balances.POST("/:id/adjust", s.adjustBalance)
	balances.GET("/:id/reconcile", s.reconcile)

	tasks := admin.Group("", requireCapability(CapManageTasks))
	tasks.POST("/tasks", s.createTask)
	tasks.GET("/submissions", s.listSubmissions)
	tasks.POST("/submissions/:id/approve", s.approveSubmission)
	tasks.POST("/submissions/:id/reject", s.rejectSubmission)

	withdrawals := admin.Group("/withdrawals", requireCapability(CapManageWithdrawals))
	withdrawals.GET("", s.listWithdrawals)
	withdrawals.POST("/:id/approve", s.approveWithdrawal)
	withdrawals.POST("/:id/reject", s.rejectWithdrawal)

	levels := admin.Group("/level-requests", requireCapability(CapManageLevels))
	levels.GET("", s.listLevelRequests)
	levels.POST("/:id/approve", s.approveLevelRequest)
	levels.POST("/:id/reject", s.rejectLevelRequest)

	settings := admin.Group("/settings", requireCapability(CapManageSettings))
	settings.GET("", s.listSettings)
	settings.PUT("/:key", s.updateSetting)

	admin.POST("/accrual/run", requireCapability(CapRunJobs), s.runAccrual)
}
