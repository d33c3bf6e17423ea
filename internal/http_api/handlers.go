package http_api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/promohive/rewards/internal/models"
	"github.com/promohive/rewards/internal/promohive"
	"github.com/promohive/rewards/pkg/money"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// errorStatus maps domain errors to HTTP statuses; the first match wins.
var errorStatus = []struct {
	err    error
	status int
}{
	{models.ErrUserNotFound, http.StatusNotFound},
	{models.ErrWithdrawalNotFound, http.StatusNotFound},
	{models.ErrLevelRequestNotFound, http.StatusNotFound},
	{models.ErrTaskNotFound, http.StatusNotFound},
	{models.ErrSubmissionNotFound, http.StatusNotFound},
	{models.ErrReferralEdgeNotFound, http.StatusNotFound},
	{models.ErrInsufficientBalance, http.StatusUnprocessableEntity},
	{models.ErrBelowMinimum, http.StatusUnprocessableEntity},
	{models.ErrInvalidLevelTransition, http.StatusUnprocessableEntity},
	{models.ErrUserNotApproved, http.StatusForbidden},
	{models.ErrForbidden, http.StatusForbidden},
	{models.ErrWithdrawalAlreadyPending, http.StatusConflict},
	{models.ErrAlreadyProcessed, http.StatusConflict},
	{models.ErrLevelRequestPending, http.StatusConflict},
	{models.ErrDuplicateOffer, http.StatusConflict},
	{models.ErrAlreadySubmitted, http.StatusConflict},
	{models.ErrEmailTaken, http.StatusConflict},
	{models.ErrAccrualRunning, http.StatusConflict},
	{models.ErrTxHashRequired, http.StatusBadRequest},
	{models.ErrReasonRequired, http.StatusBadRequest},
	{models.ErrInvalidAddress, http.StatusBadRequest},
	{models.ErrInvalidAmount, http.StatusBadRequest},
	{models.ErrInvalidReferralCode, http.StatusBadRequest},
	{models.ErrInvalidEmail, http.StatusBadRequest},
	{models.ErrUnknownSetting, http.StatusBadRequest},
	{models.ErrLedgerMismatch, http.StatusConflict},
	{models.ErrTransient, http.StatusServiceUnavailable},
}

func statusFor(err error) int {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

// fail writes err with its mapped status. Unmapped errors are logged and
// hidden from the client.
func (s *HTTPServer) fail(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()
	switch {
	case status == http.StatusInternalServerError:
		s.logger.Error("Request failed", "path", c.FullPath(), "error", err)
		message = "internal error"
	case errors.Is(err, models.ErrTransient):
		s.logger.Warn("Storage unavailable", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"success": false, "error": message})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": message})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func userID(c *gin.Context) int64 {
	if claims := currentClaims(c); claims != nil {
		return claims.UserID
	}
	return 0
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// health reports liveness.
func (s *HTTPServer) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ---------------------------------------------------------------------------
// Accounts

func (s *HTTPServer) register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debug("Invalid request body", "error", err)
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	user, err := s.promohive.RegisterUser(c.Request.Context(), &req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (s *HTTPServer) listUsers(c *gin.Context) {
	users, err := s.promohive.ListUsers(models.UserStatus(c.Query("status")), queryLimit(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (s *HTTPServer) approveUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	wallet, err := s.promohive.ApproveUser(c.Request.Context(), userID(c), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, wallet)
}

func (s *HTTPServer) rejectUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.promohive.RejectUser(c.Request.Context(), userID(c), id); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ---------------------------------------------------------------------------
// Wallet views

func (s *HTTPServer) getWallet(c *gin.Context) {
	wallet, err := s.promohive.GetWallet(userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, wallet)
}

func (s *HTTPServer) createTelegramLink(c *gin.Context) {
	link, err := s.promohive.CreateTelegramLink(c.Request.Context(), userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, link)
}

func (s *HTTPServer) listLedger(c *gin.Context) {
	entries, err := s.promohive.ListLedger(userID(c), queryLimit(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (s *HTTPServer) listReferrals(c *gin.Context) {
	referrals, err := s.promohive.ListReferrals(userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, referrals)
}

func (s *HTTPServer) listNotifications(c *gin.Context) {
	notifications, err := s.promohive.ListNotifications(userID(c), queryLimit(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, notifications)
}

func (s *HTTPServer) markNotificationRead(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.promohive.MarkNotificationRead(userID(c), id); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ---------------------------------------------------------------------------
// Tasks

// CreateTaskRequest takes the base reward as a dollar amount, e.g. "10.00".
type CreateTaskRequest struct {
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description"`
	Reward      string          `json:"reward" binding:"required"`
	Type        models.TaskType `json:"type" binding:"omitempty,oneof=manual offer"`
}

type submitTaskRequest struct {
	Proof string `json:"proof" binding:"required"`
}

func (s *HTTPServer) listTasks(c *gin.Context) {
	tasks, err := s.promohive.ListTasks(true)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (s *HTTPServer) createTask(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	reward, err := money.ParseDollars(req.Reward)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	task := &models.Task{Title: req.Title, Description: req.Description, Reward: reward, Type: req.Type}
	if err := s.promohive.CreateTask(c.Request.Context(), task); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (s *HTTPServer) submitTask(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req submitTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	submission, err := s.promohive.SubmitTask(c.Request.Context(), userID(c), id, req.Proof)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, submission)
}

func (s *HTTPServer) listSubmissions(c *gin.Context) {
	submissions, err := s.promohive.ListSubmissions(models.RequestStatus(c.Query("status")), queryLimit(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, submissions)
}

func (s *HTTPServer) approveSubmission(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	submission, err := s.promohive.ApproveSubmission(c.Request.Context(), userID(c), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, submission)
}

func (s *HTTPServer) rejectSubmission(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req reasonRequest
	_ = c.ShouldBindJSON(&req)
	submission, err := s.promohive.RejectSubmission(c.Request.Context(), userID(c), id, req.Reason)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, submission)
}

// OfferWebhookRequest is an ad-network completion. Payout is in dollars.
type OfferWebhookRequest struct {
	ExternalID string `json:"external_id" binding:"required"`
	UserID     int64  `json:"user_id" binding:"required"`
	TaskID     *int64 `json:"task_id"`
	Payout     string `json:"payout" binding:"required"`
}

// offerWebhook credits an ad-network completion. The caller proves itself with
// the network's shared key in X-Api-Key or the key query parameter.
func (s *HTTPServer) offerWebhook(c *gin.Context) {
	network := strings.ToLower(c.Param("network"))
	if !promohive.IsOfferNetwork(network) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "unknown network"})
		return
	}
	key := c.GetHeader("X-Api-Key")
	if key == "" {
		key = c.Query("key")
	}
	if !s.webhookKeyValid(network, key) {
		s.logger.Warn("Rejected webhook key", "network", network, "ip", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid key"})
		return
	}

	var req OfferWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	payout, err := money.ParseDollars(req.Payout)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	completion, err := s.promohive.CreditOffer(c.Request.Context(), &models.OfferCallback{
		Network:    network,
		ExternalID: req.ExternalID,
		UserID:     req.UserID,
		TaskID:     req.TaskID,
		Payout:     payout,
	})
	if errors.Is(err, models.ErrDuplicateOffer) {
		// networks retry until they see a 2xx
		c.JSON(http.StatusOK, gin.H{"success": true, "duplicate": true})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "completion": completion})
}

// ---------------------------------------------------------------------------
// Withdrawals

// WithdrawalRequestBody takes the amount in dollars, e.g. "25.00".
type WithdrawalRequestBody struct {
	Amount        string         `json:"amount" binding:"required"`
	WalletAddress string         `json:"wallet_address" binding:"required"`
	Network       models.Network `json:"network" binding:"required"`
}

type approveWithdrawalRequest struct {
	TxHash string `json:"tx_hash"`
}

func (s *HTTPServer) requestWithdrawal(c *gin.Context) {
	var req WithdrawalRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	amount, err := money.ParseDollars(req.Amount)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	withdrawal, err := s.promohive.RequestWithdrawal(c.Request.Context(), &models.WithdrawalRequest{
		UserID:        userID(c),
		Amount:        amount,
		WalletAddress: req.WalletAddress,
		Network:       req.Network,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, withdrawal)
}

func (s *HTTPServer) listMyWithdrawals(c *gin.Context) {
	withdrawals, err := s.promohive.ListWithdrawals(userID(c), models.WithdrawalStatus(c.Query("status")), queryLimit(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, withdrawals)
}

func (s *HTTPServer) cancelWithdrawal(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	withdrawal, err := s.promohive.CancelWithdrawal(c.Request.Context(), userID(c), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, withdrawal)
}

func (s *HTTPServer) listWithdrawals(c *gin.Context) {
	var owner int64
	if raw := c.Query("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badRequest(c, "invalid user_id")
			return
		}
		owner = id
	}
	withdrawals, err := s.promohive.ListWithdrawals(owner, models.WithdrawalStatus(c.Query("status")), queryLimit(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, withdrawals)
}

func (s *HTTPServer) approveWithdrawal(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req approveWithdrawalRequest
	_ = c.ShouldBindJSON(&req)
	withdrawal, err := s.promohive.ApproveWithdrawal(c.Request.Context(), userID(c), id, req.TxHash)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, withdrawal)
}

func (s *HTTPServer) rejectWithdrawal(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req reasonRequest
	_ = c.ShouldBindJSON(&req)
	withdrawal, err := s.promohive.RejectWithdrawal(c.Request.Context(), userID(c), id, req.Reason)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, withdrawal)
}

// ---------------------------------------------------------------------------
// Levels

type levelUpgradeRequest struct {
	Level int `json:"level" binding:"required"`
}

func (s *HTTPServer) requestLevelUpgrade(c *gin.Context) {
	var req levelUpgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	request, err := s.promohive.RequestLevelUpgrade(c.Request.Context(), userID(c), req.Level)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, request)
}

func (s *HTTPServer) listLevelRequests(c *gin.Context) {
	requests, err := s.promohive.ListLevelRequests(models.RequestStatus(c.Query("status")), queryLimit(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

func (s *HTTPServer) approveLevelRequest(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	request, err := s.promohive.ApproveLevelRequest(c.Request.Context(), userID(c), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}

func (s *HTTPServer) rejectLevelRequest(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req reasonRequest
	_ = c.ShouldBindJSON(&req)
	request, err := s.promohive.RejectLevelRequest(c.Request.Context(), userID(c), id, req.Reason)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}

// ---------------------------------------------------------------------------
// Administration

// AdjustBalanceRequest takes a signed dollar amount, e.g. "-5.00".
type AdjustBalanceRequest struct {
	Amount string `json:"amount" binding:"required"`
	Reason string `json:"reason"`
}

type updateSettingRequest struct {
	Value string `json:"value" binding:"required"`
}

func (s *HTTPServer) adjustBalance(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req AdjustBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	amount, err := money.ParseDollars(req.Amount)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	wallet, err := s.promohive.AdjustBalance(c.Request.Context(), userID(c), id, amount, req.Reason)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, wallet)
}

func (s *HTTPServer) reconcile(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	totals, err := s.promohive.Reconcile(id)
	if errors.Is(err, models.ErrLedgerMismatch) {
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error(), "ledger": totals})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "ledger": totals})
}

func (s *HTTPServer) runAccrual(c *gin.Context) {
	summary, err := s.promohive.RunAccrual(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *HTTPServer) listSettings(c *gin.Context) {
	settings, err := s.promohive.ListSettings()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (s *HTTPServer) updateSetting(c *gin.Context) {
	var req updateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if err := s.promohive.UpdateSetting(c.Param("key"), req.Value); err != nil {
		if errors.Is(err, models.ErrTransient) {
			s.fail(c, err)
			return
		}
		// anything else is a value the rules engine cannot parse
		badRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
