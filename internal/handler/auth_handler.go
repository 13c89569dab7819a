package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/barbartender/bartender/internal/model"
	"github.com/barbartender/bartender/internal/pkg/response"
	"github.com/barbartender/bartender/internal/service"
)

const deliveryWarning = "Your account is not created yet and the verification email may not have arrived. Request a new code if it does not show up."

type AuthHandler struct {
	auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type resendRequest struct {
	Email string `json:"email"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type pendingResponse struct {
	Email     string `json:"email"`
	ExpiresAt int64  `json:"expires_at"`
	Delivered bool   `json:"delivered"`
	Warning   string `json:"warning,omitempty"`
}

type userResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token,omitempty"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "invalid request")
		return
	}
	if req.Password == "" {
		invalidRequest(c, "password required")
		return
	}
	receipt, err := h.auth.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		handleError(c, err)
		return
	}
	h.writeReceipt(c, receipt)
}

func (h *AuthHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Code == "" {
		invalidRequest(c, "email and code required")
		return
	}
	user, err := h.auth.VerifyRegistration(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		handleError(c, err)
		return
	}
	requestLogger(c).Info("account created", zap.String("new_user_id", user.ID))
	response.Success(c, userResponse{User: user})
}

func (h *AuthHandler) Resend(c *gin.Context) {
	var req resendRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
		invalidRequest(c, "email required")
		return
	}
	receipt, err := h.auth.ResendCode(c.Request.Context(), req.Email)
	if err != nil {
		handleError(c, err)
		return
	}
	h.writeReceipt(c, receipt)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		invalidRequest(c, "email and password required")
		return
	}
	user, token, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, userResponse{User: user, Token: token})
}

func (h *AuthHandler) writeReceipt(c *gin.Context, receipt *service.SendReceipt) {
	resp := pendingResponse{
		Email:     receipt.Email,
		ExpiresAt: receipt.ExpiresAt,
		Delivered: receipt.Delivered,
	}
	if !receipt.Delivered {
		resp.Warning = deliveryWarning
		requestLogger(c).Warn("verification mail not delivered", zap.String("email", receipt.Email))
	}
	response.Success(c, resp)
}
