package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/oksasatya/barterx-accounts/internal/interface/http"
	"github.com/oksasatya/barterx-accounts/internal/interface/middleware"
)

type AccountModule struct {
	Handler *handlers.AccountHandler
	Redis   *redis.Client
}

func NewAccountModule(h *handlers.AccountHandler, rdb *redis.Client) *AccountModule {
	return &AccountModule{Handler: h, Redis: rdb}
}

func (m *AccountModule) Register(rg *gin.RouterGroup) {
	credLimiter := middleware.RateLimit(m.Redis, 10, time.Minute, middleware.KeyByIP(), nil)
	codeLimiter := middleware.RateLimit(m.Redis, 30, time.Minute, middleware.KeyByIPAndPath(), nil)
	resetInitLimiter := middleware.RateLimit(m.Redis, 5, time.Minute, middleware.KeyByIPAndPath(), nil)

	rg.POST("/signup", credLimiter, m.Handler.Signup)
	rg.POST("/login", credLimiter, m.Handler.Login)
	rg.POST("/verify", codeLimiter, m.Handler.Verify)
	rg.POST("/forgot-password-request-otp", resetInitLimiter, m.Handler.ForgotPasswordRequest)
	rg.POST("/forgot-password-verify-otp", codeLimiter, m.Handler.ForgotPasswordVerify)
	rg.POST("/reset-password", codeLimiter, m.Handler.ResetPassword)
}
