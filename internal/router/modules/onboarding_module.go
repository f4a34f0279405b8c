package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/oksasatya/barterx-accounts/internal/interface/http"
	"github.com/oksasatya/barterx-accounts/internal/interface/middleware"
)

type OnboardingModule struct {
	Handler *handlers.OnboardingHandler
	Redis   *redis.Client
}

func NewOnboardingModule(h *handlers.OnboardingHandler, rdb *redis.Client) *OnboardingModule {
	return &OnboardingModule{Handler: h, Redis: rdb}
}

func (m *OnboardingModule) Register(rg *gin.RouterGroup) {
	searchLimiter := middleware.RateLimit(m.Redis, 60, time.Minute, middleware.KeyByIP(), nil)
	uploadLimiter := middleware.RateLimit(m.Redis, 10, time.Minute, middleware.KeyByIPAndPath(), nil)

	rg.POST("/complete-onboarding", m.Handler.CompleteOnboarding)
	rg.POST("/onboarding/save-answers", m.Handler.SaveAnswers)
	rg.GET("/onboarding/user-by-email", m.Handler.UserByEmail)
	rg.GET("/users/search", searchLimiter, m.Handler.Search)
	rg.POST("/profile/picture", uploadLimiter, m.Handler.UploadPicture)
}
