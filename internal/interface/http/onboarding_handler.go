package handlers

import (
	"bufio"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/barterx-accounts/internal/application"
	"github.com/oksasatya/barterx-accounts/pkg/response"
)

// MaxPictureBytes caps profile picture uploads.
const MaxPictureBytes = 5 << 20

type OnboardingHandler struct {
	Svc    *application.ProfileService
	Logger *logrus.Logger
}

func NewOnboardingHandler(svc *application.ProfileService, logger *logrus.Logger) *OnboardingHandler {
	return &OnboardingHandler{Svc: svc, Logger: logger}
}

type completeOnboardingRequest struct {
	Email          string   `json:"email" binding:"required"`
	Interests      []string `json:"interests"`
	Modes          []string `json:"modes"`
	UserType       string   `json:"userType" binding:"omitempty,usertype"`
	ContactNumber  string   `json:"contactNumber"`
	City           string   `json:"city"`
	State          string   `json:"state"`
	Country        string   `json:"country"`
	ProfilePicture string   `json:"profilePicture"`
}

type saveAnswersRequest struct {
	UserID    string   `json:"userId" binding:"required"`
	Interests []string `json:"interests"`
}

// CompleteOnboarding POST /api/complete-onboarding
func (h *OnboardingHandler) CompleteOnboarding(c *gin.Context) {
	var req completeOnboardingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	a, err := h.Svc.UpdateProfile(c.Request.Context(), req.Email, application.ProfilePatch{
		Interests:      req.Interests,
		Modes:          req.Modes,
		UserType:       req.UserType,
		ContactNumber:  req.ContactNumber,
		City:           req.City,
		State:          req.State,
		Country:        req.Country,
		ProfilePicture: req.ProfilePicture,
	})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, toView(a), "Onboarding complete! Profile updated successfully.", nil)
}

// SaveAnswers POST /api/onboarding/save-answers
func (h *OnboardingHandler) SaveAnswers(c *gin.Context) {
	var req saveAnswersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	a, err := h.Svc.SaveInterests(c.Request.Context(), req.UserID, req.Interests)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, toView(a), "Interests saved", nil)
}

// UserByEmail GET /api/onboarding/user-by-email?email=
func (h *OnboardingHandler) UserByEmail(c *gin.Context) {
	a, err := h.Svc.GetProfile(c.Request.Context(), c.Query("email"))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, toView(a), "profile", nil)
}

// Search GET /api/users/search?q=&size=
func (h *OnboardingHandler) Search(c *gin.Context) {
	size, _ := strconv.Atoi(c.Query("size"))
	hits, err := h.Svc.SearchProfiles(c.Request.Context(), c.Query("q"), size)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"results": hits}, "search results", map[string]any{"count": len(hits)})
}

// UploadPicture POST /api/profile/picture (multipart: email, file)
func (h *OnboardingHandler) UploadPicture(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxPictureBytes+1<<20)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(c, h.Logger, tooLarge())
			return
		}
		writeError(c, h.Logger, &application.ValidationError{Fields: map[string]string{"file": "is required"}})
		return
	}
	if fh.Size > MaxPictureBytes {
		writeError(c, h.Logger, tooLarge())
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	defer f.Close()

	// Trust the bytes, not the client's Content-Type.
	br := bufio.NewReaderSize(f, 512)
	head, _ := br.Peek(512)
	contentType := http.DetectContentType(head)

	a, err := h.Svc.UploadPicture(c.Request.Context(), c.PostForm("email"), br, fh.Filename, contentType)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, toView(a), "profile picture updated", nil)
}

func tooLarge() error {
	return &application.ValidationError{Fields: map[string]string{"file": "must be at most 5 MiB"}}
}
