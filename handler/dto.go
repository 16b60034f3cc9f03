package handler

import (
	"strconv"
	"time"

	"shopping-assistant/internal/domain"
	"shopping-assistant/internal/usecase"
)

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type setPreferencesRequest struct {
	Preferences []domain.PreferenceUpdate `json:"preferences"`
}

type createSessionRequest struct {
	Intent string `json:"intent"`
}

type messageRequest struct {
	Message string `json:"message"`
}

type productDescriptionRequest struct {
	ProductPage string `json:"product_page"`
}

// userResponse never carries the password.
type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type preferenceResponse struct {
	ID    string `json:"id"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

type preferencesResponse struct {
	UserID      string               `json:"user_id"`
	Preferences []preferenceResponse `json:"preferences"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ThreadID  string    `json:"thread_id"`
	Intent    string    `json:"intent"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type createSessionResponse struct {
	Session  sessionResponse  `json:"session"`
	Messages []domain.Message `json:"messages"`
}

type sessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

// runResponse omits messages unless the run completed.
type runResponse struct {
	Status   domain.RunStatus `json:"status"`
	Messages []domain.Message `json:"messages,omitempty"`
}

type endSessionResponse struct {
	UserID      string                    `json:"user_id"`
	Extracted   []domain.PreferenceUpdate `json:"extracted"`
	Preferences []preferenceResponse      `json:"preferences"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{ID: formatID(u.ID), Name: u.Name, Email: u.Email, CreatedAt: u.CreatedAt}
}

func toPreferencesResponse(userID int64, prefs []domain.Preference) preferencesResponse {
	return preferencesResponse{UserID: formatID(userID), Preferences: toPreferenceList(prefs)}
}

func toPreferenceList(prefs []domain.Preference) []preferenceResponse {
	out := make([]preferenceResponse, 0, len(prefs))
	for _, p := range prefs {
		out = append(out, preferenceResponse{ID: formatID(p.ID), Key: p.Key, Value: p.Value})
	}
	return out
}

func toSessionResponse(s domain.ShoppingSession) sessionResponse {
	return sessionResponse{
		ID:        formatID(s.ID),
		UserID:    formatID(s.UserID),
		ThreadID:  s.ThreadID,
		Intent:    s.Intent,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func toRunResponse(res usecase.RunResult) runResponse {
	if !res.Completed() {
		return runResponse{Status: res.Status}
	}
	return runResponse{Status: res.Status, Messages: res.Turns}
}

func toEndSessionResponse(res usecase.EndResult) endSessionResponse {
	extracted := res.Extracted
	if extracted == nil {
		extracted = []domain.PreferenceUpdate{}
	}
	return endSessionResponse{
		UserID:      formatID(res.UserID),
		Extracted:   extracted,
		Preferences: toPreferenceList(res.Preferences),
	}
}
