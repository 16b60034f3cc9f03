package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"shopping-assistant/internal/domain"
	"shopping-assistant/internal/usecase"
)

// API is the application surface the routes dispatch to.
type API interface {
	CreateUser(ctx context.Context, name, email, password string) (domain.User, error)
	Login(ctx context.Context, email, password string) (domain.User, error)
	GetUser(ctx context.Context, id int64) (domain.User, error)
	SetPreferences(ctx context.Context, userID int64, updates []domain.PreferenceUpdate) ([]domain.Preference, error)
	GetPreferences(ctx context.Context, userID int64) ([]domain.Preference, error)
	CreateSession(ctx context.Context, userID int64, intent string) (domain.ShoppingSession, usecase.OpenResult, error)
	ListSessions(ctx context.Context, userID int64) ([]domain.ShoppingSession, error)
	GetSession(ctx context.Context, id int64) (domain.ShoppingSession, error)
	Chat(ctx context.Context, sessionID int64, text string) (usecase.RunResult, error)
	DescribeProduct(ctx context.Context, sessionID int64, productPage string) (usecase.RunResult, error)
	CompareProducts(ctx context.Context, sessionID int64) (usecase.RunResult, error)
	EndSession(ctx context.Context, sessionID int64) (usecase.EndResult, error)
}

// Request is a transport-neutral inbound call.
type Request struct {
	Params map[string]string
	Body   []byte
}

// Route binds a method and an echo path pattern (":name" segments) to
// an operation returning the success status and payload.
type Route struct {
	Method string
	Path   string
	Invoke func(ctx context.Context, req Request) (int, any, error)
}

func buildRoutes(api API) []Route {
	routes := []Route{
		{Method: http.MethodGet, Path: "/healthz", Invoke: func(context.Context, Request) (int, any, error) {
			return http.StatusOK, healthResponse{Status: "ok"}, nil
		}},
		{Method: http.MethodPost, Path: "/api/users", Invoke: func(ctx context.Context, req Request) (int, any, error) {
			var in createUserRequest
			if err := decodeBody(req.Body, &in); err != nil {
				return 0, nil, err
			}
			u, err := api.CreateUser(ctx, in.Name, in.Email, in.Password)
			if err != nil {
				return 0, nil, err
			}
			return http.StatusCreated, toUserResponse(u), nil
		}},
		{Method: http.MethodPost, Path: "/api/login", Invoke: func(ctx context.Context, req Request) (int, any, error) {
			var in loginRequest
			if err := decodeBody(req.Body, &in); err != nil {
				return 0, nil, err
			}
			u, err := api.Login(ctx, in.Email, in.Password)
			if err != nil {
				return 0, nil, err
			}
			return http.StatusOK, toUserResponse(u), nil
		}},
		{Method: http.MethodGet, Path: "/api/users/:user_id", Invoke: func(ctx context.Context, req Request) (int, any, error) {
			id, err := pathID(req, "user_id")
			if err != nil {
				return 0, nil, err
			}
			u, err := api.GetUser(ctx, id)
			if err != nil {
				return 0, nil, err
			}
			return http.StatusOK, toUserResponse(u), nil
		}},
		{Method: http.MethodPost, Path: "/api/users/:user_id/preferences", Invoke: func(ctx context.Context, req Request) (int, any, error) {
			id, err := pathID(req, "user_id")
			if err != nil {
				return 0, nil, err
			}
			var in setPreferencesRequest
			if err := decodeBody(req.Body, &in); err != nil {
				return 0, nil, err
			}
			prefs, err := api.SetPreferences(ctx, id, in.Preferences)
			if err != nil {
				return 0, nil, err
			}
			return http.StatusOK, toPreferencesResponse(id, prefs), nil
		}},
		{Method: http.MethodGet, Path: "/api/users/:user_id/preferences", Invoke: func(ctx context.Context, req Request) (int, any, error) {
			id, err := pathID(req, "user_id")
			if err != nil {
				return 0, nil, err
			}
			prefs, err := api.GetPreferences(ctx, id)
			if err != nil {
				return 0, nil, err
			}
			return http.StatusOK, toPreferencesResponse(id, prefs), nil
		}},
		{Method: http.MethodPost, Path: "/api/users/:user_id/shopping_sessions", Invoke: func(ctx context.Context, req Request) (int, any, error) {
			id, err := pathID(req, "user_id")
			if err != nil {
				return 0, nil, err
			}
			var in createSessionRequest
			if err := decodeBody(req.Body, &in); err != nil {
				return 0, nil, err
			}
			session, opened, err := api.CreateSession(ctx, id, in.Intent)
			if err != nil {
				return 0, nil, err
			}
			return http.StatusCreated, createSessionResponse{Session: toSessionResponse(session), Messages: opened.SeedTurns}, nil
		}},
		{Method: http.MethodGet, Path: "/api/users/:user_id/sessions", Invoke: func(ctx context.Context, req Request) (int, any, error) {
			id, err := pathID(req, "user_id")
			if err != nil {
				return 0, nil, err
			}
			sessions, err := api.ListSessions(ctx, id)
			if err != nil {
				return 0, nil, err
			}
			out := sessionsResponse{Sessions: make([]sessionResponse, 0, len(sessions))}
			for _, s := range sessions {
				out.Sessions = append(out.Sessions, toSessionResponse(s))
			}
			return http.StatusOK, out, nil
		}},
		{Method: http.MethodGet, Path: "/api/shopping_sessions/:session_id", Invoke: func(ctx context.Context, req Request) (int, any, error) {
			id, err := pathID(req, "session_id")
			if err != nil {
				return 0, nil, err
			}
			s, err := api.GetSession(ctx, id)
			if err != nil {
				return 0, nil, err
			}
			return http.StatusOK, toSessionResponse(s), nil
		}},
		{Method: http.MethodPost, Path: "/api/shopping_sessions/:session_id/messages", Invoke: func(ctx context.Context, req Request) (int, any, error) {
			id, err := pathID(req, "session_id")
			if err != nil {
				return 0, nil, err
			}
			var in messageRequest
			if err := decodeBody(req.Body, &in); err != nil {
				return 0, nil, err
			}
			return runReply(api.Chat(ctx, id, in.Message))
		}},
		{Method: http.MethodPost, Path: "/api/shopping_sessions/:session_id/product_description", Invoke: func(ctx context.Context, req Request) (int, any, error) {
			id, err := pathID(req, "session_id")
			if err != nil {
				return 0, nil, err
			}
			var in productDescriptionRequest
			if err := decodeBody(req.Body, &in); err != nil {
				return 0, nil, err
			}
			return runReply(api.DescribeProduct(ctx, id, in.ProductPage))
		}},
		{Method: http.MethodPost, Path: "/api/shopping_sessions/:session_id/product_comparison", Invoke: func(ctx context.Context, req Request) (int, any, error) {
			id, err := pathID(req, "session_id")
			if err != nil {
				return 0, nil, err
			}
			return runReply(api.CompareProducts(ctx, id))
		}},
		{Method: http.MethodPost, Path: "/api/shopping_sessions/:session_id/end", Invoke: func(ctx context.Context, req Request) (int, any, error) {
			id, err := pathID(req, "session_id")
			if err != nil {
				return 0, nil, err
			}
			res, err := api.EndSession(ctx, id)
			if err != nil {
				return 0, nil, err
			}
			return http.StatusOK, toEndSessionResponse(res), nil
		}},
	}
	return routes
}

// runReply reports a run that did not complete as 200 with its status.
func runReply(res usecase.RunResult, err error) (int, any, error) {
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, toRunResponse(res), nil
}

func decodeBody(body []byte, v any) error {
	if len(body) == 0 {
		return &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "empty_body"}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_json", Err: err}
	}
	return nil
}

func pathID(req Request, name string) (int64, error) {
	raw := req.Params[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_" + name, Err: err}
	}
	return id, nil
}
