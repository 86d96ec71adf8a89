package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/server/auth"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
	"github.com/goccy/go-json"
)

type ctxKey string

const accountIDKey ctxKey = "accountID"

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var httpStatus = map[string]int{
	common.CodeInvalidCursor:   http.StatusBadRequest,
	common.CodeValidation:      http.StatusBadRequest,
	common.CodeUnknownEntity:   http.StatusNotFound,
	common.CodeNotFound:        http.StatusNotFound,
	common.CodeUnauthorized:    http.StatusUnauthorized,
	common.CodeStorage:         http.StatusServiceUnavailable,
	common.CodeRequestCanceled: 499,
	common.CodeInternal:        http.StatusInternalServerError,
}

func (s *Server) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			s.writeError(r.Context(), w, common.ErrorUnauthorized)
			return
		}
		accountID, err := auth.AccountIDFromToken(token, s.jwtSecret)
		if err != nil {
			s.writeError(r.Context(), w, err)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), accountIDKey, accountID)))
	})
}

func accountID(ctx context.Context) string {
	id, _ := ctx.Value(accountIDKey).(string)
	return id
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "OK"})
}

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	limit, err := models.ParseLimit(q.Get("limit"))
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}

	params, err := models.PullRequest{
		Since:  q.Get("since"),
		Cursor: q.Get("cursor"),
		Limit:  limit,
		Scope:  q.Get("scope"),
	}.Params()
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}

	res, err := s.sync.Pull(ctx, accountID(ctx), r.PathValue("entity"), params)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}

	s.writeJSON(ctx, w, http.StatusOK, res.Wire())
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.PushRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(ctx, w, common.Invalid("body", "malformed JSON: %v", err))
		return
	}

	results, err := s.sync.Push(ctx, accountID(ctx), r.PathValue("entity"), req.Mutations)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}

	s.writeJSON(ctx, w, http.StatusOK, models.PushResponse{
		Results:    results,
		ServerTime: models.FormatTime(s.clock.Now()),
	})
}

func (s *Server) writeJSON(ctx context.Context, w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn(ctx, "write response", "error", err)
	}
}

func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	code := common.ErrorCode(err)

	msg := err.Error()
	switch code {
	case common.CodeInternal:
		s.logger.Error(ctx, "request failed", "error", err)
		msg = common.ErrorInternal.Error()
	case common.CodeStorage:
		s.logger.Error(ctx, "request failed", "error", err)
		msg = common.ErrorStorage.Error()
	default:
		s.logger.Debug(ctx, "request refused", "error", err)
	}

	s.writeJSON(ctx, w, httpStatus[code], errorResponse{Error: code, Message: msg})
}
