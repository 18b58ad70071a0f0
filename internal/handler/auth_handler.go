package handler

import (
	"errors"
	"net/http"

	"github.com/SkylabMak/personalWebService/internal/middleware"
	"github.com/SkylabMak/personalWebService/internal/token"
	"github.com/SkylabMak/personalWebService/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /authのHTTP
type AuthHandler struct {
	uc     *usecase.AuthUsecase
	tokens *token.Service
}

// DI
func NewAuthHandler(uc *usecase.AuthUsecase, tokens *token.Service) *AuthHandler {
	return &AuthHandler{uc: uc, tokens: tokens}
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// /auth/login のリクエストボディ。
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// /auth/refresh, /auth/logout のリクエストボディ。
type refreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// /auth のルートを登録。meだけJWT必須
func (h *AuthHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/auth/login", h.login)
	e.POST("/auth/refresh", h.refresh)
	e.POST("/auth/logout", h.logout)
	e.GET("/auth/me", h.me, middleware.AuthJWT(h.tokens))
}

func (h *AuthHandler) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.Login(c.Request().Context(), usecase.LoginInput{
		Username:  req.Username,
		Password:  req.Password,
		UserAgent: c.Request().Header.Get("User-Agent"),
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *AuthHandler) refresh(c echo.Context) error {
	var req refreshTokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *AuthHandler) logout(c echo.Context) error {
	var req refreshTokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.Logout(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *AuthHandler) me(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.Me(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

// usecaseのエラーをHTTPステータスへ変換
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, usecase.ErrValidation):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, usecase.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	case errors.Is(err, usecase.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	default:
		//500。詳細は返さない
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func getUserIDFromContext(c echo.Context) (string, bool) {
	v := c.Get(middleware.CtxUserIDKey)
	if v == nil {
		return "", false
	}

	id, ok := v.(string)
	if !ok || id == "" {
		return "", false
	}

	return id, true
}
