package middleware

import (
	"net/http"
	"strings"

	"github.com/SkylabMak/personalWebService/internal/token"

	"github.com/labstack/echo/v4"
)

const (
	CtxUserIDKey   = "user_id"   // string（uuid）
	CtxUserRoleKey = "user_role" // string
	CtxTokenIDKey  = "token_id"  // string（jti）
)

// bearerAuth用のJWT検証ミドルウェア。
// ヘッダ無し・Bearer以外・検証失敗は全て401でhandlerに入れない。
// 署名を信頼してDBには行かない（失効は期限切れまで検知できない設計）
func AuthJWT(tokens *token.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			//Authorizationヘッダを取得
			authz := c.Request().Header.Get("Authorization")
			if authz == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//Bearer形式か確認してtokenを抜く（スキームは厳密一致）
			if !strings.HasPrefix(authz, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}
			rawToken := strings.TrimSpace(authz[len("Bearer "):])
			if rawToken == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//署名と期限を検証する
			claims, err := tokens.VerifyAccessToken(rawToken)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//contextへ保存
			c.Set(CtxUserIDKey, claims.Subject)
			c.Set(CtxUserRoleKey, claims.Role)
			c.Set(CtxTokenIDKey, claims.ID)

			return next(c)
		}
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Error: msg}
}
