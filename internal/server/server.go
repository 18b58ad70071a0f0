package server

import (
	"net/http"

	"github.com/SkylabMak/personalWebService/internal/handler"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// Newはルート登録済みのechoインスタンスを返す
func New(authH *handler.AuthHandler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomw.Recover())

	//liveness
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	authH.RegisterRoutes(e)

	return e
}

// Startはサーバーを起動する
func Start(e *echo.Echo, addr string) error {
	return e.Start(addr)
}
