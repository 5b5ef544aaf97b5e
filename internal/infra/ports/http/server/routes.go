package server

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/qrave1/RoomCall/internal/application/config"
	"github.com/qrave1/RoomCall/internal/infra/ports/http/handlers"
	"github.com/qrave1/RoomCall/internal/infra/ports/http/middleware"
)

func New(
	cfg *config.Config,
	roomHandler *handlers.RoomHandler,
	iceHandler *handlers.IceHandler,
	wsHandler *handlers.WebSocketHandler,
) *echo.Echo {
	e := echo.New()

	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(middleware.SlogLogger())
	e.Use(middleware.PrometheusMiddleware())

	// Сигнальный сокет доступен и по старому адресу
	e.GET("/ws", wsHandler.Handle)

	api := e.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ws", wsHandler.Handle)

			v1.GET("/ice", iceHandler.IceServers)

			v1.GET("/rooms", roomHandler.ListRooms)
			v1.GET("/rooms/:id", roomHandler.GetRoom)
			v1.GET("/rooms/:id/journal", roomHandler.Journal)
		}
	}

	if cfg.StaticDir != "" {
		e.Static("/", cfg.StaticDir)
	}

	return e
}
