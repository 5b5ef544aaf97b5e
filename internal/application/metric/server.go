package metric

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsFunc - текущее число живых комнат и участников
type StatsFunc func() (rooms, participants int)

type healthResponse struct {
	Status       string `json:"status"`
	Rooms        int    `json:"rooms"`
	Participants int    `json:"participants"`
}

// NewServer создает сервер метрик. /health отдает живые счетчики из каталога комнат.
func NewServer(stats StatsFunc) *echo.Echo {
	e := echo.New()

	e.HideBanner = true
	e.HidePort = true

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.GET("/health", func(c echo.Context) error {
		resp := healthResponse{Status: "ok"}
		if stats != nil {
			resp.Rooms, resp.Participants = stats()
		}

		return c.JSON(http.StatusOK, resp)
	})

	return e
}
