package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/qrave1/RoomCall/internal/application/metric"
)

// PrometheusMiddleware собирает метрики HTTP запросов по шаблону маршрута
func PrometheusMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			if status == 0 {
				status = http.StatusOK
			}

			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else if status < http.StatusBadRequest {
					status = http.StatusInternalServerError
				}
			}

			endpoint := c.Path()
			if endpoint == "" {
				endpoint = "unmatched"
			}

			metric.RecordHTTPMetrics(c.Request().Method, endpoint, status, time.Since(start))

			return err
		}
	}
}
