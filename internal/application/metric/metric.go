package metric

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP метрики - количество запросов
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Общее количество HTTP запросов",
		},
		[]string{"method", "endpoint", "status"},
	)

	// HTTP метрики - время обработки запросов
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Время обработки HTTP запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	// HTTP метрики - количество ошибок
	httpErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Общее количество HTTP ошибок",
		},
		[]string{"method", "endpoint", "status"},
	)

	// WS метрики - количество активных соединений
	wsActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_active_connections",
			Help: "Количество активных WebSocket соединений",
		},
	)

	// Сигнальные сообщения по типу
	signalingMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signaling_messages_total",
			Help: "Количество входящих сигнальных сообщений",
		},
		[]string{"type"},
	)

	// Сообщения, которые не удалось доставить адресату
	relayDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_dropped_total",
			Help: "Количество отброшенных пересылок",
		},
		[]string{"type"},
	)

	activeRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rooms_active",
			Help: "Количество непустых комнат",
		},
	)

	activeParticipants = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "participants_active",
			Help: "Количество участников во всех комнатах",
		},
	)
)

// RecordHTTPMetrics записывает метрики HTTP запроса
func RecordHTTPMetrics(method, endpoint string, status int, duration time.Duration) {
	strStatus := strconv.Itoa(status)

	httpRequestsTotal.WithLabelValues(method, endpoint, strStatus).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, strStatus).Observe(duration.Seconds())

	// Записываем ошибки (статус >= 400)
	if status >= 400 {
		httpErrorsTotal.WithLabelValues(method, endpoint, strStatus).Inc()
	}
}

func IncrementWSActiveConnections() {
	wsActiveConnections.Inc()
}

func DecrementWSActiveConnections() {
	wsActiveConnections.Dec()
}

func RecordSignalingMessage(msgType string) {
	signalingMessagesTotal.WithLabelValues(msgType).Inc()
}

func RecordRelayDropped(msgType string) {
	relayDroppedTotal.WithLabelValues(msgType).Inc()
}

// SetRoomStats выставляет текущие размеры таблицы комнат
func SetRoomStats(rooms, participants int) {
	activeRooms.Set(float64(rooms))
	activeParticipants.Set(float64(participants))
}
