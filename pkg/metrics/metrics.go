package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	InventoryMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_messages_total",
			Help: "Total number of inventory events handled, by route and outcome (count)",
		},
		[]string{"route", "outcome"},
	)

	MessageProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inventory_message_processing_duration_ms",
			Help:    "Processing duration of one inventory event in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"route"},
	)

	ValidationResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upload_validation_results_total",
			Help: "Total number of validation results produced, by code (count)",
		},
		[]string{"validation"},
	)

	ReportDownloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_downloads_total",
			Help: "Total number of report bundle downloads, by store and status (count)",
		},
		[]string{"store", "status"},
	)

	ReportsParsedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reports_parsed_total",
			Help: "Total number of report blobs parsed, by status (count)",
		},
		[]string{"status"},
	)

	ComplianceEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compliance_evaluations_total",
			Help: "Total number of compliance evaluations, by verdict (count)",
		},
		[]string{"verdict"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Total number of notifications dispatched, by kind and status (count)",
		},
		[]string{"kind", "status"},
	)

	DeletionJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deletion_jobs_total",
			Help: "Total number of host deletion jobs, by stage and status (count)",
		},
		[]string{"stage", "status"},
	)

	ConsumerRestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_restarts_total",
			Help: "Total number of consumer sessions restarted to redeliver uncommitted messages (count)",
		},
		[]string{"topic"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaConsumerLag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kafka_consumer_lag",
			Help: "Kafka consumer lag (difference between latest offset and committed offset) (count)",
		},
		[]string{"service", "topic", "partition"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries (count)",
		},
		[]string{"store", "operation", "status"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_ms",
			Help:    "Duration of database queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"store", "operation"},
	)
)

func RegisterIngestMetrics() {
	prometheus.MustRegister(InventoryMessagesTotal)
	prometheus.MustRegister(MessageProcessingDuration)
	prometheus.MustRegister(ValidationResultsTotal)
	prometheus.MustRegister(ReportDownloadsTotal)
	prometheus.MustRegister(ReportsParsedTotal)
	prometheus.MustRegister(ComplianceEvaluationsTotal)
	prometheus.MustRegister(NotificationsTotal)
	prometheus.MustRegister(DeletionJobsTotal)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(ConsumerRestartsTotal)
	prometheus.MustRegister(KafkaMessagesReadTotal)
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
	prometheus.MustRegister(KafkaConsumerLag)
	prometheus.MustRegister(KafkaWriteDuration)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func RegisterDatabaseMetrics() {
	prometheus.MustRegister(DatabaseQueriesTotal)
	prometheus.MustRegister(DatabaseQueryDuration)
}

func IncInventoryMessage(route, outcome string) {
	InventoryMessagesTotal.WithLabelValues(route, outcome).Inc()
}

func ObserveMessageDuration(route string, duration time.Duration) {
	MessageProcessingDuration.WithLabelValues(route).Observe(float64(duration.Milliseconds()))
}

func IncValidationResult(validation string) {
	ValidationResultsTotal.WithLabelValues(validation).Inc()
}

func IncReportDownload(store, status string) {
	ReportDownloadsTotal.WithLabelValues(store, status).Inc()
}

func IncReportParsed(status string) {
	ReportsParsedTotal.WithLabelValues(status).Inc()
}

func IncComplianceEvaluation(verdict string) {
	ComplianceEvaluationsTotal.WithLabelValues(verdict).Inc()
}

func IncNotification(kind, status string) {
	NotificationsTotal.WithLabelValues(kind, status).Inc()
}

func IncDeletionJob(stage, status string) {
	DeletionJobsTotal.WithLabelValues(stage, status).Inc()
}

func IncConsumerRestart(topic string) {
	ConsumerRestartsTotal.WithLabelValues(topic).Inc()
}

func IncKafkaMessagesRead(service, topic string) {
	KafkaMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func SetKafkaConsumerLag(service, topic string, partition int, lag int64) {
	KafkaConsumerLag.WithLabelValues(service, topic, strconv.Itoa(partition)).Set(float64(lag))
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}

func IncDatabaseQuery(store, operation, status string) {
	DatabaseQueriesTotal.WithLabelValues(store, operation, status).Inc()
}

func ObserveDatabaseQueryDuration(store, operation string, duration time.Duration) {
	DatabaseQueryDuration.WithLabelValues(store, operation).Observe(float64(duration.Milliseconds()))
}
