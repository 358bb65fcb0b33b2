// Package metrics holds the Prometheus collectors for script loading and chat turns.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	statementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbchat_statements_total",
			Help: "Statements submitted to a database handle, by outcome.",
		},
		[]string{"outcome"},
	)
	statementLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dbchat_statement_latency_ms",
			Help:    "Single statement execution latency in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		},
	)
	scriptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbchat_scripts_total",
			Help: "SQL scripts applied to a database, by outcome.",
		},
		[]string{"outcome"},
	)
	uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbchat_uploads_total",
			Help: "Files loaded into a session, by extension.",
		},
		[]string{"ext"},
	)
	questionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbchat_questions_total",
			Help: "Questions handed to the conversation pipeline, by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		statementsTotal,
		statementLatencyMs,
		scriptsTotal,
		uploadsTotal,
		questionsTotal,
	)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func ObserveStatement(elapsed time.Duration, err error) {
	statementsTotal.WithLabelValues(outcome(err)).Inc()
	statementLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func ObserveScript(err error) {
	scriptsTotal.WithLabelValues(outcome(err)).Inc()
}

func ObserveUpload(ext string) {
	uploadsTotal.WithLabelValues(ext).Inc()
}

func ObserveQuestion(err error) {
	questionsTotal.WithLabelValues(outcome(err)).Inc()
}
