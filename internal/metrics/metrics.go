package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var SubmissionsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "wall_submissions_created_total",
	Help: "Submissions created when an aggregation window closed",
}, []string{"group"})

var MessagesAdmitted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "wall_messages_admitted_total",
	Help: "Inbound messages by admission result",
}, []string{"group", "result"})

var StageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "wall_pipeline_stage_failures_total",
	Help: "Processing stage failures",
}, []string{"group", "stage"})

var StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "wall_pipeline_stage_duration_seconds",
	Help:    "Time spent in one processing stage",
	Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
}, []string{"stage"})

var AuditCommands = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "wall_audit_commands_total",
	Help: "Moderator commands by kind and outcome",
}, []string{"group", "command", "outcome"})

var Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "wall_publish_deliveries_total",
	Help: "Publish attempts by platform and result",
}, []string{"group", "platform", "result"})

var Flushes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "wall_publish_flushes_total",
	Help: "Publish cycles by trigger",
}, []string{"group", "trigger"})

var QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "wall_stored_posts",
	Help: "Approved posts waiting for publication",
}, []string{"group"})
