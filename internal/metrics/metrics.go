// Package metrics provides Prometheus metrics for the thirdeye daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AnalysisCycles counts finished analysis cycles by outcome
	// (success, failure, rate_limited, stale, no_frame).
	AnalysisCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thirdeye_analysis_cycles_total",
			Help: "Total analysis cycles by outcome",
		},
		[]string{"outcome"},
	)

	// TriggersDropped counts triggers rejected by the single-flight guard or
	// issued for a mode that is no longer active.
	TriggersDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thirdeye_triggers_dropped_total",
			Help: "Analysis triggers dropped before issuing a request",
		},
		[]string{"reason"},
	)

	// CycleDuration tracks wall time from trigger to publish.
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "thirdeye_analysis_cycle_duration_seconds",
			Help:    "Analysis cycle duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 3, 5, 8, 13, 21, 34},
		},
	)

	// InFlight is 1 while an analysis request is outstanding.
	InFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thirdeye_analysis_in_flight",
			Help: "Whether an analysis request is currently outstanding",
		},
	)

	// ProviderCalls counts provider attempts by provider and outcome
	// (success, not_configured, empty, http_<status>, error).
	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thirdeye_provider_calls_total",
			Help: "Provider attempts by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	// ProviderLatency tracks per-provider call latency.
	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thirdeye_provider_latency_seconds",
			Help:    "Provider call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// ModeTransitions counts entered modes.
	ModeTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thirdeye_mode_transitions_total",
			Help: "Mode transitions by target mode",
		},
		[]string{"mode"},
	)

	// TorchSwitches counts torch changes by reason (auto_on, auto_off, manual_on, manual_off, idle).
	TorchSwitches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thirdeye_torch_switches_total",
			Help: "Torch state changes by reason",
		},
		[]string{"reason"},
	)

	// Brightness is the most recent luma sample (0-255).
	Brightness = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thirdeye_brightness",
			Help: "Most recent ambient brightness sample",
		},
	)

	// VoiceIntents counts classified utterances by intent.
	VoiceIntents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thirdeye_voice_intents_total",
			Help: "Recognized utterances by classified intent",
		},
		[]string{"intent"},
	)

	// SpeechUtterances counts speech output by result (spoken, preempted, skipped, muted).
	SpeechUtterances = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thirdeye_speech_utterances_total",
			Help: "Speech output requests by result",
		},
		[]string{"result"},
	)

	// EmergencyAlerts counts emergency alerts by result (sent, failed, disabled).
	EmergencyAlerts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thirdeye_emergency_alerts_total",
			Help: "Emergency alerts by result",
		},
		[]string{"result"},
	)

	// ConnectedClients tracks connected event-stream clients per transport.
	ConnectedClients = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "thirdeye_connected_clients",
			Help: "Connected event stream clients",
		},
		[]string{"transport"},
	)

	// CommandsReceived counts incoming commands by transport and kind.
	CommandsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thirdeye_commands_total",
			Help: "Commands received by transport and kind",
		},
		[]string{"transport", "kind"},
	)

	// EventsDropped counts events discarded because a publish buffer was full.
	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thirdeye_events_dropped_total",
			Help: "Outgoing events dropped on a full buffer",
		},
		[]string{"transport"},
	)
)
