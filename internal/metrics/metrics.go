// Package metrics объявляет счётчики Prometheus сервиса пропусков.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "campus_pass"

var (
	// PassTransitions считает переходы пропусков по целевому статусу
	// (created, completed, expired, dropped).
	PassTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pass_transitions_total",
		Help:      "Pass lifecycle transitions by resulting state.",
	}, []string{"transition"})

	// VerifyOutcomes считает результаты сканирования по коду ошибки ("ok" при успехе).
	VerifyOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verify_outcomes_total",
		Help:      "Pass verification attempts by outcome.",
	}, []string{"outcome"})

	// ApproveOutcomes считает результаты подтверждения по коду ошибки.
	ApproveOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "approve_outcomes_total",
		Help:      "Approval attempts by outcome.",
	}, []string{"outcome"})

	// PushDropped считает уведомления, не доставленные из-за переполненной очереди.
	PushDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_dropped_total",
		Help:      "Realtime messages dropped because a client queue was full.",
	})
)
