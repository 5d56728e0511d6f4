package metrics

import "github.com/prometheus/client_golang/prometheus"

// DomainMetrics counts notification and AI outcomes.
type DomainMetrics struct {
	dispatch *prometheus.CounterVec
	push     *prometheus.CounterVec
	email    *prometheus.CounterVec
	ai       *prometheus.CounterVec
}

func NewDomainMetrics(reg prometheus.Registerer) *DomainMetrics {
	if reg == nil {
		return &DomainMetrics{}
	}
	dispatch := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "studyhub_notifications_sent_total",
		Help: "Notifications broadcast by the backend, by email fan-out result.",
	}, []string{"email"})
	push := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "studyhub_push_messages_total",
		Help: "Push deliveries by result (success, failure, pruned).",
	}, []string{"result"})
	email := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "studyhub_emails_total",
		Help: "Fan-out emails by result.",
	}, []string{"result"})
	ai := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "studyhub_ai_generations_total",
		Help: "AI generation calls by action and completion parse outcome.",
	}, []string{"action", "parse"})
	reg.MustRegister(dispatch, push, email, ai)
	return &DomainMetrics{dispatch: dispatch, push: push, email: email, ai: ai}
}

// NotificationSent records one broadcast. email is "queued", "skipped" or "failed".
func (d *DomainMetrics) NotificationSent(email string) {
	if d == nil || d.dispatch == nil {
		return
	}
	d.dispatch.WithLabelValues(normalizeLabel(email)).Add(1)
}

// PushResult adds n deliveries with the given result.
func (d *DomainMetrics) PushResult(result string, n int) {
	if d == nil || d.push == nil || n <= 0 {
		return
	}
	d.push.WithLabelValues(normalizeLabel(result)).Add(float64(n))
}

// EmailResult records one fan-out email.
func (d *DomainMetrics) EmailResult(result string) {
	if d == nil || d.email == nil {
		return
	}
	d.email.WithLabelValues(normalizeLabel(result)).Inc()
}

// AIGeneration records one completion call. parse is "parsed", "malformed" or "chat".
func (d *DomainMetrics) AIGeneration(action, parse string) {
	if d == nil || d.ai == nil {
		return
	}
	d.ai.WithLabelValues(normalizeLabel(action), normalizeLabel(parse)).Inc()
}
