package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/lnkday/automation-service/internal/domain"
	"github.com/lnkday/automation-service/internal/engine"
)

const (
	linkEventsExchange  = "link.events"
	clickEventsExchange = "click.events"

	reconnectDelay = 5 * time.Second
)

// workflowRunner is the slice of the orchestrator the listener needs.
type workflowRunner interface {
	Run(ctx context.Context, wf *domain.WorkflowDefinition, triggerEvent string, payload map[string]interface{}) (*domain.ExecutionLog, error)
}

// definitionRepo is the slice of the definition repository the listener needs.
type definitionRepo interface {
	FindEnabledByTriggerType(t domain.TriggerType) (*[]domain.WorkflowDefinition, error)
}

// Listener consumes platform events from RabbitMQ and dispatches each one to
// every enabled event-triggered workflow whose trigger matches. Workflow runs
// for one event execute concurrently; the delivery is acked only after all of
// them settle, so a crash mid-dispatch redelivers the event.
type Listener struct {
	url         string
	queue       string
	prefetch    int
	runner      workflowRunner
	definitions definitionRepo
}

func NewListener(url string, queue string, prefetch int, runner workflowRunner, definitions definitionRepo) *Listener {
	return &Listener{
		url:         url,
		queue:       queue,
		prefetch:    prefetch,
		runner:      runner,
		definitions: definitions,
	}
}

// Start consumes until ctx is cancelled, reconnecting with a fixed delay
// whenever the connection or channel drops.
func (l *Listener) Start(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := l.consume(ctx); err != nil {
			slog.Error("Event consumer stopped, reconnecting", "error", err, "delay", reconnectDelay)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (l *Listener) consume(ctx context.Context) error {
	conn, err := amqp.Dial(l.url)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	for _, exchange := range []string{linkEventsExchange, clickEventsExchange} {
		if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
			return err
		}
	}
	q, err := ch.QueueDeclare(l.queue, true, false, false, false, nil)
	if err != nil {
		return err
	}
	for _, exchange := range []string{linkEventsExchange, clickEventsExchange} {
		if err := ch.QueueBind(q.Name, "#", exchange, false, nil); err != nil {
			return err
		}
	}
	if err := ch.Qos(l.prefetch, 0, false); err != nil {
		return err
	}

	deliveries, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	slog.Info("Event consumer started", "queue", q.Name, "prefetch", l.prefetch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return amqp.ErrClosed
			}
			l.handleDelivery(ctx, d)
		}
	}
}

func (l *Listener) handleDelivery(ctx context.Context, d amqp.Delivery) {
	var event domain.Event
	if err := json.Unmarshal(d.Body, &event); err != nil {
		slog.Warn("Dropping malformed event", "routing_key", d.RoutingKey, "error", err)
		if err := d.Nack(false, false); err != nil {
			slog.Error("Failed to nack malformed event", "error", err)
		}
		return
	}
	if event.Type == "" {
		slog.Warn("Dropping event without a type", "routing_key", d.RoutingKey)
		if err := d.Nack(false, false); err != nil {
			slog.Error("Failed to nack event", "error", err)
		}
		return
	}

	if err := l.Dispatch(ctx, &event); err != nil {
		// Leave the delivery unacked so the broker redelivers it once the
		// store is reachable again.
		slog.Error("Failed to dispatch event, leaving unacked", "event_id", event.ID, "error", err)
		return
	}

	if err := d.Ack(false); err != nil {
		slog.Error("Failed to ack event", "event_id", event.ID, "error", err)
	}
}

// Dispatch runs every matching enabled workflow for one event and waits for
// all of them. One workflow's failure never affects the others; each run
// records its own execution log. An error means no workflow was even looked
// up, so the caller must not ack the delivery.
func (l *Listener) Dispatch(ctx context.Context, event *domain.Event) error {
	defs, err := l.definitions.FindEnabledByTriggerType(domain.TriggerEvent)
	if err != nil {
		return fmt.Errorf("loading event-triggered workflows for %s: %w", event.Type, err)
	}

	payload := eventPayload(event)

	var wg sync.WaitGroup
	matched := 0
	for i := range *defs {
		wf := (*defs)[i]
		if !Matches(&wf, event) {
			continue
		}
		matched++
		wg.Add(1)
		go func(wf domain.WorkflowDefinition) {
			defer wg.Done()
			if _, err := l.runner.Run(ctx, &wf, event.Type, payload); err != nil {
				slog.Error("Event-triggered workflow run failed to record", "workflow_id", wf.ID, "event_type", event.Type, "error", err)
			}
		}(wf)
	}
	wg.Wait()

	if matched > 0 {
		slog.Debug("Event dispatched", "event_type", event.Type, "event_id", event.ID, "workflows", matched)
	}
	return nil
}

// Matches reports whether wf's event trigger applies to event: the event type
// must equal the configured one and every trigger filter must hold. Filter
// fields use the same envelope-rooted paths as workflow conditions, so a
// filter on the event body is written "data.country".
func Matches(wf *domain.WorkflowDefinition, event *domain.Event) bool {
	cfg := wf.Trigger.Config
	if cfg.EventType != event.Type {
		return false
	}
	if len(cfg.Filters) == 0 {
		return true
	}
	conditions := make([]domain.Condition, 0, len(cfg.Filters))
	for field, value := range cfg.Filters {
		conditions = append(conditions, domain.Condition{Field: field, Operator: "eq", Value: value})
	}
	return engine.EvaluateConditions(conditions, eventPayload(event))
}

// eventPayload is what workflow conditions and templates see: the event body
// nested under data, envelope metadata under _event. Conditions address the
// body as "data.<field>".
func eventPayload(event *domain.Event) map[string]interface{} {
	data := event.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	return map[string]interface{}{
		"data": data,
		"_event": map[string]interface{}{
			"id":        event.ID,
			"type":      event.Type,
			"source":    event.Source,
			"timestamp": event.Timestamp.UTC().Format(time.RFC3339),
		},
	}
}
