/*
Package events provides an in-memory broker for operational notifications
emitted by the checkpoint pipeline: checkpoint.completed, checkpoint.failed
and backup.completed.

These events carry no transactional meaning and play no part in a
procedure's commit or rollback path. They exist purely for external
tooling (the admin CLI, an operator's log shipper) to observe checkpoint
and backup activity without polling.

# Architecture

	┌──────────────── EVENT BROKER ────────────────┐
	│                                                │
	│   Publish(event)                              │
	│        │                                      │
	│        ▼                                      │
	│   buffered eventCh (100)                      │
	│        │                                      │
	│        ▼                                      │
	│   broadcast to every Subscriber channel       │
	│   (non-blocking: a full subscriber is skipped)│
	│                                                │
	└────────────────────────────────────────────────┘

Subscribe returns a buffered Subscriber channel; Unsubscribe closes it.
Publish never blocks on a slow subscriber — a subscriber that falls
behind simply misses events until it drains.

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			log.Info().Str("type", string(event.Type)).Msg(event.Message)
		}
	}()

	broker.Publish(&events.Event{
		Type:    events.EventCheckpointCompleted,
		Message: "checkpoint finished",
		Metadata: map[string]string{"table": "accounts"},
	})
*/
package events
