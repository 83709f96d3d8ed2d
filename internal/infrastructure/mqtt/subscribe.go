package mqtt

import "fmt"

// Subscribe registers handler for topic, which may contain the + and #
// wildcards; the bridge subscribes once to upnp/command/+/+ for every
// local service. The subscription is tracked and restored after each
// reconnect.
//
// paho runs handlers on its router goroutine, so a handler that invokes
// a slow device action delays later commands.
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected or
//     ErrSubscribeFailed. A failed subscription is not tracked.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := validate(topic, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: %s: nil handler", ErrSubscribeFailed, topic)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.track(subscription{topic: topic, qos: qos, handler: handler})
	if err := await(c.paho.Subscribe(topic, qos, c.wrapHandler(handler)), ErrSubscribeFailed, topic); err != nil {
		c.untrack(topic)
		return err
	}
	return nil
}

// Unsubscribe drops topic from the broker and from the restore list. The
// bridge calls it on Stop; a command already in flight may still arrive.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.untrack(topic)
	return await(c.paho.Unsubscribe(topic), ErrUnsubscribeFailed, topic)
}

func (c *Client) track(sub subscription) {
	c.mu.Lock()
	c.subscriptions[sub.topic] = sub
	c.mu.Unlock()
}

func (c *Client) untrack(topic string) {
	c.mu.Lock()
	delete(c.subscriptions, topic)
	c.mu.Unlock()
}
