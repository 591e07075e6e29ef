package mqtt

import "fmt"

// Subscribe routes messages matching topic (wildcards allowed) to handler
// and remembers the subscription so it is replayed after a reconnect.
// Subscribing again to the same topic replaces the handler.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := validate(topic, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.mu.Lock()
	prev, had := c.subs[topic]
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()

	if err := await(c.paho.Subscribe(topic, qos, c.wrapHandler(handler)), opTimeout, ErrSubscribeFailed); err != nil {
		c.mu.Lock()
		if had {
			c.subs[topic] = prev
		} else {
			delete(c.subs, topic)
		}
		c.mu.Unlock()
		return err
	}
	return nil
}

// Unsubscribe stops routing topic and forgets it. Messages already in
// flight may still be delivered.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.mu.Lock()
	delete(c.subs, topic)
	c.mu.Unlock()

	return await(c.paho.Unsubscribe(topic), opTimeout, ErrUnsubscribeFailed)
}
