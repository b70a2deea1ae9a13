package mqtt

import (
	"chromecast2mqtt/internal/broker"
	"chromecast2mqtt/internal/metrics"
)

// qosAtMostOnce is fire-and-forget delivery
const qosAtMostOnce byte = 0

// Topic returns the full topic for a suffix under the configured base
func (c *Connection) Topic(suffix string) string {
	return c.cfg.TopicBase + "/" + suffix
}

// Publish sends payload to <topic base>/<topicSuffix> at QoS 0 and waits
// until the client has handed it to the transport. Failures are logged and
// counted, never returned.
func (c *Connection) Publish(topicSuffix string, payload string, retain bool) {
	topic := c.Topic(topicSuffix)

	if c.State() == broker.StateClosed {
		c.recordPublishError(topicSuffix)
		c.logger.Error("failed to publish message",
			"topic", topic,
			"error", broker.ErrClosed)
		return
	}

	token := c.client.Publish(topic, qosAtMostOnce, retain, payload)
	if token.Wait() && token.Error() != nil {
		c.recordPublishError(topicSuffix)
		c.logger.Error("failed to publish message",
			"topic", topic,
			"payload", payload,
			"error", token.Error())
		return
	}

	c.safeMetricsUpdate(func(m *metrics.Metrics) {
		m.IncPublishesTotal(topicSuffix, "success")
	})

	c.logger.Info("published value",
		"topic", topic,
		"payload", payload,
		"retain", retain)
}

func (c *Connection) recordPublishError(topicSuffix string) {
	if c.stats != nil {
		c.stats.IncPublishErrors()
	}
	c.safeMetricsUpdate(func(m *metrics.Metrics) {
		m.IncPublishesTotal(topicSuffix, "error")
	})
}
