package events

type ProducerOptions func(e *EventProducer)

func WithOutputTopic(topic string) ProducerOptions {
	return func(e *EventProducer) {
		e.topic = topic
	}
}

func WithSource(source string) ProducerOptions {
	return func(e *EventProducer) {
		e.source = source
	}
}

// WithBufferLimit bounds the number of pending events. Zero means unbounded.
func WithBufferLimit(limit int) ProducerOptions {
	return func(e *EventProducer) {
		e.buffer = newBuffer(limit)
	}
}
