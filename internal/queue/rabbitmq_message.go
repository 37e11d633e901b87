package queue

// Message wraps a Job with its delivery information
type Message struct {
	Job         *Job
	DeliveryTag uint64
	Acker       Acknowledger
}

// Ack acknowledges the message
func (m *Message) Ack() error {
	return m.Acker.Ack(m.DeliveryTag, false)
}

// Nack negatively acknowledges the message. Without requeue it is dead-lettered.
func (m *Message) Nack(requeue bool) error {
	return m.Acker.Nack(m.DeliveryTag, false, requeue)
}
