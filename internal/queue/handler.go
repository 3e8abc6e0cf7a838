package queue

import (
	"github.com/OFFIS-RIT/graph-explorer/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// RetriesHeader counts how often a message went through the retry queue.
const RetriesHeader = "x-retries"

// Retries returns the retry count recorded on msg.
func Retries(headers amqp091.Table) int {
	switch v := headers[RetriesHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// HandleResult acknowledges msg on success. Failed messages are republished
// to the queue's _retry queue while retryable and below MaxRetries, and to
// its _dlq queue otherwise. If republishing fails the message is requeued.
func HandleResult(ch publisher, msg amqp091.Delivery, queueName string, processingErr error) {
	if processingErr == nil {
		if err := msg.Ack(false); err != nil {
			logger.Error("[Queue] Failed to ack message", "err", err)
		}
		return
	}

	retries := Retries(msg.Headers)
	if !IsRetryable(processingErr) || retries >= MaxRetries {
		dlqName := queueName + "_dlq"
		logger.Info("[Queue] Sending message to DLQ", "dlq", dlqName, "retries", retries)
		republish(ch, msg, dlqName, msg.Headers)
		return
	}

	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[RetriesHeader] = int32(retries + 1)
	republish(ch, msg, queueName+"_retry", headers)
}

func republish(ch publisher, msg amqp091.Delivery, target string, headers amqp091.Table) {
	err := ch.Publish(
		"",
		target,
		false,
		false,
		amqp091.Publishing{
			ContentType:  msg.ContentType,
			Body:         msg.Body,
			Headers:      headers,
			DeliveryMode: amqp091.Persistent,
		},
	)
	if err != nil {
		logger.Error("[Queue] Failed to republish message", "queue", target, "err", err)
		if nackErr := msg.Nack(false, true); nackErr != nil {
			logger.Error("[Queue] Failed to nack message", "err", nackErr)
		}
		return
	}
	if err := msg.Ack(false); err != nil {
		logger.Error("[Queue] Failed to ack message", "err", err)
	}
}
