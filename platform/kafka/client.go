// Package kafka wraps franz-go with the consumer error policy and keyed
// JSON producer used by the service.
package kafka

import (
	"crypto/tls"
	"fmt"

	"manuell_oppgave_backend/platform/config"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"
)

// baseOpts returns the connection options shared by consumers and producers.
func baseOpts(cfg config.KafkaConfig) []kgo.Opt {
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.GetKafkaBrokers()...),
	}
	if cfg.GetKafkaTLS() {
		opts = append(opts, kgo.DialTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12}))
	}
	if cfg.GetKafkaUsername() != "" {
		opts = append(opts, kgo.SASL(plain.Auth{
			User: cfg.GetKafkaUsername(),
			Pass: cfg.GetKafkaPassword(),
		}.AsMechanism()))
	}
	return opts
}

// NewConsumerClient creates a member of group consuming a single topic with
// manual commits. New groups start from the earliest offset. Each topic gets
// its own group so the committed offsets of one never move the other.
func NewConsumerClient(cfg config.KafkaConfig, group, topic string, extra ...kgo.Opt) (*kgo.Client, error) {
	if group == "" {
		return nil, fmt.Errorf("consumer group for topic %s is empty", topic)
	}
	opts := append(baseOpts(cfg),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	return kgo.NewClient(append(opts, extra...)...)
}

// NewProducerClient creates a client for synchronous produces.
func NewProducerClient(cfg config.KafkaConfig, extra ...kgo.Opt) (*kgo.Client, error) {
	opts := append(baseOpts(cfg),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	return kgo.NewClient(append(opts, extra...)...)
}
