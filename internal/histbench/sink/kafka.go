// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sink

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// KafkaProducer is a minimal abstraction over a Kafka client.
type KafkaProducer interface {
	Produce(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// KafkaSink publishes one message per record, keyed by configuration so all
// results of one configuration land on the same partition.
type KafkaSink struct {
	producer       KafkaProducer
	topic          string
	defaultTimeout time.Duration
}

func NewKafkaSink(p KafkaProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: p, topic: topic, defaultTimeout: 10 * time.Second}
}

func (k *KafkaSink) Publish(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok && k.defaultTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.defaultTimeout)
		defer cancel()
	}
	headers := map[string]string{"content-type": "application/json"}
	for _, rec := range records {
		b, err := encode(rec)
		if err != nil {
			return err
		}
		if err := k.producer.Produce(ctx, k.topic, []byte(rec.Key()), b, headers); err != nil {
			return errors.Wrapf(err, "kafka produce topic=%s", k.topic)
		}
	}
	return nil
}

func (k *KafkaSink) Close() error {
	if c, ok := k.producer.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// KafkaGoProducer implements KafkaProducer with segmentio/kafka-go.
type KafkaGoProducer struct{ w *kafka.Writer }

func NewKafkaGoProducer(brokers []string) *KafkaGoProducer {
	return &KafkaGoProducer{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}}
}

func (p *KafkaGoProducer) Produce(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	msg := kafka.Message{Topic: topic, Key: key, Value: value}
	for k, v := range headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return p.w.WriteMessages(ctx, msg)
}

func (p *KafkaGoProducer) Close() error { return p.w.Close() }

// LoggingKafkaProducer logs each message instead of producing it. Used when
// no brokers are configured.
type LoggingKafkaProducer struct{ Log logrus.FieldLogger }

func (l LoggingKafkaProducer) Produce(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.Log.WithFields(logrus.Fields{"topic": topic, "key": string(key), "bytes": len(value)}).Info("kafka sink (dry run) produce")
	return nil
}
