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

	"github.com/pkg/errors"
	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisStreamer is the one call RedisSink needs from a Redis client.
type RedisStreamer interface {
	XAdd(ctx context.Context, stream string, values map[string]any) error
}

// RedisSink appends each record to a Redis stream as a single "record" field
// holding its JSON encoding.
type RedisSink struct {
	client RedisStreamer
	stream string
}

func NewRedisSink(client RedisStreamer, stream string) *RedisSink {
	return &RedisSink{client: client, stream: stream}
}

func (r *RedisSink) Publish(ctx context.Context, records []Record) error {
	for _, rec := range records {
		b, err := encode(rec)
		if err != nil {
			return err
		}
		values := map[string]any{"key": rec.Key(), "record": string(b)}
		if err := r.client.XAdd(ctx, r.stream, values); err != nil {
			return errors.Wrapf(err, "redis xadd stream=%s", r.stream)
		}
	}
	return nil
}

func (r *RedisSink) Close() error {
	if c, ok := r.client.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// GoRedisStreamer implements RedisStreamer with go-redis.
type GoRedisStreamer struct{ c *redis.Client }

func NewGoRedisStreamer(addr string) *GoRedisStreamer {
	return &GoRedisStreamer{c: redis.NewClient(&redis.Options{Addr: addr})}
}

func (g *GoRedisStreamer) XAdd(ctx context.Context, stream string, values map[string]any) error {
	return g.c.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: values}).Err()
}

func (g *GoRedisStreamer) Close() error { return g.c.Close() }

// LoggingRedisStreamer logs each XADD instead of sending it. Used when no
// Redis address is configured.
type LoggingRedisStreamer struct{ Log logrus.FieldLogger }

func (l LoggingRedisStreamer) XAdd(ctx context.Context, stream string, values map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.Log.WithField("stream", stream).WithField("key", values["key"]).Info("redis sink (dry run) XADD")
	return nil
}
