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
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// FileSink appends records as JSON lines. Paths ending in ".zst" are written
// as a zstd stream, which is finalized on Close.
type FileSink struct {
	mu   sync.Mutex
	f    *os.File
	zw   *zstd.Encoder
	w    *bufio.Writer
	path string
}

// NewFileSink opens (or creates) path in append mode.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "open result file")
	}
	s := &FileSink{f: f, path: path}
	var out io.Writer = f
	if compressed(path) {
		zw, err := zstd.NewWriter(f)
		if err != nil {
			_ = f.Close()
			return nil, errors.Wrap(err, "zstd writer")
		}
		s.zw = zw
		out = zw
	}
	s.w = bufio.NewWriterSize(out, 64<<10)
	return s, nil
}

func compressed(path string) bool { return strings.HasSuffix(path, ".zst") }

func (s *FileSink) Publish(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		b, err := encode(r)
		if err != nil {
			return err
		}
		if _, err := s.w.Write(append(b, '\n')); err != nil {
			return errors.Wrapf(err, "write %s", s.path)
		}
	}
	return s.w.Flush()
}

// Close flushes and closes the file, ending the zstd frame if any.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.w.Flush()
	if s.zw != nil {
		if cerr := s.zw.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// ReadAll reads every record from a file written by FileSink.
func ReadAll(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var in io.Reader = f
	if compressed(path) {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "zstd reader")
		}
		defer zr.Close()
		in = zr
	}
	var out []Record
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for scanner.Scan() {
		var r Record
		if err := sonic.Unmarshal(scanner.Bytes(), &r); err != nil {
			return out, errors.Wrap(err, "decode record")
		}
		out = append(out, r)
	}
	return out, scanner.Err()
}
