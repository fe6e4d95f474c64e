// Copyright 2025 Poiesic Systems
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


package core

import (
	"sort"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// Hand-written MUS serializers for the stored record types. Field order is
// part of the storage format; append new fields at the end only.

// KeyMUS serializes content Keys.
var KeyMUS = keyMUS{}

type keyMUS struct{}

func (keyMUS) Marshal(k Key, bs []byte) int {
	return varint.Uint64.Marshal(uint64(k), bs)
}

func (keyMUS) Unmarshal(bs []byte) (Key, int, error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return Key(v), n, err
}

func (keyMUS) Size(k Key) int {
	return varint.Uint64.Size(uint64(k))
}

// MetricSetMUS serializes metric maps with sorted keys, so identical metric
// sets always produce identical bytes.
var MetricSetMUS = metricSetMUS{}

type metricSetMUS struct{}

func (metricSetMUS) Marshal(m MetricSet, bs []byte) int {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	n := varint.Int64.Marshal(int64(len(names)), bs)
	for _, name := range names {
		n += ord.String.Marshal(name, bs[n:])
		n += raw.Float64.Marshal(m[name], bs[n:])
	}
	return n
}

func (metricSetMUS) Unmarshal(bs []byte) (MetricSet, int, error) {
	count, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	m := make(MetricSet, count)
	for i := int64(0); i < count; i++ {
		name, n1, err := ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
		v, n2, err := raw.Float64.Unmarshal(bs[n:])
		n += n2
		if err != nil {
			return nil, n, err
		}
		m[name] = v
	}
	return m, n, nil
}

func (metricSetMUS) Size(m MetricSet) int {
	size := varint.Int64.Size(int64(len(m)))
	for name, v := range m {
		size += ord.String.Size(name)
		size += raw.Float64.Size(v)
	}
	return size
}

// ChunkRecordMUS serializes chunk records. Timestamps are stored as UTC
// microseconds.
var ChunkRecordMUS = chunkRecordMUS{}

type chunkRecordMUS struct{}

func (chunkRecordMUS) Marshal(r ChunkRecord, bs []byte) int {
	n := ord.String.Marshal(r.ChunkID, bs)
	n += ord.String.Marshal(r.DocumentID, bs[n:])
	n += ord.String.Marshal(r.Filename, bs[n:])
	n += varint.Int64.Marshal(int64(r.Page), bs[n:])
	n += ord.String.Marshal(r.SectionRaw, bs[n:])
	n += ord.String.Marshal(r.Section, bs[n:])
	n += ord.String.Marshal(r.FieldName, bs[n:])
	n += ord.String.Marshal(r.Text, bs[n:])
	n += varint.Int64.Marshal(int64(r.TokenEst), bs[n:])
	n += varint.Int64.Marshal(int64(r.ChunkIndex), bs[n:])
	n += varint.Int64.Marshal(int64(r.ChunkOf), bs[n:])
	n += ord.String.Marshal(r.Audience, bs[n:])
	n += varint.Int64.Marshal(timeToMicros(r.Timestamp), bs[n:])
	n += ord.String.Marshal(r.ProductID, bs[n:])
	n += ord.String.Marshal(r.IndexScope, bs[n:])
	n += ord.String.Marshal(r.DocScope, bs[n:])
	n += ord.String.Marshal(r.FieldScope, bs[n:])
	n += KeyMUS.Marshal(r.ContentKey, bs[n:])
	return n
}

func (chunkRecordMUS) Unmarshal(bs []byte) (ChunkRecord, int, error) {
	var r ChunkRecord
	var err error
	n := 0

	strs := []*string{
		&r.ChunkID, &r.DocumentID, &r.Filename,
	}
	for _, dst := range strs {
		var n1 int
		*dst, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return r, n, err
		}
	}

	page, n1, err := varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return r, n, err
	}
	r.Page = int(page)

	strs = []*string{&r.SectionRaw, &r.Section, &r.FieldName, &r.Text}
	for _, dst := range strs {
		var n2 int
		*dst, n2, err = ord.String.Unmarshal(bs[n:])
		n += n2
		if err != nil {
			return r, n, err
		}
	}

	ints := []*int{&r.TokenEst, &r.ChunkIndex, &r.ChunkOf}
	for _, dst := range ints {
		v, n3, err := varint.Int64.Unmarshal(bs[n:])
		n += n3
		if err != nil {
			return r, n, err
		}
		*dst = int(v)
	}

	r.Audience, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return r, n, err
	}

	micros, n1, err := varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return r, n, err
	}
	r.Timestamp = microsToTime(micros)

	strs = []*string{&r.ProductID, &r.IndexScope, &r.DocScope, &r.FieldScope}
	for _, dst := range strs {
		var n4 int
		*dst, n4, err = ord.String.Unmarshal(bs[n:])
		n += n4
		if err != nil {
			return r, n, err
		}
	}

	r.ContentKey, n1, err = KeyMUS.Unmarshal(bs[n:])
	n += n1
	return r, n, err
}

func (chunkRecordMUS) Size(r ChunkRecord) int {
	size := ord.String.Size(r.ChunkID)
	size += ord.String.Size(r.DocumentID)
	size += ord.String.Size(r.Filename)
	size += varint.Int64.Size(int64(r.Page))
	size += ord.String.Size(r.SectionRaw)
	size += ord.String.Size(r.Section)
	size += ord.String.Size(r.FieldName)
	size += ord.String.Size(r.Text)
	size += varint.Int64.Size(int64(r.TokenEst))
	size += varint.Int64.Size(int64(r.ChunkIndex))
	size += varint.Int64.Size(int64(r.ChunkOf))
	size += ord.String.Size(r.Audience)
	size += varint.Int64.Size(timeToMicros(r.Timestamp))
	size += ord.String.Size(r.ProductID)
	size += ord.String.Size(r.IndexScope)
	size += ord.String.Size(r.DocScope)
	size += ord.String.Size(r.FieldScope)
	size += KeyMUS.Size(r.ContentKey)
	return size
}

// ChunkScoreMUS serializes chunk scores.
var ChunkScoreMUS = chunkScoreMUS{}

type chunkScoreMUS struct{}

func (chunkScoreMUS) Marshal(s ChunkScore, bs []byte) int {
	n := ord.String.Marshal(s.ChunkID, bs)
	n += ord.String.Marshal(s.DocumentID, bs[n:])
	n += MetricSetMUS.Marshal(s.Metrics, bs[n:])
	n += raw.Float64.Marshal(s.TrustScore, bs[n:])
	n += varint.Int64.Marshal(timeToMicros(s.ScoredAt), bs[n:])
	n += ord.String.Marshal(s.Scorer, bs[n:])
	return n
}

func (chunkScoreMUS) Unmarshal(bs []byte) (ChunkScore, int, error) {
	var s ChunkScore
	var err error

	n := 0
	s.ChunkID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return s, n, err
	}

	id, n1, err := ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return s, n, err
	}
	s.DocumentID = id

	s.Metrics, n1, err = MetricSetMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return s, n, err
	}

	s.TrustScore, n1, err = raw.Float64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return s, n, err
	}

	micros, n1, err := varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return s, n, err
	}
	s.ScoredAt = microsToTime(micros)

	s.Scorer, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return s, n, err
}

func (chunkScoreMUS) Size(s ChunkScore) int {
	size := ord.String.Size(s.ChunkID)
	size += ord.String.Size(s.DocumentID)
	size += MetricSetMUS.Size(s.Metrics)
	size += raw.Float64.Size(s.TrustScore)
	size += varint.Int64.Size(timeToMicros(s.ScoredAt))
	size += ord.String.Size(s.Scorer)
	return size
}

func timeToMicros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMicro()
}

func microsToTime(micros int64) time.Time {
	if micros == 0 {
		return time.Time{}
	}
	return time.UnixMicro(micros).UTC()
}
