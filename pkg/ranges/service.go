// Copyright 2018-2019 The logrange Authors
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

package ranges

import (
	"context"
	"time"

	"github.com/jrivets/log4g"
	"github.com/logrange/irange/pkg/docstore"
	"github.com/logrange/irange/pkg/events"
	"github.com/logrange/irange/pkg/model"
	"github.com/pkg/errors"
)

type (
	// Service is the index ranges repository. It is the only component which
	// writes index ranges to the storage.
	Service struct {
		Coll      docstore.Collection `inject:"rangesCollection"`
		Publisher events.Publisher    `inject:"events"`

		logger log4g.Logger
	}
)

// Stored document fields
const (
	FieldIndexName    = "index_name"
	FieldBegin        = "begin"
	FieldEnd          = "end"
	FieldCalculatedAt = "calculated_at"
	FieldTookMs       = "took_ms"

	// FieldLegacyStart is present in documents written by the old schema
	FieldLegacyStart = "start"
)

// NewService creates the new Service. The function is used when the Service
// is constructed without the injector.
func NewService(coll docstore.Collection, pub events.Publisher) *Service {
	s := new(Service)
	s.Coll = coll
	s.Publisher = pub
	s.PostConstruct()
	return s
}

// PostConstruct is part of linker.PostConstructor
func (s *Service) PostConstruct() {
	s.logger = log4g.GetLogger("ranges.Service")
}

// Get returns the index range for the index, or ErrNotFound if there is no
// range stored for the index.
func (s *Service) Get(ctx context.Context, index string) (model.IndexRange, error) {
	res, err := s.find(ctx, docstore.Is(FieldIndexName, index))
	if err != nil {
		return model.IndexRange{}, err
	}
	if len(res) == 0 {
		return model.IndexRange{}, ErrNotFound
	}
	return res[0], nil
}

// Find returns ranges which overlap [begin..end] interval. The bounds are
// inclusive. Ranges are stored with millisecond precision, a sub-millisecond
// begin doesn't match a range ending in the millisecond before it. The result
// is ordered by model.CompareRanges.
func (s *Service) Find(ctx context.Context, begin, end time.Time) (model.IndexRanges, error) {
	return s.find(ctx,
		docstore.LessThanEquals(FieldBegin, model.ToMillis(end)),
		docstore.GreaterThanEquals(FieldEnd, model.ToMillisCeil(begin)))
}

// FindAll returns all known ranges ordered by model.CompareRanges
func (s *Service) FindAll(ctx context.Context) (model.IndexRanges, error) {
	return s.find(ctx)
}

// Save stores ir replacing any previous range of the index, and notifies
// about the update publishing events.RangeUpdated.
//
// If the collection is not a docstore.Replacer the previous record is removed
// first and the new one is inserted after that, so readers can observe no
// range for the index in between.
func (s *Service) Save(ctx context.Context, ir model.IndexRange) error {
	doc := toDocument(ir)
	q := docstore.And(docstore.Is(FieldIndexName, ir.IndexName))

	if r, ok := s.Coll.(docstore.Replacer); ok {
		if _, err := r.Replace(ctx, q, doc); err != nil {
			return errors.Wrapf(err, "could not save range %s", ir)
		}
	} else {
		if _, err := s.Coll.Remove(ctx, q); err != nil {
			return errors.Wrapf(err, "could not remove previous range of %s", ir.IndexName)
		}
		if _, err := s.Coll.Insert(ctx, doc); err != nil {
			return errors.Wrapf(err, "could not save range %s", ir)
		}
	}
	rangesSaved.Inc()
	s.logger.Debug("Saved ", ir)

	if err := s.Publisher.Publish(ctx, events.RangeUpdated{IndexName: ir.IndexName}); err != nil {
		s.logger.Warn("Could not notify about range update of ", ir.IndexName, ", err=", err)
	}
	return nil
}

// Delete removes the range of the index. It is not an error if there is no
// range for the index. No notification is published.
func (s *Service) Delete(ctx context.Context, index string) error {
	n, err := s.Coll.Remove(ctx, docstore.And(docstore.Is(FieldIndexName, index)))
	if err != nil {
		return errors.Wrapf(err, "could not delete range of %s", index)
	}
	if n > 0 {
		rangesDeleted.Add(float64(n))
		s.logger.Debug("Removed ", n, " document(s) of ", index)
	}
	return nil
}

func (s *Service) find(ctx context.Context, preds ...docstore.Predicate) (model.IndexRanges, error) {
	q := make(docstore.Query, 0, len(preds)+2)
	q = append(q, preds...)
	q = append(q, docstore.Exists(FieldBegin), docstore.NotExists(FieldLegacyStart))

	docs, err := s.Coll.Find(ctx, q)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read ranges with %s", q)
	}

	res := make(model.IndexRanges, 0, len(docs))
	for _, d := range docs {
		ir, ok := fromDocument(d)
		if !ok {
			skippedDocs.Inc()
			s.logger.Warn("Skipping malformed range document ", d)
			continue
		}
		res = append(res, ir)
	}
	return model.SortRanges(res), nil
}

func toDocument(ir model.IndexRange) docstore.Document {
	return docstore.Document{
		FieldIndexName:    ir.IndexName,
		FieldBegin:        model.ToMillis(ir.Begin),
		FieldEnd:          model.ToMillis(ir.End),
		FieldCalculatedAt: model.ToMillis(ir.CalculatedAt),
		FieldTookMs:       int64(ir.CalculationDuration),
	}
}

func fromDocument(d docstore.Document) (model.IndexRange, bool) {
	var ir model.IndexRange
	var ok bool
	if ir.IndexName, ok = d.StringField(FieldIndexName); !ok || ir.IndexName == "" {
		return ir, false
	}

	b, ok1 := d.Int64(FieldBegin)
	e, ok2 := d.Int64(FieldEnd)
	ca, ok3 := d.Int64(FieldCalculatedAt)
	if !ok1 || !ok2 || !ok3 {
		return ir, false
	}
	ir.TimeRange = model.NewTimeRange(b, e)
	ir.CalculatedAt = model.FromMillis(ca)
	if took, ok := d.Int64(FieldTookMs); ok && took > 0 {
		ir.CalculationDuration = int(took)
	}
	return ir, true
}
