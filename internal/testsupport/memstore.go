package testsupport

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// MemStore is an in-memory document store that understands the subset of
// MongoDB used by the assistant: equality and comparison filters, $regex,
// $in, and the $match, $group, $sort, $skip, $limit, $count and $project
// stages.
type MemStore struct {
	mu        sync.Mutex
	docs      []bson.M
	err       error
	failOnce  error
	delay     time.Duration
	pipelines [][]bson.D
	finds     []bson.M
}

func NewMemStore(docs ...bson.M) *MemStore {
	return &MemStore{docs: docs}
}

// FailWith makes every subsequent call return err.
func (s *MemStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// FailNext makes only the next call return err.
func (s *MemStore) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOnce = err
}

// SetDelay makes every call block for d or until the context ends.
func (s *MemStore) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Pipelines returns every pipeline passed to Aggregate.
func (s *MemStore) Pipelines() [][]bson.D {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]bson.D(nil), s.pipelines...)
}

// Filters returns every filter passed to Find.
func (s *MemStore) Filters() []bson.M {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bson.M(nil), s.finds...)
}

func (s *MemStore) wait(ctx context.Context) error {
	s.mu.Lock()
	delay, err := s.delay, s.err
	if s.failOnce != nil {
		err, s.failOnce = s.failOnce, nil
	}
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

func (s *MemStore) Find(ctx context.Context, filter bson.M, limit int64, _ time.Duration) ([]bson.M, error) {
	s.mu.Lock()
	s.finds = append(s.finds, filter)
	s.mu.Unlock()

	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var out []bson.M
	for _, doc := range s.docs {
		if matches(doc, filter) {
			out = append(out, copyDoc(doc))
			if limit > 0 && int64(len(out)) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *MemStore) Aggregate(ctx context.Context, pipeline []bson.D, _ time.Duration) ([]bson.M, error) {
	s.mu.Lock()
	s.pipelines = append(s.pipelines, pipeline)
	s.mu.Unlock()

	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	docs := make([]bson.M, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, copyDoc(doc))
	}
	s.mu.Unlock()

	for _, stage := range pipeline {
		var err error
		docs, err = applyStage(docs, stage)
		if err != nil {
			return nil, err
		}
	}
	return docs, nil
}

func (s *MemStore) SampleOne(ctx context.Context) (bson.M, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.docs) == 0 {
		return nil, nil
	}
	return copyDoc(s.docs[0]), nil
}

// Count returns the number of stored documents.
func (s *MemStore) Count(ctx context.Context) (int64, error) {
	if err := s.wait(ctx); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.docs)), nil
}

// InsertMany appends documents.
func (s *MemStore) InsertMany(ctx context.Context, docs []interface{}) (int, error) {
	if err := s.wait(ctx); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range docs {
		doc, ok := d.(bson.M)
		if !ok {
			return 0, fmt.Errorf("memstore: unsupported document type %T", d)
		}
		s.docs = append(s.docs, doc)
	}
	return len(docs), nil
}

// Drop removes every document.
func (s *MemStore) Drop(ctx context.Context) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = nil
	return nil
}

// Docs returns a copy of the stored documents.
func (s *MemStore) Docs() []bson.M {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]bson.M, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, copyDoc(d))
	}
	return out
}

func applyStage(docs []bson.M, stage bson.D) ([]bson.M, error) {
	if len(stage) != 1 {
		return nil, fmt.Errorf("memstore: stage must have exactly one operator, got %v", stage)
	}
	op, spec := stage[0].Key, stage[0].Value
	switch op {
	case "$match":
		filter, _ := asMap(spec)
		var out []bson.M
		for _, doc := range docs {
			if matches(doc, filter) {
				out = append(out, doc)
			}
		}
		return out, nil
	case "$group":
		groupSpec, ok := asMap(spec)
		if !ok {
			return nil, fmt.Errorf("memstore: $group needs an object")
		}
		return group(docs, groupSpec)
	case "$sort":
		return sortDocs(docs, spec)
	case "$limit":
		n, ok := toFloat(spec)
		if !ok {
			return nil, fmt.Errorf("memstore: $limit needs a number")
		}
		if int(n) < len(docs) {
			docs = docs[:int(n)]
		}
		return docs, nil
	case "$skip":
		n, _ := toFloat(spec)
		if int(n) >= len(docs) {
			return nil, nil
		}
		return docs[int(n):], nil
	case "$count":
		name, _ := spec.(string)
		return []bson.M{{name: int32(len(docs))}}, nil
	case "$project":
		projection, _ := asMap(spec)
		return project(docs, projection), nil
	default:
		return nil, fmt.Errorf("memstore: unsupported stage %s", op)
	}
}

func matches(doc bson.M, filter map[string]interface{}) bool {
	for field, cond := range filter {
		value, present := lookup(doc, field)
		if ops, ok := asMap(cond); ok && isOperatorMap(ops) {
			if !matchOperators(value, present, ops) {
				return false
			}
			continue
		}
		if !present || !equal(value, cond) {
			return false
		}
	}
	return true
}

func isOperatorMap(m map[string]interface{}) bool {
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return len(m) > 0
}

func matchOperators(value interface{}, present bool, ops map[string]interface{}) bool {
	options, _ := ops["$options"].(string)
	for op, arg := range ops {
		switch op {
		case "$options":
		case "$eq":
			if !present || !equal(value, arg) {
				return false
			}
		case "$ne":
			if present && equal(value, arg) {
				return false
			}
		case "$gt", "$gte", "$lt", "$lte":
			c, ok := compare(value, arg)
			if !present || !ok {
				return false
			}
			switch op {
			case "$gt":
				if c <= 0 {
					return false
				}
			case "$gte":
				if c < 0 {
					return false
				}
			case "$lt":
				if c >= 0 {
					return false
				}
			case "$lte":
				if c > 0 {
					return false
				}
			}
		case "$in":
			items, _ := asSlice(arg)
			found := false
			for _, item := range items {
				if present && equal(value, item) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case "$regex":
			pattern, _ := arg.(string)
			if strings.Contains(options, "i") {
				pattern = "(?i)" + pattern
			}
			re, err := regexp.Compile(pattern)
			s, isString := value.(string)
			if err != nil || !isString || !re.MatchString(s) {
				return false
			}
		case "$exists":
			want, _ := arg.(bool)
			if present != want {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func group(docs []bson.M, spec map[string]interface{}) ([]bson.M, error) {
	type bucket struct {
		key    interface{}
		fields bson.M
		counts map[string]int
	}
	var order []string
	buckets := map[string]*bucket{}

	for _, doc := range docs {
		key := evalExpr(doc, spec["_id"])
		id := fmt.Sprintf("%T:%v", key, key)
		b, ok := buckets[id]
		if !ok {
			b = &bucket{key: key, fields: bson.M{}, counts: map[string]int{}}
			buckets[id] = b
			order = append(order, id)
		}
		for field, acc := range spec {
			if field == "_id" {
				continue
			}
			accMap, ok := asMap(acc)
			if !ok || len(accMap) != 1 {
				return nil, fmt.Errorf("memstore: accumulator for %s must be a single operator", field)
			}
			for op, expr := range accMap {
				v := evalExpr(doc, expr)
				n, numeric := toFloat(v)
				switch op {
				case "$sum":
					cur, _ := toFloat(b.fields[field])
					if numeric {
						cur += n
					}
					b.fields[field] = cur
				case "$avg":
					cur, _ := toFloat(b.fields[field])
					if numeric {
						count := b.counts[field]
						b.fields[field] = (cur*float64(count) + n) / float64(count+1)
						b.counts[field] = count + 1
					} else if _, set := b.fields[field]; !set {
						b.fields[field] = 0.0
					}
				case "$max", "$min":
					cur, set := b.fields[field]
					if !set {
						b.fields[field] = v
						continue
					}
					c, ok := compare(v, cur)
					if ok && ((op == "$max" && c > 0) || (op == "$min" && c < 0)) {
						b.fields[field] = v
					}
				case "$first":
					if _, set := b.fields[field]; !set {
						b.fields[field] = v
					}
				default:
					return nil, fmt.Errorf("memstore: unsupported accumulator %s", op)
				}
			}
		}
	}

	out := make([]bson.M, 0, len(order))
	for _, id := range order {
		b := buckets[id]
		doc := bson.M{"_id": b.key}
		for k, v := range b.fields {
			doc[k] = v
		}
		out = append(out, doc)
	}
	return out, nil
}

func evalExpr(doc bson.M, expr interface{}) interface{} {
	switch e := expr.(type) {
	case string:
		if strings.HasPrefix(e, "$") {
			v, _ := lookup(doc, strings.TrimPrefix(e, "$"))
			return v
		}
		return e
	case map[string]interface{}, bson.M, bson.D:
		m, _ := asMap(e)
		out := bson.M{}
		for k, v := range m {
			out[k] = evalExpr(doc, v)
		}
		return out
	default:
		return e
	}
}

func sortDocs(docs []bson.M, spec interface{}) ([]bson.M, error) {
	var keys []bson.E
	switch s := spec.(type) {
	case bson.D:
		keys = s
	default:
		m, ok := asMap(spec)
		if !ok {
			return nil, fmt.Errorf("memstore: $sort needs an object")
		}
		names := make([]string, 0, len(m))
		for k := range m {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			keys = append(keys, bson.E{Key: k, Value: m[k]})
		}
	}

	sorted := append([]bson.M(nil), docs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		for _, key := range keys {
			dir, _ := toFloat(key.Value)
			a, _ := lookup(sorted[i], key.Key)
			b, _ := lookup(sorted[j], key.Key)
			c, ok := compare(a, b)
			if !ok || c == 0 {
				continue
			}
			if dir < 0 {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return sorted, nil
}

func project(docs []bson.M, projection map[string]interface{}) []bson.M {
	include := false
	for k, v := range projection {
		if k == "_id" {
			continue
		}
		if n, ok := toFloat(v); ok && n != 0 {
			include = true
		} else if b, ok := v.(bool); ok && b {
			include = true
		}
	}

	out := make([]bson.M, 0, len(docs))
	for _, doc := range docs {
		result := bson.M{}
		if include {
			for k := range projection {
				if v, ok := doc[k]; ok && k != "_id" {
					result[k] = v
				}
			}
			if id, ok := doc["_id"]; ok {
				result["_id"] = id
			}
		} else {
			for k, v := range doc {
				result[k] = v
			}
			for k := range projection {
				delete(result, k)
			}
		}
		if v, ok := projection["_id"]; ok {
			if n, isNum := toFloat(v); (isNum && n == 0) || v == false {
				delete(result, "_id")
			}
		}
		out = append(out, result)
	}
	return out
}

func lookup(doc bson.M, path string) (interface{}, bool) {
	var current interface{} = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(current)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case bson.M:
		return m, true
	case map[string]interface{}:
		return m, true
	case bson.D:
		out := make(map[string]interface{}, len(m))
		for _, e := range m {
			out[e.Key] = e.Value
		}
		return out, true
	}
	return nil, false
}

func asSlice(v interface{}) ([]interface{}, bool) {
	switch s := v.(type) {
	case bson.A:
		return s, true
	case []interface{}:
		return s, true
	case []string:
		out := make([]interface{}, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, true
	}
	return nil, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}

func compare(a, b interface{}) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(sa, sb), true
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return ta.Compare(tb), true
	}
	return 0, false
}

func equal(a, b interface{}) bool {
	if c, ok := compare(a, b); ok {
		return c == 0
	}
	return a == nil && b == nil
}

func copyDoc(doc bson.M) bson.M {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
