package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
)

// DecodeJSON parses JSON the way MongoDB reads it: objects become bson.D in
// source key order, arrays become bson.A and whole numbers become int64.
// Key order matters for stages such as $sort, where the first key wins.
func DecodeJSON(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if tok, err := dec.Token(); err != io.EOF {
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("unexpected %v after top-level value", tok)
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			doc := bson.D{}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key must be a string, got %v", keyTok)
				}
				value, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				doc = append(doc, bson.E{Key: key, Value: value})
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return doc, nil
		case '[':
			arr := bson.A{}
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, item)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		default:
			return nil, fmt.Errorf("unexpected %v", t)
		}
	case json.Number:
		return toBSONValue(t), nil
	default:
		// string, bool or nil
		return t, nil
	}
}

// orderedValue brings already-decoded values into the same shape DecodeJSON
// produces. Go maps carry no key order, so their keys are sorted.
func orderedValue(v interface{}) interface{} {
	switch val := v.(type) {
	case bson.D:
		out := make(bson.D, 0, len(val))
		for _, e := range val {
			out = append(out, bson.E{Key: e.Key, Value: orderedValue(e.Value)})
		}
		return out
	case bson.M:
		return orderedMap(val)
	case map[string]interface{}:
		return orderedMap(val)
	case bson.A:
		return orderedSlice(val)
	case []interface{}:
		return orderedSlice(val)
	default:
		return toBSONValue(v)
	}
}

func orderedMap(m map[string]interface{}) bson.D {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(bson.D, 0, len(m))
	for _, k := range keys {
		out = append(out, bson.E{Key: k, Value: orderedValue(m[k])})
	}
	return out
}

func orderedSlice(items []interface{}) bson.A {
	out := make(bson.A, len(items))
	for i, item := range items {
		out[i] = orderedValue(item)
	}
	return out
}

// field returns the value of the first element named key.
func field(d bson.D, key string) (interface{}, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// renderJSON writes v as relaxed extended JSON, which keeps bson.D key order.
func renderJSON(v interface{}) ([]byte, error) {
	return bson.MarshalExtJSON(v, false, false)
}
