package es

import (
	"bytes"
	"encoding/json"
)

// BulkResponse is the subset of the _bulk response the loader reads
type BulkResponse struct {
	Took   int                   `json:"took"`
	Errors bool                  `json:"errors"`
	Items  []map[string]BulkItem `json:"items"`
}

// BulkItem is the outcome of one action
type BulkItem struct {
	Index  string     `json:"_index"`
	ID     string     `json:"_id"`
	Status int        `json:"status"`
	Result string     `json:"result,omitempty"`
	Error  *ItemError `json:"error,omitempty"`
}

// ItemError explains a rejected action
type ItemError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// OK reports a 2xx outcome without an error body
func (i BulkItem) OK() bool { return i.Error == nil && i.Status >= 200 && i.Status < 300 }

// Outcomes flattens Items; each entry has exactly one action key
func (r *BulkResponse) Outcomes() []BulkItem {
	out := make([]BulkItem, 0, len(r.Items))
	for _, m := range r.Items {
		for _, it := range m {
			out = append(out, it)
		}
	}
	return out
}

// BulkBody accumulates an NDJSON "index" request
type BulkBody struct {
	buf bytes.Buffer
	n   int
}

type indexMeta struct {
	Index struct {
		Index string `json:"_index"`
		ID    string `json:"_id"`
	} `json:"index"`
}

// Index appends an index (upsert by id) action
func (b *BulkBody) Index(index, id string, doc any) error {
	var m indexMeta
	m.Index.Index = index
	m.Index.ID = id
	meta, err := json.Marshal(m)
	if err != nil {
		return err
	}
	src, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	b.buf.Write(meta)
	b.buf.WriteByte('\n')
	b.buf.Write(src)
	b.buf.WriteByte('\n')
	b.n++
	return nil
}

// Len returns the number of actions
func (b *BulkBody) Len() int { return b.n }

// Bytes returns the request body
func (b *BulkBody) Bytes() []byte { return b.buf.Bytes() }
