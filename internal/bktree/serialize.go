package bktree

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"io"

	"retrieval-platform/internal/apierrors"
)

// flatNode is one row of the breadth-first serialization: the index
// of its parent in the flat slice (-1 for the root) and the exact
// distance from parent to this node, alongside the node's own data.
// Flattening this way lets decode rebuild the children map without a
// recursive, stack-depth-bound reader.
type flatNode struct {
	ParentIndex int
	Distance    int
	Word        string
	Count       int
}

// Marshal serializes t as gzip-compressed gob, mirroring the source
// tree's bincode-over-gzip wire format with Go's native binary codec
// in place of bincode (no pack example carries a bincode-equivalent
// library, so gob is the standard-library choice here; see DESIGN.md).
func (t *Tree) Marshal() ([]byte, error) {
	flat := t.flatten()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(flat); err != nil {
		return nil, apierrors.Wrap(apierrors.Inconsistency, "encode bktree", err)
	}
	if err := gz.Close(); err != nil {
		return nil, apierrors.Wrap(apierrors.Inconsistency, "close bktree gzip writer", err)
	}
	return buf.Bytes(), nil
}

func (t *Tree) flatten() []flatNode {
	if t.root == nil {
		return nil
	}
	var flat []flatNode
	type queued struct {
		n           *node
		parentIndex int
		distance    int
	}
	queue := []queued{{n: t.root, parentIndex: -1, distance: 0}}
	for len(queue) > 0 {
		q := queue[0]
		queue = queue[1:]
		idx := len(flat)
		flat = append(flat, flatNode{
			ParentIndex: q.parentIndex,
			Distance:    q.distance,
			Word:        q.n.word,
			Count:       q.n.count,
		})
		for d, child := range q.n.children {
			queue = append(queue, queued{n: child, parentIndex: idx, distance: d})
		}
	}
	return flat
}

// Unmarshal decodes a gzip-compressed gob blob produced by Marshal.
func Unmarshal(data []byte) (*Tree, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Inconsistency, "open bktree gzip reader", err)
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Inconsistency, "read bktree gzip stream", err)
	}

	var flat []flatNode
	dec := gob.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&flat); err != nil {
		return nil, apierrors.Wrap(apierrors.Inconsistency, "decode bktree", err)
	}

	t := &Tree{}
	nodes := make([]*node, len(flat))
	for i, fn := range flat {
		nodes[i] = &node{word: fn.Word, count: fn.Count, children: map[int]*node{}}
	}
	for i, fn := range flat {
		if fn.ParentIndex == -1 {
			t.root = nodes[i]
			continue
		}
		nodes[fn.ParentIndex].children[fn.Distance] = nodes[i]
	}
	t.size = len(flat)
	return t, nil
}
