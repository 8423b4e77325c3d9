package indexer

import "github.com/dshills/treeindex/pkg/types"

// batcher buffers records and hands them to submit in groups of at most size
type batcher struct {
	size   int
	buf    []types.Record
	submit func(batch []types.Record)
}

func newBatcher(size int, submit func([]types.Record)) *batcher {
	return &batcher{
		size:   size,
		buf:    make([]types.Record, 0, min(size, 1024)),
		submit: submit,
	}
}

func (b *batcher) add(r types.Record) {
	b.buf = append(b.buf, r)
	if len(b.buf) >= b.size {
		b.flush()
	}
}

// flush submits the buffered records, if any
func (b *batcher) flush() {
	if len(b.buf) == 0 {
		return
	}
	batch := b.buf
	b.buf = make([]types.Record, 0, min(b.size, 1024))
	b.submit(batch)
}
