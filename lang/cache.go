package lang

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/klauspost/readahead"
	"github.com/zeebo/xxh3"
)

// Cache memoizes compiled programs by source text and options. It is safe
// for concurrent use; concurrent compiles of the same key share one result.
//
// Programs compiled with [WithEngine] are never cached. A cached program
// keeps the logger of the compile that produced it.
type Cache struct {
	entries sync.Map // xxh3.Uint128 → *entry
}

type entry struct {
	once sync.Once
	prog *Program
	err  error
}

// NewCache returns an empty cache.
func NewCache() *Cache { return &Cache{} }

// optionsKey is the part of the options that affects compiled output.
type optionsKey struct {
	IndentWidth int
	Pretty      bool
	DefaultTag  string
}

// cacheKey hashes the gob encoding of the options followed by src with a
// single 128-bit xxh3 digest. Gob output is self-delimiting, so no pair of
// distinct (options, source) inputs share a hashed byte stream.
func cacheKey(o *options, src string) (xxh3.Uint128, error) {
	var buf bytes.Buffer

	err := gob.NewEncoder(&buf).Encode(optionsKey{
		IndentWidth: o.indentWidth,
		Pretty:      o.pretty,
		DefaultTag:  o.defaultTag,
	})
	if err != nil {
		return xxh3.Uint128{}, err
	}

	h := xxh3.New()
	_, _ = h.Write(buf.Bytes())
	_, _ = h.WriteString(src)

	return h.Sum128(), nil
}

// Compile returns the cached program for src, compiling it on first use.
// Failed compiles are cached as well.
func (c *Cache) Compile(ctx context.Context, src string, opts ...Option) (*Program, error) {
	o, err := makeOptions(opts...)
	if err != nil {
		return nil, err
	}

	if o.customEngine {
		o.logger.TraceContext(ctx, "cache bypass", slog.Bool("custom_engine", true))

		return compile(ctx, src, o)
	}

	key, err := cacheKey(o, src)
	if err != nil {
		o.logger.DebugContext(ctx, "cache bypass", slog.Any("error", err))

		return compile(ctx, src, o)
	}

	v, hit := c.entries.LoadOrStore(key, new(entry))
	e := v.(*entry)

	o.logger.TraceContext(ctx, "cache lookup",
		slog.String("key", fmt.Sprintf("%016x%016x", key.Hi, key.Lo)),
		slog.Bool("cache_hit", hit),
	)

	e.once.Do(func() {
		e.prog, e.err = compile(ctx, src, o)
	})

	return e.prog, e.err
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	n := 0

	c.entries.Range(func(_, _ any) bool {
		n++

		return true
	})

	return n
}

// Clear removes every cached entry.
func (c *Cache) Clear() { c.entries.Clear() }

// CompileReader reads all of r and compiles it.
func CompileReader(ctx context.Context, r io.Reader, opts ...Option) (*Program, error) {
	o, err := makeOptions(opts...)
	if err != nil {
		return nil, err
	}

	src, err := readAll(r)
	if err != nil {
		return nil, err
	}

	o.logger.TraceContext(ctx, "read input",
		slog.Int("source_bytes", len(src)),
		slog.Bool("read_ahead", true),
	)

	return compile(ctx, src, o)
}

// readAll reads r through an asynchronous read-ahead buffer.
func readAll(r io.Reader) (string, error) {
	ra := readahead.NewReader(r)
	defer ra.Close()

	data, err := io.ReadAll(ra)
	if err != nil {
		return "", ErrReadInput.Wrap(err).With(slog.String("source", "reader"))
	}

	return string(data), nil
}
