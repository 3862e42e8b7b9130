package tracecontext

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

var (
	traceIDPattern  = regexp.MustCompile(`^[0-9a-f]{32}$`)
	parentIDPattern = regexp.MustCompile(`^[0-9a-f]{16}$`)
)

// scriptedReader returns all-zero draws for the first zeroDraws reads, then fills with fill.
type scriptedReader struct {
	zeroDraws int
	fill      byte
	calls     []int
}

func (r *scriptedReader) Read(p []byte) (int, error) {
	r.calls = append(r.calls, len(p))
	v := r.fill
	if len(r.calls) <= r.zeroDraws {
		v = 0
	}
	for i := range p {
		p[i] = v
	}
	return len(p), nil
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("device unavailable") }

func TestGenerate_Format(t *testing.T) {
	tp, err := Generate()
	require.NoError(t, err)

	assert.Equal(t, "00", tp.Version)
	assert.Equal(t, "01", tp.TraceFlags)
	assert.Regexp(t, traceIDPattern, tp.TraceID)
	assert.Regexp(t, parentIDPattern, tp.ParentID)
	assert.Equal(t, "00-"+tp.TraceID+"-"+tp.ParentID+"-"+tp.TraceFlags, tp.String())
}

func TestGenerate_NeverAllZero(t *testing.T) {
	zeros32 := strings.Repeat("0", 32)
	zeros16 := strings.Repeat("0", 16)

	for i := 0; i < 25; i++ {
		tp, err := Generate()
		require.NoError(t, err)
		assert.NotEqual(t, zeros32, tp.TraceID)
		assert.NotEqual(t, zeros16, tp.ParentID)
	}
}

func TestGenerate_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tp := MustGenerate()
		assert.False(t, seen[tp.TraceID], "duplicate trace id %s", tp.TraceID)
		seen[tp.TraceID] = true
	}
}

func TestGenerator_RetriesAllZeroDraws(t *testing.T) {
	src := &scriptedReader{zeroDraws: 2, fill: 1}
	g := NewGenerator(WithEntropy(src))

	tp, err := g.Generate()
	require.NoError(t, err)

	assert.Equal(t, strings.Repeat("01", 16), tp.TraceID)
	assert.Equal(t, strings.Repeat("01", 8), tp.ParentID)
	// Two rejected trace id draws, one accepted, one parent id draw.
	assert.Equal(t, []int{16, 16, 16, 8}, src.calls)
}

func TestGenerator_BoundedRetry(t *testing.T) {
	src := &scriptedReader{zeroDraws: 1 << 30, fill: 1}
	g := NewGenerator(WithEntropy(src), WithMaxAttempts(3))

	_, err := g.Generate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEntropyExhausted)
	assert.Len(t, src.calls, 3)
}

func TestGenerator_EntropyReadError(t *testing.T) {
	g := NewGenerator(WithEntropy(failingReader{}))

	_, err := g.Generate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device unavailable")
}

func TestGenerator_ShortSource(t *testing.T) {
	g := NewGenerator(WithEntropy(bytes.NewReader([]byte{1, 2, 3})))

	_, err := g.Generate()
	require.Error(t, err)
}

func TestWithMaxAttempts_IgnoresNonPositive(t *testing.T) {
	g := NewGenerator(WithMaxAttempts(0))
	assert.Equal(t, DefaultMaxAttempts, g.maxAttempts)
}

func TestParse(t *testing.T) {
	valid := "00-0123456789abcdef0123456789abcdef-0123456789abcdef-01"

	tp, err := Parse(valid)
	require.NoError(t, err)
	assert.Equal(t, valid, tp.String())

	invalid := []string{
		"",
		"00-0123456789abcdef0123456789abcdef-0123456789abcdef",
		"ff-0123456789abcdef0123456789abcdef-0123456789abcdef-01",
		"00-0123456789ABCDEF0123456789ABCDEF-0123456789abcdef-01",
		"00-00000000000000000000000000000000-0123456789abcdef-01",
		"00-0123456789abcdef0123456789abcdef-0000000000000000-01",
		"00-0123456789abcdef-0123456789abcdef-01",
		"00-0123456789abcdef0123456789abcdef-0123456789abcdef-1",
		"0g-0123456789abcdef0123456789abcdef-0123456789abcdef-01",
	}
	for _, s := range invalid {
		t.Run(s, func(t *testing.T) {
			_, err := Parse(s)
			assert.ErrorIs(t, err, ErrInvalidTraceparent)
		})
	}
}

func TestTraceparent_SpanContext(t *testing.T) {
	tp, err := Parse("00-0123456789abcdef0123456789abcdef-0123456789abcdef-01")
	require.NoError(t, err)

	sc := tp.SpanContext()
	assert.True(t, sc.IsValid())
	assert.True(t, sc.IsRemote())
	assert.True(t, sc.IsSampled())
	assert.Equal(t, tp.TraceID, sc.TraceID().String())
	assert.Equal(t, tp.ParentID, sc.SpanID().String())

	ctx := tp.ContextWith(context.Background())
	assert.Equal(t, sc.TraceID(), trace.SpanContextFromContext(ctx).TraceID())
}

func TestNewErrorID(t *testing.T) {
	id := NewErrorID()
	assert.Regexp(t, parentIDPattern, id)
	assert.NotEqual(t, id, NewErrorID())
}
