package iopool

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/hic/compress"
	"github.com/arloliu/hic/errs"
	"github.com/arloliu/hic/format"
)

type testStream struct {
	*bytes.Reader
	inUse   atomic.Int32
	overlap atomic.Bool
	closed  atomic.Bool
	delay   time.Duration
}

func (s *testStream) ReadAt(p []byte, off int64) (int, error) {
	if s.inUse.Add(1) > 1 {
		s.overlap.Store(true)
	}
	defer s.inUse.Add(-1)
	time.Sleep(s.delay)

	return s.Reader.ReadAt(p, off)
}

func (s *testStream) Close() error {
	s.closed.Store(true)
	return nil
}

type recordingObserver struct {
	reads        atomic.Int64
	readBytes    atomic.Int64
	decompress   atomic.Int64
	decompErrors atomic.Int64
}

func (o *recordingObserver) RecordRead(bytes int64, _ time.Duration, _ error) {
	o.reads.Add(1)
	o.readBytes.Add(bytes)
}

func (o *recordingObserver) RecordDecompress(_, _ int64, _ time.Duration, err error) {
	o.decompress.Add(1)
	if err != nil {
		o.decompErrors.Add(1)
	}
}

func newTestPool(t *testing.T, data []byte, channels int, delay time.Duration) (*Pool, []*testStream, *recordingObserver) {
	t.Helper()

	var (
		mu      sync.Mutex
		streams []*testStream
	)
	obs := &recordingObserver{}
	p, err := New(context.Background(), Config{
		Channels: channels,
		Open: func(context.Context) (Stream, error) {
			s := &testStream{Reader: bytes.NewReader(data), delay: delay}
			mu.Lock()
			streams = append(streams, s)
			mu.Unlock()

			return s, nil
		},
		Observer: obs,
	})
	require.NoError(t, err)

	return p, streams, obs
}

func TestPool_ReadRange(t *testing.T) {
	data := []byte("0123456789")
	p, _, obs := newTestPool(t, data, 2, 0)
	defer p.Close()

	require.Equal(t, 2, p.Channels())
	require.Equal(t, int64(10), p.Size())

	got, err := p.ReadRange(context.Background(), 3, 4)
	require.NoError(t, err)
	require.Equal(t, []byte("3456"), got)
	require.Equal(t, int64(1), obs.reads.Load())
	require.Equal(t, int64(4), obs.readBytes.Load())

	_, err = p.ReadRange(context.Background(), 8, 4)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestPool_ReadAndDecompress(t *testing.T) {
	codec, err := compress.CreateCodec(format.CompressionZlib, "test")
	require.NoError(t, err)
	payload := bytes.Repeat([]byte("contact"), 100)
	compressed, err := codec.Compress(payload)
	require.NoError(t, err)

	data := append([]byte("prefix"), compressed...)
	p, _, obs := newTestPool(t, data, 3, 0)
	defer p.Close()

	for range 5 {
		out, err := p.ReadAndDecompress(context.Background(), 6, len(compressed))
		require.NoError(t, err)
		require.Equal(t, payload, out)
	}
	require.Equal(t, int64(5), obs.decompress.Load())

	_, err = p.ReadAndDecompress(context.Background(), 0, 6)
	require.ErrorIs(t, err, errs.ErrFormat)
	require.Equal(t, int64(1), obs.decompErrors.Load())

	_, err = p.ReadAndDecompress(context.Background(), 0, -1)
	require.ErrorIs(t, err, errs.ErrInvalidRange)
}

func TestPool_ChannelsAreSerializedButConcurrent(t *testing.T) {
	data := make([]byte, 1024)
	p, streams, _ := newTestPool(t, data, 2, 5*time.Millisecond)
	defer p.Close()

	start := time.Now()
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.ReadRange(context.Background(), 0, 16)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for _, s := range streams {
		require.False(t, s.overlap.Load(), "a channel served two operations at once")
	}
	// 8 reads of 5ms over 2 channels cannot finish faster than 4 rounds.
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestPool_AcquireRespectsContext(t *testing.T) {
	p, _, _ := newTestPool(t, []byte("x"), 1, 0)
	defer p.Close()

	ch, err := p.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	p.Release(ch)
	ch, err = p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(ch)
}

func TestPool_Close(t *testing.T) {
	p, streams, _ := newTestPool(t, []byte("abc"), 2, 0)

	ch, err := p.Acquire(context.Background())
	require.NoError(t, err)

	closed := make(chan error)
	go func() { closed <- p.Close() }()

	// Close waits for the borrowed channel.
	select {
	case <-closed:
		t.Fatal("Close returned while a channel was borrowed")
	case <-time.After(20 * time.Millisecond):
	}
	p.Release(ch)
	require.NoError(t, <-closed)

	for _, s := range streams {
		require.True(t, s.closed.Load())
	}

	_, err = p.Acquire(context.Background())
	require.ErrorIs(t, err, errs.ErrClosed)
	_, err = p.ReadRange(context.Background(), 0, 1)
	require.ErrorIs(t, err, errs.ErrClosed)
	require.NoError(t, p.Close())
}

func TestNew_Errors(t *testing.T) {
	_, err := New(context.Background(), Config{Channels: 0})
	require.ErrorIs(t, err, errs.ErrInvalidChannelCount)

	var opened []*testStream
	boom := errors.New("boom")
	_, err = New(context.Background(), Config{
		Channels: 3,
		Open: func(context.Context) (Stream, error) {
			if len(opened) == 2 {
				return nil, boom
			}
			s := &testStream{Reader: bytes.NewReader(nil)}
			opened = append(opened, s)

			return s, nil
		},
	})
	require.ErrorIs(t, err, boom)
	for _, s := range opened {
		require.True(t, s.closed.Load(), "partially opened channels are closed")
	}

	_, err = New(context.Background(), Config{
		Channels: 1,
		Open: func(context.Context) (Stream, error) {
			return &testStream{Reader: bytes.NewReader(nil)}, nil
		},
		NewDecompressor: func() (compress.Decompressor, error) { return nil, boom },
	})
	require.ErrorIs(t, err, boom)
}

func TestPool_ReaderAt(t *testing.T) {
	p, _, _ := newTestPool(t, []byte("0123456789"), 2, 0)
	defer p.Close()

	r := p.ReaderAt(context.Background())

	buf := make([]byte, 4)
	n, err := r.ReadAt(buf, 2)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, "2345", string(buf))

	n, err = r.ReadAt(buf, 8)
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, 2, n)
	require.Equal(t, "89", string(buf[:n]))

	_, err = r.ReadAt(buf, 10)
	require.ErrorIs(t, err, io.EOF)

	_, err = r.ReadAt(buf, -1)
	require.ErrorIs(t, err, errs.ErrInvalidRange)
}
