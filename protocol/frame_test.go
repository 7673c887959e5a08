package protocol

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/drive/feed"
)

func TestFrameRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	for _, msg := range []struct {
		channel uint8
		typ     MessageType
		body    any
	}{
		{ChannelMetadata, TypeRequest, Request{Index: 7}},
		{ChannelContent, TypeHave, Have{Ranges: []Range{{Start: 1, Length: 3}}, FeedLength: 4}},
	} {
		frame, err := encodeFrame(msg.channel, msg.typ, msg.body)
		require.NoError(t, err)
		buf.Write(frame)
	}

	fr, err := readFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, ChannelMetadata, fr.channel)
	assert.Equal(t, TypeRequest, fr.typ)
	var req Request
	require.NoError(t, unmarshal(fr.body, &req))
	assert.Equal(t, uint64(7), req.Index)

	fr, err = readFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, ChannelContent, fr.channel)
	var have Have
	require.NoError(t, unmarshal(fr.body, &have))
	assert.Equal(t, Have{Ranges: []Range{{Start: 1, Length: 3}}, FeedLength: 4}, have)

	_, err = readFrame(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestEncodeDeterministic(t *testing.T) {
	t.Parallel()

	msg := Data{Index: 3, Value: []byte("abc"), Roots: []Node{{Index: 1, Hash: make([]byte, 32), Size: 9}}}
	a, err := encodeFrame(ChannelContent, TypeData, msg)
	require.NoError(t, err)
	b, err := encodeFrame(ChannelContent, TypeData, msg)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestReadFrameErrors(t *testing.T) {
	t.Parallel()

	header := func(length uint32) []byte {
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, length)
		return b
	}
	valid, err := encodeFrame(0, TypeRequest, Request{Index: 1})
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"too large", header(MaxFrameSize + 1), ErrFrameTooLarge},
		{"too short", header(1), ErrMalformedFrame},
		{"truncated length", []byte{0, 0}, ErrMalformedFrame},
		{"truncated body", valid[:len(valid)-1], ErrMalformedFrame},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := readFrame(bytes.NewReader(tt.data))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCompressValue(t *testing.T) {
	t.Parallel()

	small := []byte("short block")
	wire, compressed := compressValue(small)
	assert.False(t, compressed)
	assert.Equal(t, small, wire)

	repetitive := bytes.Repeat([]byte("drive "), 4096)
	wire, compressed = compressValue(repetitive)
	require.True(t, compressed)
	assert.Less(t, len(wire), len(repetitive))
	got, err := decompressValue(wire)
	require.NoError(t, err)
	assert.Equal(t, repetitive, got)

	random := make([]byte, 8192)
	_, err = rand.Read(random)
	require.NoError(t, err)
	wire, compressed = compressValue(random)
	assert.False(t, compressed)
	assert.Equal(t, random, wire)
}

func TestDataBlock(t *testing.T) {
	t.Parallel()

	f, err := feed.Create("data", feed.Storage{})
	require.NoError(t, err)
	_, err = f.Append([]byte("one"), bytes.Repeat([]byte("two"), 1000), []byte("three"))
	require.NoError(t, err)

	value, err := f.Block(1)
	require.NoError(t, err)
	proof, err := f.Proof(1)
	require.NoError(t, err)

	frame, err := encodeFrame(ChannelContent, TypeData, newData(1, value, proof))
	require.NoError(t, err)
	fr, err := readFrame(bytes.NewReader(frame))
	require.NoError(t, err)
	var msg Data
	require.NoError(t, unmarshal(fr.body, &msg))
	assert.True(t, msg.Compressed)

	gotValue, gotProof, err := msg.block()
	require.NoError(t, err)
	assert.Equal(t, value, gotValue)
	assert.Equal(t, proof, gotProof)

	clone, err := feed.Clone("clone", f.Key(), feed.Storage{})
	require.NoError(t, err)
	require.NoError(t, clone.Put(1, gotValue, gotProof))

	msg.Roots[0].Hash = msg.Roots[0].Hash[:5]
	_, _, err = msg.block()
	assert.ErrorIs(t, err, ErrMalformedFrame)
}
