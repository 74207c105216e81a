package filter

import (
	"bytes"
	"testing"

	"github.com/soltixdb/gridstore/internal/compression"
)

func TestPipelineRoundtrip_Snappy(t *testing.T) {
	f, err := NewCompressionFilter(compression.Snappy)
	if err != nil {
		t.Fatalf("NewCompressionFilter failed: %v", err)
	}
	p := NewPipeline(f)

	data := bytes.Repeat([]byte("cell"), 256)
	enc, err := p.RunForward(data)
	if err != nil {
		t.Fatalf("RunForward failed: %v", err)
	}

	dec, err := p.RunReverse(enc)
	if err != nil {
		t.Fatalf("RunReverse failed: %v", err)
	}
	if !bytes.Equal(dec, data) {
		t.Error("Pipeline roundtrip mismatch")
	}
}

func TestPipelineRoundtrip_Chained(t *testing.T) {
	delta, err := NewCompressionFilter(compression.Delta)
	if err != nil {
		t.Fatalf("NewCompressionFilter failed: %v", err)
	}
	snap, err := NewCompressionFilter(compression.Snappy)
	if err != nil {
		t.Fatalf("NewCompressionFilter failed: %v", err)
	}
	p := NewPipeline(delta, snap)

	// Offset-table-like stream of uint64 values
	data := make([]byte, 64*8)
	for i := range data {
		data[i] = 0
	}
	for i := 0; i < 64; i++ {
		data[i*8] = byte(i)
	}

	enc, err := p.RunForward(data)
	if err != nil {
		t.Fatalf("RunForward failed: %v", err)
	}
	dec, err := p.RunReverse(enc)
	if err != nil {
		t.Fatalf("RunReverse failed: %v", err)
	}
	if !bytes.Equal(dec, data) {
		t.Error("Chained pipeline roundtrip mismatch")
	}
}

func TestPipelineNil(t *testing.T) {
	var p *Pipeline
	data := []byte("pass through")

	out, err := p.RunReverse(data)
	if err != nil {
		t.Fatalf("RunReverse on nil pipeline failed: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Error("Nil pipeline should pass data through")
	}
	if !p.Empty() {
		t.Error("Nil pipeline should be empty")
	}
}

func TestWithEncryption(t *testing.T) {
	key := bytes.Repeat([]byte{7}, 32)

	base := NewPipeline()
	p, err := base.WithEncryption(key)
	if err != nil {
		t.Fatalf("WithEncryption failed: %v", err)
	}

	data := []byte("secret tile payload")
	enc, err := p.RunForward(data)
	if err != nil {
		t.Fatalf("RunForward failed: %v", err)
	}
	if bytes.Contains(enc, data) {
		t.Error("Encrypted output contains plaintext")
	}

	dec, err := p.RunReverse(enc)
	if err != nil {
		t.Fatalf("RunReverse failed: %v", err)
	}
	if !bytes.Equal(dec, data) {
		t.Error("Encryption roundtrip mismatch")
	}
}

func TestWithEncryption_EmptyKeyNoop(t *testing.T) {
	p := NewPipeline()
	p2, err := p.WithEncryption(nil)
	if err != nil {
		t.Fatalf("WithEncryption failed: %v", err)
	}
	if p2 != p {
		t.Error("Empty key should return the pipeline unchanged")
	}
}

func TestEncryption_BadKey(t *testing.T) {
	if _, err := NewEncryptionFilter([]byte("short")); err == nil {
		t.Error("Expected error for invalid key size")
	}
}

func TestEncryption_TamperDetected(t *testing.T) {
	key := bytes.Repeat([]byte{9}, 16)
	f, err := NewEncryptionFilter(key)
	if err != nil {
		t.Fatalf("NewEncryptionFilter failed: %v", err)
	}

	enc, err := f.RunForward([]byte("payload"))
	if err != nil {
		t.Fatalf("RunForward failed: %v", err)
	}
	enc[len(enc)-1] ^= 0xff

	if _, err := f.RunReverse(enc); err == nil {
		t.Error("Expected error for tampered ciphertext")
	}
}
