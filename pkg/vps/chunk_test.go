package vps

import "testing"

func TestChunkVoice(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		last      bool
		wantCount int
		wantTail  int
	}{
		{name: "empty end of speech", size: 0, last: true, wantCount: 1, wantTail: 0},
		{name: "empty not last", size: 0, last: false, wantCount: 0},
		{name: "one byte", size: 1, last: true, wantCount: 1, wantTail: 1},
		{name: "exact chunk", size: VoiceChunkSize, last: true, wantCount: 1, wantTail: VoiceChunkSize},
		{name: "one over", size: VoiceChunkSize + 1, last: false, wantCount: 2, wantTail: 1},
		{name: "three chunks", size: 3 * VoiceChunkSize, last: true, wantCount: 3, wantTail: VoiceChunkSize},
	}
	for _, tt := range tests {
		chunks := ChunkVoice(make([]byte, tt.size), VoiceChunkSize, tt.last)
		if len(chunks) != tt.wantCount {
			t.Fatalf("%s: chunks=%d, want %d", tt.name, len(chunks), tt.wantCount)
		}
		if tt.wantCount == 0 {
			continue
		}
		total := 0
		for i, chunk := range chunks {
			total += len(chunk.Data)
			final := i == len(chunks)-1
			if chunk.Last != (final && tt.last) {
				t.Fatalf("%s: chunk %d last=%v, want %v", tt.name, i, chunk.Last, final && tt.last)
			}
			if !final && len(chunk.Data) != VoiceChunkSize {
				t.Fatalf("%s: chunk %d size=%d, want %d", tt.name, i, len(chunk.Data), VoiceChunkSize)
			}
		}
		if got := len(chunks[len(chunks)-1].Data); got != tt.wantTail {
			t.Fatalf("%s: tail=%d, want %d", tt.name, got, tt.wantTail)
		}
		if total != tt.size {
			t.Fatalf("%s: total=%d, want %d", tt.name, total, tt.size)
		}
	}
}

func TestChunkVoiceDoesNotShareCapacity(t *testing.T) {
	chunks := ChunkVoice(make([]byte, 10), 4, false)
	if cap(chunks[0].Data) != 4 {
		t.Fatalf("cap=%d, want 4", cap(chunks[0].Data))
	}
}
