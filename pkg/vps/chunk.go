package vps

// VoiceChunkSize is the largest voice payload carried by one message.
const VoiceChunkSize = 10_000

// VoiceChunk is one outbound voice message payload.
type VoiceChunk struct {
	Data []byte
	Last bool
}

// ChunkVoice splits data into pieces of at most size bytes. Only the final
// piece carries last. An empty payload yields one empty chunk when last is
// set and nothing otherwise.
func ChunkVoice(data []byte, size int, last bool) []VoiceChunk {
	if size <= 0 {
		size = VoiceChunkSize
	}
	if len(data) == 0 {
		if !last {
			return nil
		}
		return []VoiceChunk{{Last: true}}
	}
	chunks := make([]VoiceChunk, 0, (len(data)+size-1)/size)
	for start := 0; start < len(data); start += size {
		end := min(start+size, len(data))
		chunks = append(chunks, VoiceChunk{Data: data[start:end:end]})
	}
	chunks[len(chunks)-1].Last = last
	return chunks
}
