package audio

import (
	"encoding/binary"
	"math"
)

// ComputeVolumes returns one normalized RMS level per frameDuration
// milliseconds of PCM16 audio, for lip-sync style visualizers.
func ComputeVolumes(pcm []byte, sampleRate int, channels int, frameDuration int) []float64 {
	if len(pcm) == 0 || sampleRate <= 0 || channels <= 0 {
		return nil
	}
	frames := len(pcm) / 2 / channels
	if frames == 0 {
		return nil
	}
	chunkSize := sampleRate * frameDuration / 1000
	if chunkSize <= 0 {
		chunkSize = frames
	}

	volumes := make([]float64, 0, (frames+chunkSize-1)/chunkSize)
	maxVolume := 0.0
	for start := 0; start < frames; start += chunkSize {
		rms := rmsPCM(pcm, channels, start, min(start+chunkSize, frames))
		maxVolume = max(maxVolume, rms)
		volumes = append(volumes, rms)
	}
	if maxVolume == 0 {
		return volumes
	}
	for i := range volumes {
		volumes[i] /= maxVolume
	}
	return volumes
}

// DurationMillis returns the playback length of PCM16 audio.
func DurationMillis(pcm []byte, sampleRate int, channels int) int {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	frames := len(pcm) / 2 / channels
	return int(math.Round(float64(frames*1000) / float64(sampleRate)))
}

func rmsPCM(pcm []byte, channels int, startFrame int, endFrame int) float64 {
	sum := 0.0
	count := 0
	for frame := startFrame; frame < endFrame; frame++ {
		for ch := 0; ch < channels; ch++ {
			idx := (frame*channels + ch) * 2
			if idx+2 > len(pcm) {
				break
			}
			value := float64(int16(binary.LittleEndian.Uint16(pcm[idx : idx+2])))
			sum += value * value
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(count))
}
