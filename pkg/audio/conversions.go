package audio

func float32ToInt16(sample float32) int16 {
	if sample > 1.0 {
		return 32767
	}
	if sample < -1.0 {
		return -32768
	}
	return int16(sample * 32767)
}

// Float32SliceToInt16SliceInto fills dst with float32 converted to int16 and returns the slice.
func Float32SliceToInt16SliceInto(dst []int16, samples []float32) []int16 {
	if cap(dst) < len(samples) {
		dst = make([]int16, len(samples))
	} else {
		dst = dst[:len(samples)]
	}
	for i, sample := range samples {
		dst[i] = float32ToInt16(sample)
	}
	return dst
}

// Int16SliceToBytesInto converts int16 samples to little-endian bytes.
func Int16SliceToBytesInto(dst []byte, samples []int16) []byte {
	needed := len(samples) * 2
	if cap(dst) < needed {
		dst = make([]byte, needed)
	} else {
		dst = dst[:needed]
	}
	for i, sample := range samples {
		offset := i * 2
		dst[offset] = byte(sample)
		dst[offset+1] = byte(sample >> 8)
	}
	return dst
}

// Float32SliceToPCM16Bytes converts float samples to a new little-endian
// PCM16 buffer.
func Float32SliceToPCM16Bytes(samples []float32) []byte {
	if len(samples) == 0 {
		return nil
	}
	tmp := AcquireInt16(len(samples))
	tmp = Float32SliceToInt16SliceInto(tmp, samples)
	out := Int16SliceToBytesInto(nil, tmp)
	ReleaseInt16(tmp)
	return out
}

// Float64SliceToFloat32 narrows browser capture samples.
func Float64SliceToFloat32(samples []float64) []float32 {
	if len(samples) == 0 {
		return nil
	}
	out := make([]float32, len(samples))
	for i, sample := range samples {
		out[i] = float32(sample)
	}
	return out
}
