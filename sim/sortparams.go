package sim

import "math/bits"

// SortStepParams parameterizes one bitonic compare-swap dispatch.
// 16 bytes on the GPU; instances are packed at uniformAlignment strides so
// each dispatch can address its own record via a dynamic offset.
type SortStepParams struct {
	NumEntries  uint32
	GroupWidth  uint32
	GroupHeight uint32
	StepIndex   uint32
}

// uniformAlignment is the minimum uniform buffer offset alignment the
// dynamic-offset scheme keys on. 256 is the WebGPU guaranteed maximum for
// minUniformBufferOffsetAlignment, so it is safe on every device.
const uniformAlignment = 256

// sortStepParamsSize is the byte size of one SortStepParams record.
const sortStepParamsSize = 16

// BuildSortSteps produces the full (stage, step) iteration table for a
// bitonic sort over numEntries elements, which must be a power of two.
// Stage s contributes s+1 steps, so the table length is the triangular
// number of log2(numEntries).
func BuildSortSteps(numEntries uint32) []SortStepParams {
	if numEntries < 2 {
		return nil
	}
	numStages := bits.Len32(numEntries) - 1

	steps := make([]SortStepParams, 0, numStages*(numStages+1)/2)
	for stage := 0; stage < numStages; stage++ {
		for step := 0; step <= stage; step++ {
			groupWidth := uint32(1) << (stage - step)
			steps = append(steps, SortStepParams{
				NumEntries:  numEntries,
				GroupWidth:  groupWidth,
				GroupHeight: 2*groupWidth - 1,
				StepIndex:   uint32(step),
			})
		}
	}
	return steps
}

// packSortSteps lays the step table out at aligned strides for upload as a
// single uniform buffer addressed with dynamic offsets.
func packSortSteps(steps []SortStepParams) []byte {
	data := make([]byte, len(steps)*uniformAlignment)
	for i, s := range steps {
		off := i * uniformAlignment
		putUint32(data[off:], s.NumEntries)
		putUint32(data[off+4:], s.GroupWidth)
		putUint32(data[off+8:], s.GroupHeight)
		putUint32(data[off+12:], s.StepIndex)
	}
	return data
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
