// internal/engines/inputs.go
package engines

import "math/rand"

// SynthesizeInputs builds one batch of benchmark inputs: random token ids in
// [0, vocabSize-1) for input_ids, all-ones attention masks, and all-zeros
// token type ids, restricted to the requested input names.
func SynthesizeInputs(rng *rand.Rand, vocabSize, batchSize, sequenceLength int, inputNames []string) InputSet {
	size := batchSize * sequenceLength
	inputs := make(InputSet, len(inputNames))

	for _, name := range inputNames {
		data := make([]int64, size)
		switch name {
		case InputIDs:
			for i := range data {
				data[i] = rng.Int63n(int64(vocabSize - 1))
			}
		case AttentionMask:
			for i := range data {
				data[i] = 1
			}
		case TokenTypeIDs:
			// already zeroed
		default:
			continue
		}
		inputs[name] = Tensor{
			BatchSize:      batchSize,
			SequenceLength: sequenceLength,
			Data:           data,
		}
	}
	return inputs
}
