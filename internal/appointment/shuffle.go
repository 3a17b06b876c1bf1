package appointment

import "math/rand"

// shuffleRefs returns a uniformly random permutation of the candidate pool
// (Fisher-Yates). The input slice is left untouched. Uniformity is what
// spreads bookings evenly across a department's doctors over time.
func shuffleRefs(rng *rand.Rand, pool []DoctorRef) []DoctorRef {
	out := make([]DoctorRef, len(pool))
	copy(out, pool)

	for i := len(out) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}

	return out
}
