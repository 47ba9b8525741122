package parallel

import "math/rand"

// assign maps jobs to model indices. Job i takes model i; jobs beyond the
// model count draw a model from their own source. Models beyond the job count
// are returned as dropped.
func assign(models int, rngs []*rand.Rand) (assignment, dropped []int) {
	jobs := len(rngs)
	assignment = make([]int, jobs)
	for i := range assignment {
		if i < models {
			assignment[i] = i
			continue
		}
		assignment[i] = rngs[i].Intn(models)
	}
	for m := jobs; m < models; m++ {
		dropped = append(dropped, m)
	}
	return assignment, dropped
}
