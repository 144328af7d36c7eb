package pipeline

import "errors"

var errEmptyLadder = errors.New("empty parameter ladder")

// runLadder walks an ordered parameter ladder, producing an encoded
// output for each value and stopping at the first one that fits the
// byte budget. The search is greedy first-fit: earlier ladder entries
// are preferred even when a later one would be smaller. When nothing
// fits, the last attempt is kept as the best effort. A producer error
// aborts the search immediately.
func runLadder[P any](ladder []P, budget int64, produce func(P) ([]byte, error)) (param P, data []byte, attempts int, fit bool, err error) {
	if len(ladder) == 0 {
		err = errEmptyLadder
		return
	}

	for _, p := range ladder {
		out, perr := produce(p)
		if perr != nil {
			err = perr
			return
		}
		attempts++
		param, data = p, out
		if int64(len(out)) <= budget {
			fit = true
			return
		}
	}
	return
}
