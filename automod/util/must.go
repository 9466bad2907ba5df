package util

// MustResult panics on error. For tests and process setup only.
func MustResult[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func MustResult2[A, B any](a A, b B, err error) (A, B) {
	if err != nil {
		panic(err)
	}
	return a, b
}
