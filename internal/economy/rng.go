package economy

// Rand is the single source of randomness threaded through every stochastic
// update. *math/rand/v2.Rand satisfies it; a fixed seed replays a turn
// sequence exactly.
type Rand interface {
	Float64() float64
	NormFloat64() float64
	IntN(n int) int
}
