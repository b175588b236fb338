package pool

// NaivePool is not really a pool: it spawns one goroutine per job.
// Offered as a baseline for comparison.
type NaivePool struct{}

// NewNaive creates a naive pool.
func NewNaive() *NaivePool {
	return &NaivePool{}
}

// Spawn runs the job on a fresh goroutine.
func (p *NaivePool) Spawn(job func()) {
	go job()
}

// Close is a no-op: spawned goroutines own their own lifetime.
func (p *NaivePool) Close() error {
	return nil
}
