package netmsg

// NewLambdaJob builds a standalone LAMBDA_JOB packet. Unlike Get, this
// never touches the pool: a benchmark against the pool this package
// generalizes found that routing small one-shot closures through a
// 4KB fixed-block pool cost more than it saved, so lambda jobs are plain
// heap allocations collected by the garbage collector once run.
func NewLambdaJob(job func()) *Packet {
	pkt := &Packet{Tag: TagLambdaJob, Job: job}
	pkt.refs.Store(1)
	return pkt
}
