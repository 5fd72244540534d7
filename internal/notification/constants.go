package notification

import "time"

const (
	// DefaultChannelBufferSize is the buffer for subscriber channels.
	DefaultChannelBufferSize = 16

	// DefaultStoreTimeout bounds a single batch of alert store writes.
	DefaultStoreTimeout = 30 * time.Second

	// defaultPlanBuffer is the store worker queue depth.
	defaultPlanBuffer = 64

	// shutdownTimeout is how long Stop waits for the store worker.
	shutdownTimeout = 5 * time.Second
)
