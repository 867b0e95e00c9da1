// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Embedding constants
const (
	// FaceEmbeddingDim is the fixed dimension of face embeddings produced by the
	// extraction service (InsightFace buffalo_l / ResNet100)
	FaceEmbeddingDim = 512
)

// Event constants
const (
	// EventChannelBuffer is the buffer size of each subscriber's event channel.
	// A subscriber that falls this far behind is pruned rather than blocked on.
	EventChannelBuffer = 16
)

// Capture constants
const (
	// MaxFrameSize is the maximum dimension (width or height) of a capture frame
	// forwarded to the extraction service
	MaxFrameSize = 1280

	// MaxFramesPerCapture is the maximum number of frames accepted in one capture request
	MaxFramesPerCapture = 10
)

// HNSW index constants
const (
	// HNSWMaxNeighbors is the M parameter for the HNSW graph
	HNSWMaxNeighbors = 16
)
