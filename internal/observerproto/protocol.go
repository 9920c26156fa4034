package observerproto

// Version is the observer protocol version.
const Version = "0.1"

// Encoding of ChunkAddMsg.Materials: base64 of (material, run) uvarint pairs
// over the grid in x + S*(y + S*z) order.
const EncodingRLE = "RLE_U8_XYZ"

// Client -> Server. First message on the observer WS connection, and can be re-sent to update settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	MaxChunks       int    `json:"max_chunks"`

	// Optional: include RLE material grids in CHUNK_ADD.
	Materials bool `json:"materials,omitempty"`
}

// HTTP response for GET /v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	Frame           uint64      `json:"frame"`
	WorldParams     WorldParams `json:"world_params"`
	Palette         []string    `json:"palette"`
}

type WorldParams struct {
	FrameRateHz    int    `json:"frame_rate_hz"`
	ChunkSize      int    `json:"chunk_size"`
	Seed           int64  `json:"seed"`
	RenderDistance [2]int `json:"render_distance"`
	LoadDistance   [2]int `json:"load_distance"`
}

// Server -> Client. A chunk's render groups were created or replaced.
type ChunkAddMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Chunk           [3]int `json:"chunk"`
	Size            int    `json:"size"`
	Digest          string `json:"digest"`
	Quads           int    `json:"quads"`
	Faces           [6]int `json:"faces"`

	Encoding  string `json:"encoding,omitempty"`
	Materials string `json:"materials,omitempty"`
}

// Server -> Client. A chunk's render groups were released.
type ChunkRemoveMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Chunk           [3]int `json:"chunk"`
}

// Server -> Client. Sent every few frames.
type FrameMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Frame           uint64 `json:"frame"`
	ObserverChunk   [3]int `json:"observer_chunk"`
	Loaded          int    `json:"loaded"`
	PendingLoad     int    `json:"pending_load"`
	PendingUnload   int    `json:"pending_unload"`
	Populated       bool   `json:"populated"`
	Meshed          bool   `json:"meshed"`
}
