package model

// WorkUnit is the downstream job submitted once per identifier found in an
// ingested document.
type WorkUnit struct {
	Identifier   string `json:"identifier"`
	SourceBucket string `json:"sourceBucket"`
	SourceKey    string `json:"sourceKey"`
}

type QueueMessage struct {
	S3Key        string `json:"s3Key"`
	ReviewS3Key  string `json:"reviewS3Key,omitempty"`
	RestaurantID string `json:"restaurantId,omitempty"`
}

// Key returns the object key the message names. Review enrichment requests
// carry it as reviewS3Key.
func (m QueueMessage) Key() string {
	if m.S3Key != "" {
		return m.S3Key
	}
	return m.ReviewS3Key
}

// RestaurantArtifact is the per-restaurant document written by review
// enrichment and consumed by the vector and metadata persisters: crawler
// metadata plus the restaurant-level summary and embeddings.
type RestaurantArtifact struct {
	PlaceID      string               `json:"placeId"`
	Name         string               `json:"name"`
	Address      string               `json:"address"`
	Latitude     float64              `json:"latitude"`
	Longitude    float64              `json:"longitude"`
	Thumbnail    string               `json:"thumbnail"`
	Summary      string               `json:"summary"`
	Keywords     map[string]string    `json:"keywords"`
	Embeddings   map[string][]float32 `json:"embeddings"`
	Reviews      []Review             `json:"reviews"`
	TotalReviews int                  `json:"totalReviews"`
	ProcessedAt  string               `json:"processedAt,omitempty"`
}
