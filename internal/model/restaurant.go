package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// Restaurant is a row of the restaurant database. PlaceID is the crawler's
// external key and is unique.
type Restaurant struct {
	ID        string  `json:"id" gorm:"column:id;primaryKey;type:varchar(36)"`
	PlaceID   string  `json:"placeId" gorm:"column:place_id;uniqueIndex;type:varchar(64)"`
	Name      string  `json:"name" gorm:"column:name"`
	Address   string  `json:"address" gorm:"column:address"`
	Latitude  float64 `json:"latitude" gorm:"column:latitude"`
	Longitude float64 `json:"longitude" gorm:"column:longitude"`
	Thumbnail string  `json:"thumbnail" gorm:"column:thumbnail"`
}

func (Restaurant) TableName() string {
	return "restaurant"
}

type RestaurantVector struct {
	ID              string
	PlaceID         string
	CompanionVector pgvector.Vector
	FoodVector      pgvector.Vector
	PurposeVector   pgvector.Vector
	VibeVector      pgvector.Vector
	Latitude        float64
	Longitude       float64
	CreatedAt       time.Time
}

type CrawlingReview struct {
	Hash            string
	Content         string
	RestaurantID    string
	VibeVector      pgvector.Vector
	FoodVector      pgvector.Vector
	CompanionVector pgvector.Vector
	PurposeVector   pgvector.Vector
}

type Outbox struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	RestaurantID string    `gorm:"column:restaurant_id;type:varchar(36)"`
	Payload      string    `gorm:"column:payload"`
	IsProcessed  bool      `gorm:"column:is_processed;index"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (Outbox) TableName() string {
	return "outbox"
}
