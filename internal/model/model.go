package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&CacheInfo{},
	&Panorama{},
}

// CacheInfo records which provider a metadata cache was filled from.
type CacheInfo struct {
	ID          uint      `gorm:"primarykey"`
	ProviderURL string    `json:"providerUrl" gorm:"size:255"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (*CacheInfo) TableName() string {
	return "cache_infos"
}

// Panorama is the cached metadata of one captured position. X and Y are the
// EPSG:3857 coordinates used for radius lookups; Location holds the same
// point as geometry.
type Panorama struct {
	PanoID       string                       `json:"panoid" gorm:"primaryKey;size:64"`
	RegionID     string                       `json:"regionId" gorm:"size:64"`
	Lat          float64                      `json:"lat"`
	Lon          float64                      `json:"lon"`
	X            float64                      `json:"-" gorm:"index:idx_panorama_xy,priority:1"`
	Y            float64                      `json:"-" gorm:"index:idx_panorama_xy,priority:2"`
	Location     geom.Point                   `json:"location"`
	RawElevation float64                      `json:"rawElevation"`
	Date         time.Time                    `json:"date"`
	Heading      float64                      `json:"north"`
	CoverageType uint8                        `json:"coverageType"`
	FaceExtents  datatypes.JSONSlice[float64] `json:"faceExtents"`
	UpdatedAt    time.Time                    `json:"updatedAt" gorm:"index:idx_panorama_updated_at"`
}

func (*Panorama) TableName() string {
	return "panoramas"
}
