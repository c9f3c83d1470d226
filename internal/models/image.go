package models

import (
	"encoding/json"
	"time"
)

// ItemImage представляет изображение объявления
type ItemImage struct {
	URL        string        `json:"url" validate:"required,url"`
	PreviewURL string        `json:"preview_url,omitempty"`
	PublicID   string        `json:"public_id"`
	IsMain     bool          `json:"is_main"`
	Position   int           `json:"position"`
	Metadata   ImageMetadata `json:"metadata,omitempty"`
}

// ImageMetadata содержит ключевые метаданные изображения из Cloudinary
type ImageMetadata struct {
	AssetID   string    `json:"asset_id"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Bytes     int       `json:"bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// CloudinaryUpload часть ответа Cloudinary после загрузки, нужная объявлению
type CloudinaryUpload struct {
	AssetID   string    `json:"asset_id"`
	PublicID  string    `json:"public_id"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Bytes     int       `json:"bytes"`
	CreatedAt time.Time `json:"created_at"`
	SecureURL string    `json:"secure_url"`
	Eager     []struct {
		Status    string `json:"status"`
		SecureURL string `json:"secure_url"`
	} `json:"eager"`
}

// ParseCloudinaryUpload разбирает JSON-ответ Cloudinary
func ParseCloudinaryUpload(raw []byte) (CloudinaryUpload, error) {
	var upload CloudinaryUpload
	err := json.Unmarshal(raw, &upload)
	return upload, err
}

// Image собирает изображение объявления из ответа Cloudinary
func (u CloudinaryUpload) Image(position int) ItemImage {
	img := ItemImage{
		URL:      u.SecureURL,
		PublicID: u.PublicID,
		IsMain:   position == 0,
		Position: position,
		Metadata: ImageMetadata{
			AssetID:   u.AssetID,
			Width:     u.Width,
			Height:    u.Height,
			Bytes:     u.Bytes,
			CreatedAt: u.CreatedAt,
		},
	}
	// Превью берём из первой готовой eager-трансформации
	for _, eager := range u.Eager {
		if eager.Status == "processing" || eager.Status == "completed" {
			img.PreviewURL = eager.SecureURL
			break
		}
	}
	return img
}
