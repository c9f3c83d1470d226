package listing

import (
	"encoding/json"
	"log"

	"github.com/rajivgeraev/flippy-core/internal/apperr"
	"github.com/rajivgeraev/flippy-core/internal/models"
)

// createRequest тело запроса создания объявления.
// Изображения приходят либо готовыми, либо сырыми ответами Cloudinary.
type createRequest struct {
	models.ItemDraft
	CloudinaryUploads []json.RawMessage `json:"cloudinary_uploads"`
}

// draft собирает черновик, добавляя изображения из ответов Cloudinary
func (r createRequest) draft() (models.ItemDraft, error) {
	d := r.ItemDraft
	for _, raw := range r.CloudinaryUploads {
		upload, err := models.ParseCloudinaryUpload(raw)
		if err != nil {
			log.Printf("Ошибка парсинга ответа Cloudinary: %v", err)
			return d, apperr.Validation("Некорректный ответ Cloudinary")
		}
		d.Images = append(d.Images, upload.Image(len(d.Images)))
	}
	return d, nil
}

type moderateRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note"`
}
