package cloudinary

import (
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/apperr"
	"github.com/rajivgeraev/flippy-core/internal/config"
	"github.com/rajivgeraev/flippy-core/internal/services"
)

// CloudinaryService выдаёт клиенту подписанные параметры прямой загрузки
type CloudinaryService struct {
	cfg config.CloudinaryConfig
	now func() time.Time
}

// NewCloudinaryService создает новый экземпляр CloudinaryService
func NewCloudinaryService(cfg config.CloudinaryConfig) *CloudinaryService {
	return &CloudinaryService{cfg: cfg, now: time.Now}
}

// UploadParams параметры подписанной загрузки
type UploadParams struct {
	Timestamp    string `json:"timestamp"`
	Signature    string `json:"signature"`
	APIKey       string `json:"api_key"`
	CloudName    string `json:"cloud_name"`
	Folder       string `json:"folder"`
	UploadPreset string `json:"upload_preset"`
	ListingID    string `json:"listing_id"`
}

// Params подписывает загрузку в папку объявления
func (s *CloudinaryService) Params(listingID uuid.UUID) (UploadParams, error) {
	if s.cfg.APISecret == "" {
		return UploadParams{}, apperr.New(apperr.KindUnknown, "Cloudinary не настроен")
	}
	p := UploadParams{
		Timestamp:    strconv.FormatInt(s.now().Unix(), 10),
		APIKey:       s.cfg.APIKey,
		CloudName:    s.cfg.CloudName,
		Folder:       path.Join(s.cfg.UploadFolder, listingID.String()),
		UploadPreset: s.cfg.UploadPreset,
		ListingID:    listingID.String(),
	}

	// Подписываются все параметры, которые клиент передаст в Cloudinary
	signed := url.Values{}
	signed.Set("timestamp", p.Timestamp)
	signed.Set("folder", p.Folder)
	if p.UploadPreset != "" {
		signed.Set("upload_preset", p.UploadPreset)
	}
	signature, err := api.SignParameters(signed, s.cfg.APISecret)
	if err != nil {
		return UploadParams{}, apperr.Wrap(apperr.KindUnknown, "Не удалось подписать загрузку", err)
	}
	p.Signature = signature
	return p, nil
}

// GenerateUploadParams создаёт параметры для загрузки изображений
func (s *CloudinaryService) GenerateUploadParams(c fiber.Ctx) error {
	// Генерируем ID для объявления, если не передан
	listingID := uuid.New()
	if raw := c.Query("listing_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return services.Fail(c, apperr.Validation("Неверный формат ID объявления"))
		}
		listingID = id
	}

	params, err := s.Params(listingID)
	if err != nil {
		return services.Fail(c, err)
	}
	return c.JSON(params)
}
