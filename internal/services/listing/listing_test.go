package listing

import (
	"encoding/json"
	"testing"

	"github.com/rajivgeraev/flippy-core/internal/apperr"
	"github.com/rajivgeraev/flippy-core/internal/models"
)

func TestDraftAppendsCloudinaryUploads(t *testing.T) {
	req := createRequest{
		ItemDraft: models.ItemDraft{
			Title:  "Книга",
			Images: []models.ItemImage{{URL: "https://example.com/a.jpg", IsMain: true}},
		},
		CloudinaryUploads: []json.RawMessage{
			json.RawMessage(`{"public_id":"flippy/items/b","secure_url":"https://res.cloudinary.com/b.jpg","width":800,"eager":[{"status":"completed","secure_url":"https://res.cloudinary.com/b_thumb.jpg"}]}`),
		},
	}
	d, err := req.draft()
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Images) != 2 {
		t.Fatalf("images = %d, want 2", len(d.Images))
	}
	img := d.Images[1]
	if img.Position != 1 || img.IsMain {
		t.Fatalf("uploaded image = %+v", img)
	}
	if img.PreviewURL != "https://res.cloudinary.com/b_thumb.jpg" || img.Metadata.Width != 800 {
		t.Fatalf("uploaded image = %+v", img)
	}
}

func TestDraftRejectsBrokenUpload(t *testing.T) {
	req := createRequest{CloudinaryUploads: []json.RawMessage{json.RawMessage(`"oops"`)}}
	if _, err := req.draft(); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("err = %v, want validation", err)
	}
}
