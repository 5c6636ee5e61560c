package models

// ThumbnailSize names one of the two renditions stored per image.
type ThumbnailSize string

const (
	ThumbnailSmall ThumbnailSize = "w200xh200"
	ThumbnailLarge ThumbnailSize = "w600xh600"
)

func (s ThumbnailSize) Valid() bool {
	return s == ThumbnailSmall || s == ThumbnailLarge
}

// Thumbnail is a rendered image tagged with the id of the image that owns it.
type Thumbnail struct {
	OwnerID   string `json:"reference"`
	ImageData string `json:"base64"`
}

type Thumbnails struct {
	Small Thumbnail `json:"w200xh200"`
	Large Thumbnail `json:"w600xh600"`
}

// Get returns the rendition for size.
func (t Thumbnails) Get(size ThumbnailSize) (Thumbnail, bool) {
	switch size {
	case ThumbnailSmall:
		return t.Small, true
	case ThumbnailLarge:
		return t.Large, true
	default:
		return Thumbnail{}, false
	}
}

// ImageDocument is written once per uploaded image into the image collection.
type ImageDocument struct {
	Name       string     `json:"name"`
	Thumbnails Thumbnails `json:"thumbnails"`
}

// PublicationEntry is the per-publication pointer to an uploaded image.
// Entries flagged IsDeleted are tombstones and never become local records.
type PublicationEntry struct {
	Name      string `json:"name"`
	IsDeleted bool   `json:"isDeleted"`
}

// PublicationChange is the payload carried by the change feed.
type PublicationChange struct {
	PublicationID string `json:"publication_id"`
	ImageID       string `json:"image_id"`
}
