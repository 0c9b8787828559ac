package model

type Evaluation struct {
	BaseModel
	SubcategoryID string          `db:"subcategory_id" json:"subcategory_id"`
	Title         string          `db:"title" json:"title"`
	TitleAr       string          `db:"title_ar" json:"title_ar"`
	Description   *string         `db:"description" json:"description"`
	ImageURL      *string         `db:"image_url" json:"image_url"`
	DownloadURL   string          `db:"download_url" json:"download_url"`
	SortOrder     int             `db:"sort_order" json:"sort_order"`
	Subcategory   *SubcategoryRef `db:"-" json:"subcategory,omitempty"` // Joined data
}
