package model

type Subcategory struct {
	BaseModel
	CategoryID  string       `db:"category_id" json:"category_id"`
	Name        string       `db:"name" json:"name"`
	NameAr      string       `db:"name_ar" json:"name_ar"`
	Description *string      `db:"description" json:"description"`
	ImageURL    *string      `db:"image_url" json:"image_url"`
	SortOrder   int          `db:"sort_order" json:"sort_order"`
	Category    *CategoryRef `db:"-" json:"category,omitempty"` // Joined data
}

type SubcategoryRef struct {
	ID         string `db:"id" json:"id"`
	CategoryID string `db:"category_id" json:"category_id"`
	Name       string `db:"name" json:"name"`
	NameAr     string `db:"name_ar" json:"name_ar"`
}
