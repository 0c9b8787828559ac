package model

type Category struct {
	BaseModel
	Name        string  `db:"name" json:"name"`
	NameAr      string  `db:"name_ar" json:"name_ar"`
	Description *string `db:"description" json:"description"`
	ImageURL    *string `db:"image_url" json:"image_url"`
}

// CategoryRef is the slice of a category joined onto its children for breadcrumbs.
type CategoryRef struct {
	ID     string `db:"id" json:"id"`
	Name   string `db:"name" json:"name"`
	NameAr string `db:"name_ar" json:"name_ar"`
}
