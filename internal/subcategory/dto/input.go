package dto

type CreateSubcategoryInput struct {
	CategoryID  string
	Name        string
	NameAr      string
	Description string
	ImageURL    string
	SortOrder   int
}

type UpdateSubcategoryInput struct {
	ID          string
	CategoryID  string
	Name        string
	NameAr      string
	Description string
	ImageURL    string
	SortOrder   int
}
