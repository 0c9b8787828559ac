package dto

type CreateCategoryInput struct {
	Name        string
	NameAr      string
	Description string
	ImageURL    string
}

type UpdateCategoryInput struct {
	ID          string
	Name        string
	NameAr      string
	Description string
	ImageURL    string
}
