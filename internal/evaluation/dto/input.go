package dto

type CreateEvaluationInput struct {
	SubcategoryID string
	Title         string
	TitleAr       string
	Description   string
	ImageURL      string
	DownloadURL   string
	SortOrder     int
}

type UpdateEvaluationInput struct {
	ID            string
	SubcategoryID string
	Title         string
	TitleAr       string
	Description   string
	ImageURL      string
	DownloadURL   string
	SortOrder     int
}

type SearchFilters struct {
	Query string
	Limit int
}
