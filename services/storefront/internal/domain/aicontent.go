package domain

// AIContent is generated marketing copy for one product. It is either fully
// populated or absent.
type AIContent struct {
	SalesPitch  string   `json:"sales_pitch"`
	KeyFeatures []string `json:"key_features"`
	SEOTags     []string `json:"seo_tags"`
}
