package gateway

// Request and response shapes of the generateContent REST method.

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseMimeType   string       `json:"responseMimeType,omitempty"`
	ResponseSchema     *schema      `json:"responseSchema,omitempty"`
	ResponseModalities []string     `json:"responseModalities,omitempty"`
	ImageConfig        *imageConfig `json:"imageConfig,omitempty"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio"`
}

type schema struct {
	Type       string             `json:"type"`
	Properties map[string]*schema `json:"properties,omitempty"`
	Items      *schema            `json:"items,omitempty"`
	Required   []string           `json:"required,omitempty"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

// contentPayload is the JSON document the text model returns for product
// copy.
type contentPayload struct {
	SalesPitch  string   `json:"salesPitch" validate:"required"`
	KeyFeatures []string `json:"keyFeatures" validate:"min=3,max=4,dive,required"`
	SEOTags     []string `json:"seoTags" validate:"len=5,dive,required"`
}

var productContentSchema = &schema{
	Type: "OBJECT",
	Properties: map[string]*schema{
		"salesPitch":  {Type: "STRING"},
		"keyFeatures": {Type: "ARRAY", Items: &schema{Type: "STRING"}},
		"seoTags":     {Type: "ARRAY", Items: &schema{Type: "STRING"}},
	},
	Required: []string{"salesPitch", "keyFeatures", "seoTags"},
}
