package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
)

const productContentTemplate = `You are an expert Nigerian marketing copywriter.
Create catchy, localized content for a product named %q in the category %q.

Requirements:
1. 'salesPitch': A persuasive paragraph (approx 50 words) mixing professional English with a touch of Nigerian Pidgin flavor to make it relatable (e.g., use words like "correct", "durable", "shines").
2. 'keyFeatures': 3-4 bullet points of realistic features for this type of product.
3. 'seoTags': 5 relevant SEO keywords for a Nigerian e-commerce store.`

func productContentPrompt(name, category string) string {
	return fmt.Sprintf(productContentTemplate, name, category)
}

// jsonUnmarshal decodes model output, tolerating a ```json fence around the
// document.
func jsonUnmarshal(text string, v any) error {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	return json.Unmarshal([]byte(text), v)
}
