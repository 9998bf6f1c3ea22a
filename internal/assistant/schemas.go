package assistant

import (
	"google.golang.org/genai"

	"github.com/milijuli/sewa/internal/llm"
)

func stringProp(desc string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: desc}
}

func stringArrayProp(desc string) *genai.Schema {
	return &genai.Schema{
		Type:        genai.TypeArray,
		Description: desc,
		Items:       &genai.Schema{Type: genai.TypeString},
	}
}

// 各生成の構造化出力スキーマ。プロパティ名は出力型のjsonタグと一致させる。
var (
	emailSchema = &llm.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"subject": stringProp("email subject line"),
			"body":    stringProp("plain text email body"),
		},
		Required: []string{"subject", "body"},
	}

	seoSchema = &llm.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"meta_title":       stringProp("page title, at most 60 characters"),
			"meta_description": stringProp("meta description, at most 160 characters"),
			"keywords":         stringArrayProp("1 to 10 keyword phrases"),
		},
		Required: []string{"meta_title", "meta_description", "keywords"},
	}

	storySchema = &llm.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"headline":       stringProp("story headline"),
			"paragraphs":     stringArrayProp("story paragraphs in order"),
			"call_to_action": stringProp("one sentence call to action"),
		},
		Required: []string{"headline", "paragraphs", "call_to_action"},
	}

	impactSchema = &llm.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"summary":    stringProp("short summary addressed to the donor"),
			"highlights": stringArrayProp("up to 5 one-line highlights"),
		},
		Required: []string{"summary", "highlights"},
	}

	faqSchema = &llm.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"answer":      stringProp("answer to the visitor question"),
			"related_ids": stringArrayProp("ids of the FAQ entries used"),
			"confident":   {Type: genai.TypeBoolean, Description: "whether the FAQ covers the question"},
		},
		Required: []string{"answer", "related_ids", "confident"},
	}
)
