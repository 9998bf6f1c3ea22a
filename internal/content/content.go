// Package content は静的コンテンツ（よくある質問、チーム紹介）を提供する。
// データはバイナリに埋め込んだYAMLから起動時に1回読み込む。
package content

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/milijuli/sewa/internal/model"
)

//go:embed data/*.yaml
var embedded embed.FS

const (
	faqFile  = "data/faqs.yaml"
	teamFile = "data/team.yaml"
)

// Store は読み込み済みの静的コンテンツを保持する。読み込み後は変更しない。
type Store struct {
	faqs []model.FAQ
	team []model.TeamMember
}

// Default は埋め込みデータからStoreを生成する。
func Default() (*Store, error) {
	return Load(embedded)
}

// Load はfsysのdata/faqs.yamlとdata/team.yamlからStoreを生成する。
func Load(fsys fs.FS) (*Store, error) {
	s := &Store{}
	if err := decodeYAML(fsys, faqFile, &s.faqs); err != nil {
		return nil, err
	}
	if err := decodeYAML(fsys, teamFile, &s.team); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(s.faqs))
	for _, f := range s.faqs {
		if f.ID == "" {
			return nil, fmt.Errorf("%s: faq without id (%q)", faqFile, f.Question)
		}
		if seen[f.ID] {
			return nil, fmt.Errorf("%s: duplicate faq id %q", faqFile, f.ID)
		}
		seen[f.ID] = true
	}
	return s, nil
}

func decodeYAML(fsys fs.FS, name string, out any) error {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}

// FAQs はよくある質問を返す。categoryが空でなければそのカテゴリのみ返す（大文字小文字は区別しない）。
// 一致がない場合は空のスライスを返す。
func (s *Store) FAQs(category string) []model.FAQ {
	category = strings.TrimSpace(category)
	out := make([]model.FAQ, 0, len(s.faqs))
	for _, f := range s.faqs {
		if category == "" || strings.EqualFold(f.Category, category) {
			out = append(out, f)
		}
	}
	return out
}

// FAQ は指定IDの質問を返す。
func (s *Store) FAQ(id string) (model.FAQ, bool) {
	for _, f := range s.faqs {
		if f.ID == id {
			return f, true
		}
	}
	return model.FAQ{}, false
}

// Team はチームメンバー一覧を返す。
func (s *Store) Team() []model.TeamMember {
	out := make([]model.TeamMember, len(s.team))
	copy(out, s.team)
	return out
}
