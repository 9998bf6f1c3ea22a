package model

// FAQ は静的なよくある質問を表す。
type FAQ struct {
	ID       string `yaml:"id"`
	Question string `yaml:"question"`
	Answer   string `yaml:"answer"`
	Category string `yaml:"category"`
}

// TeamMember は運営チームのメンバー紹介を表す。
type TeamMember struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Role     string `yaml:"role"`
	Bio      string `yaml:"bio"`
	ImageURL string `yaml:"image_url"`
}
