package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/milijuli/sewa/internal/project"
)

// seedFile はseedコマンドが読み込むYAMLの形式。
type seedFile struct {
	Projects []project.CreateInput `yaml:"projects"`
}

// loadSeedFile はYAMLファイルからプロジェクトの入力を読み込む。
// 未知のキーはタイプミスとみなしてエラーにする。
func loadSeedFile(path string) ([]project.CreateInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f seedFile
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	if len(f.Projects) == 0 {
		return nil, fmt.Errorf("seed file %s contains no projects", path)
	}
	return f.Projects, nil
}
