// Package assistant は生成モデルを使った文章作成機能（お礼メール、SEOメタデータ、
// キャンペーンストーリー、寄付者インパクトサマリー、物品寄付の受付メール、FAQ回答）を提供する。
//
// 各機能は同じ手順で動く: 入力の検証 → 固定テンプレートへの埋め込み → 構造化出力での生成
// → 出力の検証。出力が検証を通らない場合はErrInvalidOutputを返し、部分的な値は返さない。
package assistant

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"text/template"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/milijuli/sewa/internal/llm"
	"github.com/milijuli/sewa/internal/model"
	"github.com/milijuli/sewa/internal/repository"
	"github.com/milijuli/sewa/internal/view"
)

// ErrInvalidOutput はモデル応答が出力スキーマを満たさないことを示す。
var ErrInvalidOutput = errors.New("assistant: model output failed validation")

// systemInstruction は全機能共通のシステム指示。
const systemInstruction = "You write for milijuli sewa, a donation platform supporting community projects in Nepal. " +
	"Be warm, concrete and honest. Never invent facts, figures or names that are not in the request. " +
	"Always answer with JSON that matches the requested schema."

//go:embed prompts/*.tmpl
var promptFS embed.FS

var prompts = template.Must(template.New("prompts").Funcs(template.FuncMap{
	"npr":   view.FormatNPR,
	"tone":  toneOrDefault,
	"total": totalGifts,
}).ParseFS(promptFS, "prompts/*.tmpl"))

// Service は文章作成機能のサービス層。
type Service struct {
	gen      llm.Generator
	genLog   repository.GenerationRepository
	mailer   Mailer
	validate *validator.Validate
}

// NewService はServiceの新しいインスタンスを生成する。
// genがnilの場合、各機能はGENERATION_DISABLEDエラーを返す。
// genLog、mailerはnilでもよい（記録・送信を行わない）。
func NewService(gen llm.Generator, genLog repository.GenerationRepository, mailer Mailer) *Service {
	return &Service{
		gen:      gen,
		genLog:   genLog,
		mailer:   mailer,
		validate: newValidator(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// エラーメッセージにはjsonタグの名前を使う
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Enabled は生成モデルが設定されているかを返す。
func (s *Service) Enabled() bool {
	return s != nil && s.gen != nil
}

// task は1種類の生成処理の定義。
type task struct {
	kind        model.GenerationKind
	schema      *llm.Schema
	temperature float32
}

// run は入力検証からログ記録までの共通処理を実行する。
func run[T any](ctx context.Context, s *Service, t task, userID string, in any) (*T, error) {
	if !s.Enabled() {
		return nil, model.NewGenerationDisabledError()
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	prompt, err := render(string(t.kind), in)
	if err != nil {
		return nil, err
	}

	resp, err := s.gen.Generate(ctx, llm.Request{
		System:      systemInstruction,
		Prompt:      prompt,
		Schema:      t.schema,
		Temperature: t.temperature,
	})
	if err != nil {
		return nil, err
	}

	out, err := parsePayload[T](resp.Text)
	if err != nil {
		slog.WarnContext(ctx, "生成結果のパースに失敗しました",
			slog.String("kind", string(t.kind)),
			slog.String("model", resp.Model),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if err := s.validate.Struct(out); err != nil {
		slog.WarnContext(ctx, "生成結果が出力スキーマを満たしません",
			slog.String("kind", string(t.kind)),
			slog.String("model", resp.Model),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}

	s.record(ctx, t.kind, resp.Model, userID, prompt, out)
	return &out, nil
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// record は生成ログを保存する。保存失敗は生成結果に影響させない。
func (s *Service) record(ctx context.Context, kind model.GenerationKind, modelName, userID, prompt string, out any) {
	if s.genLog == nil {
		return
	}
	payload, err := json.Marshal(out)
	if err != nil {
		slog.WarnContext(ctx, "生成ログのエンコードに失敗しました",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		return
	}
	gen := &model.Generation{
		ID:        uuid.New().String(),
		Kind:      kind,
		Model:     modelName,
		Prompt:    prompt,
		Output:    string(payload),
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	if err := s.genLog.Create(ctx, gen); err != nil {
		slog.WarnContext(ctx, "生成ログの保存に失敗しました",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
	}
}

// validationError は検証エラーの最初の項目をVALIDATION_ERRORに変換する。
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return model.NewValidationError(fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		}
		return model.NewValidationError(fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return model.NewValidationError(err.Error())
}

func toneOrDefault(tone string) string {
	if tone == "" {
		return "hopeful"
	}
	return tone
}

func totalGifts(gifts []ImpactGift) int64 {
	var total int64
	for _, g := range gifts {
		total += g.Amount
	}
	return total
}
