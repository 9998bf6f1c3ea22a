// Package llm は生成モデル呼び出しの共通処理を提供する。
// モデル単位のサーキットブレーカーと、モデル利用不可時の代替モデルへの1回限りの切り替えを担う。
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// ErrModelUnavailable はモデルが利用できない（ブレーカー開放中を含む）ことを示す。
var ErrModelUnavailable = errors.New("llm: model unavailable")

// ErrEmptyResponse はモデルが空の応答を返したことを示す。
var ErrEmptyResponse = errors.New("llm: empty response")

// Request は1回の生成リクエスト。
type Request struct {
	// System はシステム指示。空の場合は送らない。
	System string
	// Prompt はテンプレート展開済みのユーザープロンプト。
	Prompt string
	// Schema は構造化出力のJSONスキーマ。nilの場合は自由形式テキスト。
	Schema *Schema
	// Temperature は0〜2。0の場合はモデル既定値。
	Temperature float32
}

// Response は生成結果。
type Response struct {
	Text     string
	Model    string
	Fallback bool
}

// Generator は生成モデル呼び出しの抽象。
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// CallFunc は指定モデルへの単発呼び出し。SDK実装とテスト用の差し替えに使う。
type CallFunc func(ctx context.Context, model string, req Request) (string, error)

// Observer は呼び出し結果の計測フック。
type Observer interface {
	ObserveGeneration(model, outcome string, duration time.Duration)
	ObserveFallback(from, to string)
}

// Options はClientの設定。
type Options struct {
	Model         string
	FallbackModel string
	Timeout       time.Duration
	// BreakerFailures は連続何回の利用不可でブレーカーを開くか。
	BreakerFailures uint32
	// BreakerCooldown はブレーカー開放後、半開状態に移るまでの時間。
	BreakerCooldown time.Duration
	Observer        Observer
}

// Client はフォールバック付きのGenerator実装。
type Client struct {
	call     CallFunc
	model    string
	fallback string
	timeout  time.Duration
	breakers map[string]*gobreaker.CircuitBreaker
	observer Observer
}

// NewClient はClientを生成する。callには実際のモデル呼び出しを渡す。
func NewClient(call CallFunc, opts Options) *Client {
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerCooldown == 0 {
		opts.BreakerCooldown = 30 * time.Second
	}

	c := &Client{
		call:     call,
		model:    opts.Model,
		fallback: opts.FallbackModel,
		timeout:  opts.Timeout,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		observer: opts.Observer,
	}
	for _, m := range []string{opts.Model, opts.FallbackModel} {
		if m == "" {
			continue
		}
		if _, ok := c.breakers[m]; ok {
			continue
		}
		c.breakers[m] = newBreaker(m, opts.BreakerFailures, opts.BreakerCooldown)
	}
	return c
}

func newBreaker(model string, failures uint32, cooldown time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm:" + model,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// 利用不可以外のエラー（入力不正やキャンセル）はブレーカーの失敗として数えない
		IsSuccessful: func(err error) bool {
			return err == nil || !IsUnavailable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
}

// Model は一次モデル名を返す。
func (c *Client) Model() string {
	return c.model
}

// Generate は一次モデルで生成し、モデル利用不可の場合に限り代替モデルで1回だけ再試行する。
// それ以外のエラーはそのまま返す。
func (c *Client) Generate(ctx context.Context, req Request) (*Response, error) {
	text, err := c.generateWith(ctx, c.model, req)
	if err == nil {
		return &Response{Text: text, Model: c.model}, nil
	}
	if !IsUnavailable(err) || c.fallback == "" || c.fallback == c.model {
		return nil, err
	}

	slog.WarnContext(ctx, "primary model unavailable, retrying with fallback",
		slog.String("model", c.model),
		slog.String("fallback_model", c.fallback),
		slog.String("error", err.Error()),
	)
	if c.observer != nil {
		c.observer.ObserveFallback(c.model, c.fallback)
	}

	text, err = c.generateWith(ctx, c.fallback, req)
	if err != nil {
		return nil, err
	}
	return &Response{Text: text, Model: c.fallback, Fallback: true}, nil
}

func (c *Client) generateWith(ctx context.Context, model string, req Request) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cb, ok := c.breakers[model]
	if !ok {
		return "", fmt.Errorf("llm: model %q is not configured", model)
	}

	start := time.Now()
	out, err := cb.Execute(func() (any, error) {
		return c.call(ctx, model, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%w: %s: %v", ErrModelUnavailable, model, err)
	}
	if c.observer != nil {
		c.observer.ObserveGeneration(model, outcome(err), time.Since(start))
	}
	if err != nil {
		return "", err
	}

	text, _ := out.(string)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsUnavailable(err):
		return "unavailable"
	default:
		return "error"
	}
}
