package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup はINFOレベルのJSON構造化ログ出力のslog.Loggerを生成して返す。
func Setup(w io.Writer) *slog.Logger {
	return SetupWithLevel(w, slog.LevelInfo)
}

// SetupWithLevel は指定レベル以上を出力するJSON構造化ロガーを返す。
func SetupWithLevel(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}

// SetupDefault はJSON構造化ログ出力をグローバルロガーとして設定する。
// writerがnilの場合はos.Stdoutに出力する。
func SetupDefault(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	slog.SetDefault(Setup(w))
}

// FileOptions はローテーション付きファイル出力の設定。
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// SetupWithFile はwとローテーションファイルの両方へ出力するロガーをグローバルに設定する。
// opts.Pathが空の場合はwのみに出力する。返却されるCloserはプロセス終了時に閉じる。
func SetupWithFile(w io.Writer, level slog.Level, opts FileOptions) io.Closer {
	if w == nil {
		w = os.Stdout
	}
	if opts.Path == "" {
		slog.SetDefault(SetupWithLevel(w, level))
		return nopCloser{}
	}

	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 100
	}
	file := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}
	slog.SetDefault(SetupWithLevel(io.MultiWriter(w, file), level))
	return file
}

// ParseLevel はLOG_LEVELの文字列をslog.Levelへ変換する。未知の値はINFOとして扱う。
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
