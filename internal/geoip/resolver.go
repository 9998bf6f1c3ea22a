// Package geoip は寄付元IPアドレスから国コードを判定する。
// MaxMindのGeoIP2/GeoLite2 Countryデータベースを使う。
package geoip

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// ErrUnavailable はデータベースが読み込まれていないことを示す。
var ErrUnavailable = errors.New("geoip resolver unavailable")

// Resolver はGeoIP2データベースによる国判定。
// nilのResolverも有効で、常にErrUnavailableを返す。
type Resolver struct {
	reader *geoip2.Reader
}

// Open はpathのデータベースを開く。pathが空の場合はnil, nilを返す。
func Open(path string) (*Resolver, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open database: %w", err)
	}
	return &Resolver{reader: reader}, nil
}

// CountryCode はipのISO国コードを返す。判定できない場合は空文字を返す。
func (r *Resolver) CountryCode(ip string) (string, error) {
	if r == nil || r.reader == nil {
		return "", ErrUnavailable
	}
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return "", fmt.Errorf("geoip: invalid ip %q", ip)
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() {
		return "", nil
	}
	record, err := r.reader.Country(parsed)
	if err != nil {
		return "", fmt.Errorf("geoip: lookup country: %w", err)
	}
	if record == nil {
		return "", nil
	}
	return record.Country.IsoCode, nil
}

// Country はCountryCodeのエラーを握りつぶして国コードのみ返す。
// 寄付記録への付加情報なので、失敗は寄付処理を止めない。
func (r *Resolver) Country(ip string) string {
	code, err := r.CountryCode(ip)
	if err != nil {
		if !errors.Is(err, ErrUnavailable) {
			slog.Debug("GeoIP判定に失敗しました",
				slog.String("ip", ip),
				slog.String("error", err.Error()),
			)
		}
		return ""
	}
	return code
}

// Close はデータベースを閉じる。
func (r *Resolver) Close() error {
	if r == nil || r.reader == nil {
		return nil
	}
	return r.reader.Close()
}
