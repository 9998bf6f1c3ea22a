package security

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

var (
	// ErrBlockedURL は内部ネットワーク等へのアクセスとして拒否したURLを示す。
	ErrBlockedURL = errors.New("url points to a blocked destination")
	// ErrUnsupportedURL は形式・スキームが不正なURLを示す。
	ErrUnsupportedURL = errors.New("unsupported url")
	// ErrResponseTooLarge はレスポンスボディが上限を超えたことを示す。
	ErrResponseTooLarge = errors.New("response body exceeds size limit")
)

// blockedPrefixes は外部取得で到達させないアドレス範囲。
// プライベート、ループバック、リンクローカル（クラウドのメタデータIPを含む）、IPv6ユニークローカル。
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

var blockedHostSuffixes = []string{"localhost", ".local", ".internal"}

// URLGuard はプロジェクトが登録した外部サイトへのアクセスを制限する。
// Checkで登録時の静的検証を行い、Clientで接続時（DNS解決後）の検証を行う。
type URLGuard struct {
	ports []int
}

// NewURLGuard はhttp/httpsの標準ポートのみ許可するURLGuardを生成する。
func NewURLGuard() *URLGuard {
	return &URLGuard{ports: []int{80, 443}}
}

// Check はURLをDNS解決なしで検証する。
// 形式・スキーム不正はErrUnsupportedURL、内部宛てはErrBlockedURLをラップして返す。
func (g *URLGuard) Check(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || rawURL == "" {
		return fmt.Errorf("%w: %q", ErrUnsupportedURL, rawURL)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("%w: scheme %q", ErrUnsupportedURL, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("%w: missing host", ErrUnsupportedURL)
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		if blockedAddr(addr) {
			return fmt.Errorf("%w: %s", ErrBlockedURL, addr)
		}
		return nil
	}
	for _, suffix := range blockedHostSuffixes {
		if host == strings.TrimPrefix(suffix, ".") || strings.HasSuffix(host, suffix) {
			return fmt.Errorf("%w: %s", ErrBlockedURL, host)
		}
	}
	return nil
}

func blockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Client は接続先IPをsafeurlで検証するHTTPクライアントを返す。
// DNS解決後のIPも検証するため、DNSリバインディングで内部アドレスへ誘導されても接続しない。
// maxBodyが正の場合、レスポンスボディをその大きさまでに制限する。
func (g *URLGuard) Client(timeout time.Duration, maxBody int64) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(g.ports...).
		Build()

	client := safeurl.Client(config).Client
	if maxBody > 0 {
		base := client.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		client.Transport = &limitTransport{base: base, max: maxBody}
	}
	return client
}

// limitTransport はレスポンスボディの大きさを制限するRoundTripper。
type limitTransport struct {
	base http.RoundTripper
	max  int64
}

func (t *limitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.ContentLength > t.max {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: content-length %d > %d", ErrResponseTooLarge, resp.ContentLength, t.max)
	}
	resp.Body = &limitedBody{rc: resp.Body, remaining: t.max}
	return resp, nil
}

// limitedBody は上限を超えて読もうとした時点でErrResponseTooLargeを返す。
type limitedBody struct {
	rc        io.ReadCloser
	remaining int64
}

func (b *limitedBody) Read(p []byte) (int, error) {
	if b.remaining <= 0 {
		var extra [1]byte
		n, err := b.rc.Read(extra[:])
		if n > 0 {
			return 0, ErrResponseTooLarge
		}
		return 0, err
	}
	if int64(len(p)) > b.remaining {
		p = p[:b.remaining]
	}
	n, err := b.rc.Read(p)
	b.remaining -= int64(n)
	return n, err
}

func (b *limitedBody) Close() error {
	return b.rc.Close()
}
