package gasapi

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/url"
)

// passwordEncoder はパスワードの送信用エンコード方式を表す。
// nameはencodedパラメータとしてそのまま送信され、サーバー側の復号に使われる。
type passwordEncoder struct {
	name   string
	encode func(raw string) (string, error)
}

// passwordEncoders は優先順に並んだエンコード方式。
// 一次方式はLatin-1の範囲のみを受け付けるbase64（ブラウザのbtoa互換）。
// 範囲外の文字を含む場合はパーセントエンコードへフォールバックする。
var passwordEncoders = []passwordEncoder{
	{name: "base64", encode: encodeBase64Latin1},
	{name: "uri", encode: func(raw string) (string, error) {
		return url.QueryEscape(raw), nil
	}},
}

// encodeBase64Latin1 はbtoa互換のbase64エンコードを行う。
// btoaはU+00FFを超える文字で例外を投げるため、同じ条件でエラーを返す。
func encodeBase64Latin1(raw string) (string, error) {
	buf := make([]byte, 0, len(raw))
	for _, r := range raw {
		if r > 0xFF {
			return "", fmt.Errorf("base64エンコードできない文字が含まれています: %q", r)
		}
		buf = append(buf, byte(r))
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// encodePassword はパスワードを送信用に可逆エンコードする。
// 戻り値は（エンコード済み文字列、encodedパラメータ値）。
//
// これは平文をGETクエリへそのまま載せないための難読化であって、
// 暗号化ではない。盗聴に対する機密性はTLSに依存する。
// 全方式が失敗した場合は生の値を送る劣化モードとなり、必ず警告ログを残す。
func (c *Client) encodePassword(raw string) (string, string) {
	for i, e := range c.encoders {
		encoded, err := e.encode(raw)
		if err != nil {
			continue
		}
		if i > 0 {
			c.logger.Warn("一次エンコード方式が利用できないためフォールバックしました",
				slog.String("scheme", e.name),
			)
		}
		return encoded, e.name
	}

	c.logger.Warn("パスワードのエンコードに失敗したため生の値を送信します（劣化モード）")
	return raw, "none"
}
