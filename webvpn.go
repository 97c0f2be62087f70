package gzhmu

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// The Web VPN gateway rewrites intranet URLs into paths under its own
// origin, with the target hostname encrypted using a fixed published
// key and IV. This is obfuscation required by the gateway's URL
// contract, not confidentiality: the output must be bit-exact or the
// gateway rejects the request.
const (
	webvpnKey = "wrdvpnisthebest!"
	webvpnIV  = "wrdvpnisthebest!"

	webvpnHost   = "webvpn.gzhmu.edu.cn"
	webvpnOrigin = "https://" + webvpnHost
)

// EncryptHost encrypts a hostname into the token the Web VPN gateway
// expects, e.g. "jwgl.gzhmu.edu.cn" becomes
// "77726476706e69737468656265737421fae0469069377258731dc7a99c406d36d6".
// The token is the hex IV followed by the hex AES-128-CFB ciphertext.
func EncryptHost(host string) string {
	block, err := aes.NewCipher([]byte(webvpnKey))
	if err != nil {
		// Fixed 16-byte key, cannot happen.
		panic("gzhmu: invalid webvpn cipher key: " + err.Error())
	}
	stream := cipher.NewCFBEncrypter(block, []byte(webvpnIV))
	encrypted := make([]byte, len(host))
	stream.XORKeyStream(encrypted, []byte(host))
	return hex.EncodeToString([]byte(webvpnIV)) + hex.EncodeToString(encrypted)
}

// DecryptHost reverses EncryptHost. A leading hex IV is stripped when
// present.
func DecryptHost(token string) (string, error) {
	ivHex := hex.EncodeToString([]byte(webvpnIV))
	token = strings.TrimPrefix(token, ivHex)
	raw, err := hex.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("malformed host token: %w", err)
	}
	block, err := aes.NewCipher([]byte(webvpnKey))
	if err != nil {
		panic("gzhmu: invalid webvpn cipher key: " + err.Error())
	}
	stream := cipher.NewCFBDecrypter(block, []byte(webvpnIV))
	host := make([]byte, len(raw))
	stream.XORKeyStream(host, raw)
	return string(host), nil
}

// EncryptURL converts an intranet URL into its Web VPN form, e.g.
// "http://jwgl.gzhmu.edu.cn/jsxsd/" becomes
// "https://webvpn.gzhmu.edu.cn/http/77726476706e6973746865626573742...6d36d6/jsxsd/".
// The path shape is /<scheme>[-<port>]/<encrypted-host><original-path>.
func EncryptURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	segment := "/" + u.Scheme
	if port := u.Port(); port != "" {
		segment += "-" + port
	}

	out := webvpnOrigin + segment + "/" + EncryptHost(u.Hostname()) + u.EscapedPath()
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	if u.Fragment != "" {
		out += "#" + u.Fragment
	}
	return out, nil
}

// DecryptURL reverses EncryptURL. It reports ok=false when the URL is
// not under the gateway origin or the path is missing either of the two
// required separators.
func DecryptURL(encryptedURL string) (string, bool) {
	if !strings.HasPrefix(encryptedURL, webvpnOrigin) {
		return "", false
	}
	u, err := url.Parse(encryptedURL)
	if err != nil {
		return "", false
	}

	path := u.EscapedPath()
	endOfScheme := strings.Index(path[1:], "/")
	if endOfScheme == -1 {
		return "", false
	}
	endOfScheme++
	endOfHost := strings.Index(path[endOfScheme+1:], "/")
	if endOfHost == -1 {
		return "", false
	}
	endOfHost += endOfScheme + 1

	scheme := path[1:endOfScheme]
	port := ""
	if i := strings.Index(scheme, "-"); i >= 0 {
		scheme, port = scheme[:i], scheme[i+1:]
	}

	host, err := DecryptHost(path[endOfScheme+1 : endOfHost])
	if err != nil {
		return "", false
	}
	netloc := host
	if port != "" {
		netloc += ":" + port
	}

	out := scheme + "://" + netloc + path[endOfHost:]
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	if u.Fragment != "" {
		out += "#" + u.Fragment
	}
	return out, true
}
