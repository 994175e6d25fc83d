package payment

import (
	"net/url"
	"strings"
)

// Signal is what a gateway navigation means for the checkout session.
type Signal string

const (
	SignalNone    Signal = "none"
	SignalSuccess Signal = "success"
	SignalCancel  Signal = "cancel"
)

const finishMarker = "finish"

// Classify maps a URL the payment page navigated to onto a signal. The cancel
// URL is checked first so a cancel URL nested under the return URL still
// cancels.
func (g *Gateway) Classify(raw string) Signal {
	target, ok := normalize(raw)
	if !ok {
		return SignalNone
	}
	if cancel, ok := normalize(g.cancelURL); ok && matches(target, cancel) {
		return SignalCancel
	}
	if ret, ok := normalize(g.returnURL); ok && matches(target, ret) {
		return SignalSuccess
	}
	if strings.Contains(strings.ToLower(target.Path), finishMarker) {
		return SignalSuccess
	}
	return SignalNone
}

func normalize(raw string) (*url.URL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, false
	}
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimRight(u.Path, "/")
	return u, true
}

// matches reports whether target lands on base: same host and a path at or
// below base's path. Query strings are ignored.
func matches(target, base *url.URL) bool {
	if target.Host != base.Host {
		return false
	}
	if target.Path == base.Path {
		return true
	}
	return strings.HasPrefix(target.Path, base.Path+"/")
}
